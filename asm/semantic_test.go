package asm

import "testing"

func TestBreaksBasicBlockOnControlFlowAndLabels(t *testing.T) {
	breakers := []AssemblyItem{
		NewTag(1),
		NewOperation(JUMP),
		NewOperation(JUMPI),
		NewOperation(JUMPDEST),
		NewOperation(STOP),
		NewOperation(RETURN),
		NewOperation(SELFDESTRUCT),
		NewOperation(INVALID),
		NewOperation(REVERT),
	}
	for _, item := range breakers {
		if !BreaksBasicBlock(item) {
			t.Fatalf("%v must break the basic block", item)
		}
	}
}

func TestBreaksBasicBlockLeavesOrdinaryItemsAlone(t *testing.T) {
	ordinary := []AssemblyItem{
		NewOperation(ADD),
		NewOperation(SLOAD),
		NewOperation(DUP1),
		NewOperation(SWAP1),
		NewPush(nil),
		NewPushTag(1),
	}
	for _, item := range ordinary {
		if BreaksBasicBlock(item) {
			t.Fatalf("%v must not break the basic block", item)
		}
	}
}

func TestIsCommutativeOperation(t *testing.T) {
	for _, op := range []OpCode{ADD, MUL, AND, OR, XOR, EQ} {
		if !IsCommutativeOperation(NewOperation(op)) {
			t.Fatalf("%v must be commutative", op)
		}
	}
	for _, op := range []OpCode{SUB, DIV, LT, GT, SLOAD} {
		if IsCommutativeOperation(NewOperation(op)) {
			t.Fatalf("%v must not be commutative", op)
		}
	}
}

func TestIsDupAndIsSwapInstruction(t *testing.T) {
	if !IsDupInstruction(NewOperation(DUP1)) {
		t.Fatal("DUP1 must be a dup instruction")
	}
	if IsDupInstruction(NewOperation(SWAP1)) {
		t.Fatal("SWAP1 must not be a dup instruction")
	}
	if !IsSwapInstruction(NewOperation(SWAP1)) {
		t.Fatal("SWAP1 must be a swap instruction")
	}
	if IsSwapInstruction(NewOperation(ADD)) {
		t.Fatal("ADD must not be a swap instruction")
	}
}

func TestArityForCommonOpcodes(t *testing.T) {
	cases := []struct {
		op                   OpCode
		pops, pushes         int
		sequenced            bool
	}{
		{ADD, 2, 1, false},
		{ISZERO, 1, 1, false},
		{ADDMOD, 3, 1, false},
		{SLOAD, 1, 1, true},
		{SSTORE, 2, 0, true},
		{MLOAD, 1, 1, true},
		{POP, 1, 0, false},
		{ADDRESS, 0, 1, false},
		{GAS, 0, 1, true},
	}
	for _, c := range cases {
		pops, pushes, sequenced := Arity(c.op)
		if pops != c.pops || pushes != c.pushes || sequenced != c.sequenced {
			t.Fatalf("Arity(%v) = (%d, %d, %v), want (%d, %d, %v)",
				c.op, pops, pushes, sequenced, c.pops, c.pushes, c.sequenced)
		}
	}
}

func TestArityForLogN(t *testing.T) {
	for n := 0; n <= 4; n++ {
		op := LOG0 + OpCode(n)
		pops, pushes, sequenced := Arity(op)
		if pops != 2+n || pushes != 0 || !sequenced {
			t.Fatalf("Arity(LOG%d) = (%d, %d, %v), want (%d, 0, true)", n, pops, pushes, sequenced, 2+n)
		}
	}
}

func TestArityDefaultsToNoStackEffectForUntabulatedOpcodes(t *testing.T) {
	pops, pushes, sequenced := Arity(STOP)
	if pops != 0 || pushes != 0 || sequenced {
		t.Fatalf("Arity(STOP) = (%d, %d, %v), want (0, 0, false)", pops, pushes, sequenced)
	}
}
