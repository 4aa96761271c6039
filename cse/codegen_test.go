package cse

import (
	"testing"

	stderrors "errors"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/bnb-chain/asmcse/asm"
)

func TestGenerateCodeNoOpWhenAlreadyMatching(t *testing.T) {
	ec := NewExpressionClasses()
	a := ec.InternConstant(uint256.NewInt(1))
	cg := NewCodeGenerator(ec, nil)

	out, err := cg.GenerateCode(map[int]ClassId{0: a}, map[int]ClassId{0: a})
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestGenerateCodePushesMissingConstant(t *testing.T) {
	ec := NewExpressionClasses()
	c := ec.InternConstant(uint256.NewInt(42))
	cg := NewCodeGenerator(ec, nil)

	out, err := cg.GenerateCode(map[int]ClassId{}, map[int]ClassId{0: c})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, asm.Push, out[0].Kind)
	require.Equal(t, uint64(42), out[0].Value.Uint64())
}

func TestGenerateCodeDuplicatesAnExistingValue(t *testing.T) {
	ec := NewExpressionClasses()
	x := ec.InternInitialStackItem(0)
	cg := NewCodeGenerator(ec, nil)

	out, err := cg.GenerateCode(
		map[int]ClassId{0: x},
		map[int]ClassId{0: x, 1: x},
	)
	require.NoError(t, err)
	require.Len(t, out, 5)
	require.Equal(t, asm.DUP1, out[0].Op)
	require.Equal(t, asm.DUP1, out[1].Op)
	require.Equal(t, asm.SWAP1, out[2].Op)
	require.Equal(t, asm.SWAP1+1, out[3].Op)
	require.Equal(t, asm.POP, out[4].Op)
	require.True(t, cg.IsFinal(x))
}

func TestGenerateCodeStackTooDeepWhenInitialItemFellOutOfScope(t *testing.T) {
	ec := NewExpressionClasses()
	x := ec.InternInitialStackItem(-5)
	cg := NewCodeGenerator(ec, nil)

	_, err := cg.GenerateCode(map[int]ClassId{}, map[int]ClassId{0: x})
	require.Error(t, err)
	var tooDeep *StackTooDeepError
	require.True(t, stderrors.As(err, &tooDeep))
}

func TestDiscardBelowPopsEverythingWhenKeepIsZero(t *testing.T) {
	ec := NewExpressionClasses()
	a := ec.InternConstant(uint256.NewInt(1))
	b := ec.InternConstant(uint256.NewInt(2))
	cg := NewCodeGenerator(ec, nil)
	cg.genStack = []ClassId{a, b}

	err := cg.discardBelow(0)
	require.NoError(t, err)
	require.Len(t, cg.generated, 2)
	for _, item := range cg.generated {
		require.Equal(t, asm.POP, item.Op)
	}
	require.Empty(t, cg.genStack)
}

func TestEmitSwapCancelsBackToBackIdenticalSwaps(t *testing.T) {
	ec := NewExpressionClasses()
	a := ec.InternConstant(uint256.NewInt(1))
	b := ec.InternConstant(uint256.NewInt(2))
	cg := NewCodeGenerator(ec, nil)
	cg.genStack = []ClassId{a, b}

	cg.emitSwap(1)
	cg.emitSwap(1)
	require.Empty(t, cg.generated, "two identical back-to-back SWAPs must cancel")
	require.Equal(t, []ClassId{a, b}, cg.genStack, "the stack must return to its original order")
}

func TestDiscardBelowPreservesOrderOfKeptEntries(t *testing.T) {
	ec := NewExpressionClasses()
	junk := ec.InternConstant(uint256.NewInt(99))
	c1 := ec.InternConstant(uint256.NewInt(1))
	c2 := ec.InternConstant(uint256.NewInt(2))
	cg := NewCodeGenerator(ec, nil)
	cg.genStack = []ClassId{junk, c1, c2}

	err := cg.discardBelow(2)
	require.NoError(t, err)
	require.Equal(t, []ClassId{c1, c2}, cg.genStack, "c1 must stay below c2 after the junk entry beneath them is discarded")
}

func TestGenerateCodeReplaysStoreEvenWhenStackAlreadyMatches(t *testing.T) {
	ec := NewExpressionClasses()
	slot := ec.InternConstant(uint256.NewInt(5))
	value := ec.InternConstant(uint256.NewInt(9))
	cg := NewCodeGenerator(ec, []StoreOperation{{Kind: StorageStore, Slot: slot, Seq: 1, Value: value}})

	out, err := cg.GenerateCode(map[int]ClassId{}, map[int]ClassId{})
	require.NoError(t, err)
	require.NotEmpty(t, out, "a pending store must be emitted even when the final stack shape is trivially empty")
	last := out[len(out)-1]
	require.Equal(t, asm.SSTORE, last.Op)
}
