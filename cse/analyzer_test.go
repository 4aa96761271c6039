package cse

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/bnb-chain/asmcse/asm"
)

func push(v uint64) asm.AssemblyItem {
	return asm.NewPush(uint256.NewInt(v))
}

func op(o asm.OpCode) asm.AssemblyItem {
	return asm.NewOperation(o)
}

func TestFeedItemsStopsAtBreaker(t *testing.T) {
	ec := NewExpressionClasses()
	an := NewAnalyzer(ec)
	items := []asm.AssemblyItem{push(1), push(2), op(asm.ADD), op(asm.JUMP), push(3)}

	rest, err := an.FeedItems(items)
	require.NoError(t, err)
	require.True(t, an.Sealed())
	require.Len(t, rest, 2)
	require.Equal(t, asm.JUMP, rest[0].Op)
}

func TestFeedItemsDuplicateAdditionSharesClass(t *testing.T) {
	ec := NewExpressionClasses()
	an := NewAnalyzer(ec)
	items := []asm.AssemblyItem{
		push(1), push(2), op(asm.ADD),
		push(2), push(1), op(asm.ADD),
	}
	_, err := an.FeedItems(items)
	require.NoError(t, err)

	final := an.FinalStack()
	require.Equal(t, final[0], final[1])
}

func TestDupAndSwap(t *testing.T) {
	ec := NewExpressionClasses()
	an := NewAnalyzer(ec)
	// Stack after pushes (bottom->top): [1, 2]. DUP2 copies the bottom
	// value to the top: [1, 2, 1]. SWAP1 exchanges the top two: [1, 1, 2].
	items := []asm.AssemblyItem{push(1), push(2), op(asm.DUP1 + 1), op(asm.SWAP1)}
	_, err := an.FeedItems(items)
	require.NoError(t, err)

	final := an.FinalStack()
	require.Len(t, final, 3)
	require.Equal(t, final[0], final[1])
	require.NotEqual(t, final[2], final[0])
}

func TestSLOADAfterSSTORESameConstantSlotReusesValue(t *testing.T) {
	ec := NewExpressionClasses()
	an := NewAnalyzer(ec)
	items := []asm.AssemblyItem{
		push(0xA), op(asm.SLOAD),
		push(0xB), push(0xA), op(asm.SSTORE), // value pushed first, slot pushed last (top); SSTORE pops slot then value
		push(0xA), op(asm.SLOAD),
	}
	_, err := an.FeedItems(items)
	require.NoError(t, err)

	final := an.FinalStack()
	require.Len(t, an.StoreOperations(), 1)
	// Second SLOAD observes the just-written constant: reuses the stored
	// value's class directly rather than allocating a new SLOAD result.
	valueClass := an.StoreOperations()[0].Value
	require.Equal(t, valueClass, final[1])
	require.NotEqual(t, final[0], final[1], "first SLOAD predates the store and must stay distinct")
}

func TestSLOADAcrossSymbolicSSTOREInvalidatesStorageView(t *testing.T) {
	ec := NewExpressionClasses()
	an := NewAnalyzer(ec)
	items := []asm.AssemblyItem{
		push(0xA), op(asm.SLOAD), // load #1, slot constant 0xA
		op(asm.DUP1),             // symbolic slot = the loaded value itself
		push(0x1), op(asm.ADD),   // value to store
		op(asm.SWAP1),
		// stack: ..., value, slot(symbolic) -> SSTORE pops slot, then value
		op(asm.SSTORE),
	}
	_, err := an.FeedItems(items)
	require.NoError(t, err)
	require.Len(t, an.StoreOperations(), 1)
	firstLoad := an.StoreOperations()[0].Slot

	items2 := []asm.AssemblyItem{push(0xA), op(asm.SLOAD)}
	_, err = an.FeedItems(items2)
	require.NoError(t, err)

	final := an.FinalStack()
	require.NotEqual(t, firstLoad, final[0], "a symbolic-slot SSTORE must invalidate the entire storage view")
}

func TestMLOADReusesValueJustWrittenBySTORE(t *testing.T) {
	ec := NewExpressionClasses()
	an := NewAnalyzer(ec)
	items := []asm.AssemblyItem{
		push(0x42), push(0), op(asm.MSTORE), // value pushed first, offset pushed last (top); write at offset 0
		push(0), op(asm.MLOAD),
	}
	_, err := an.FeedItems(items)
	require.NoError(t, err)

	final := an.FinalStack()
	require.Len(t, an.StoreOperations(), 1)
	store := an.StoreOperations()[0]
	require.Equal(t, MemoryStore, store.Kind)
	require.Equal(t, store.Value, final[0], "MLOAD at a just-written constant offset must reuse the stored value's class")
}

func TestMSTORENonOverlappingConstantOffsetPreservesCachedLoad(t *testing.T) {
	ec := NewExpressionClasses()
	an := NewAnalyzer(ec)
	items := []asm.AssemblyItem{
		push(0x42), push(0), op(asm.MSTORE), // write at offset 0
		push(0), op(asm.MLOAD),              // cache hit, class A
		push(0x99), push(64), op(asm.MSTORE), // write at offset 64, far enough not to overlap [0,32)
		push(0), op(asm.MLOAD),              // should still hit the offset-0 cache
	}
	_, err := an.FeedItems(items)
	require.NoError(t, err)

	final := an.FinalStack()
	require.Equal(t, final[0], final[1], "a non-overlapping constant-offset write must not evict an unrelated cached load")
}

func TestSequencedOperationsNeverUnifyAcrossDistinctSeq(t *testing.T) {
	ec := NewExpressionClasses()
	an := NewAnalyzer(ec)
	items := []asm.AssemblyItem{
		push(0), push(32), op(asm.KECCAK256),
		push(0), push(32), op(asm.KECCAK256),
	}
	_, err := an.FeedItems(items)
	require.NoError(t, err)

	final := an.FinalStack()
	require.NotEqual(t, final[0], final[1], "two textually-identical KECCAK256 calls must never unify")
}
