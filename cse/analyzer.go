package cse

import (
	"github.com/bnb-chain/asmcse/asm"
	"github.com/holiman/uint256"
)

// StoreKind distinguishes the two families of sequenced writes the analyzer
// tracks separately: persistent storage (SSTORE) and transient memory
// (MSTORE/MSTORE8).
type StoreKind int

const (
	StorageStore StoreKind = iota
	MemoryStore
)

// StoreOperation records one SSTORE/MSTORE as analyzed, in the order the
// code generator must reproduce it.
type StoreOperation struct {
	Kind  StoreKind
	Slot  ClassId
	Seq   int
	Value ClassId
}

type analyzerState int

const (
	accepting analyzerState = iota
	sealed
)

// Analyzer is the CommonSubexpressionEliminator: a symbolic executor that
// consumes the assembly items of one basic block and builds the picture
// (expression universe, final stack, store log) the code generator needs.
type Analyzer struct {
	ec       *ExpressionClasses
	state    analyzerState
	height   int // next unused stack slot index; current top is height-1
	stack    map[int]ClassId
	seq      int
	storage  map[ClassId]ClassId
	memory   map[ClassId]ClassId
	storeOps []StoreOperation
}

// NewAnalyzer constructs an Analyzer over the given (possibly shared)
// expression universe, ready to accept items from a fresh basic block.
func NewAnalyzer(ec *ExpressionClasses) *Analyzer {
	return &Analyzer{
		ec:      ec,
		stack:   make(map[int]ClassId),
		storage: make(map[ClassId]ClassId),
		memory:  make(map[ClassId]ClassId),
	}
}

// ExpressionClasses returns the universe this analyzer interns into.
func (a *Analyzer) ExpressionClasses() *ExpressionClasses { return a.ec }

// StoreOperations returns the store log in sequence order.
func (a *Analyzer) StoreOperations() []StoreOperation { return a.storeOps }

// Seal transitions the analyzer to Sealed, forbidding further FeedItems calls.
func (a *Analyzer) Seal() { a.state = sealed }

// Sealed reports whether this analyzer will no longer accept items.
func (a *Analyzer) Sealed() bool { return a.state == sealed }

// FinalStack snapshots the current height -> ClassId mapping. Only heights
// below the current height are live; entries a POP (or any other pop) left
// behind above it are not part of the stack and are omitted.
func (a *Analyzer) FinalStack() map[int]ClassId {
	out := make(map[int]ClassId, len(a.stack))
	for h, id := range a.stack {
		if h < a.height {
			out[h] = id
		}
	}
	return out
}

// FeedItems consumes items in order until the first basic-block breaker or
// until input is exhausted, whichever comes first. It returns the items
// starting at the first unconsumed one (the breaker itself is never
// consumed). Reaching a breaker seals the analyzer; exhausting the input
// without one does not, since the caller may still append more items to
// the same block before sealing explicitly.
func (a *Analyzer) FeedItems(items []asm.AssemblyItem) ([]asm.AssemblyItem, error) {
	if a.Sealed() {
		return nil, NewInternalInvariant("FeedItems called on a sealed analyzer")
	}
	for i, item := range items {
		if asm.BreaksBasicBlock(item) {
			a.Seal()
			return items[i:], nil
		}
		if err := a.feedItem(item); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (a *Analyzer) push(id ClassId) {
	a.stack[a.height] = id
	a.height++
}

// pop removes and returns the current top, lazily materializing it as an
// InitialStackItem at its height if it was never written (i.e. it predates
// this block or was only ever read, not pushed).
func (a *Analyzer) pop() ClassId {
	a.height--
	return a.resolve(a.height)
}

// peek returns the class at the given 0-based depth from the top without
// changing height (depth 0 is the current top).
func (a *Analyzer) peek(depth int) ClassId {
	return a.resolve(a.height - 1 - depth)
}

// set overwrites the class at the given 0-based depth from the top.
func (a *Analyzer) set(depth int, id ClassId) {
	a.stack[a.height-1-depth] = id
}

func (a *Analyzer) resolve(h int) ClassId {
	if id, ok := a.stack[h]; ok {
		return id
	}
	id := a.ec.InternInitialStackItem(h)
	a.stack[h] = id
	return id
}

func (a *Analyzer) feedItem(item asm.AssemblyItem) error {
	switch item.Kind {
	case asm.Push:
		a.push(a.ec.InternConstant(item.Value))
		return nil
	case asm.PushTag, asm.PushData, asm.PushSub, asm.PushSubSize, asm.PushProgramSize:
		op, tag := item.LeafKey()
		a.push(a.ec.InternLeaf(op, tag))
		return nil
	case asm.Tag:
		return NewInternalInvariant("feedItem called on a label/breaker item")
	}

	op := item.Op
	switch {
	case asm.IsDupInstruction(item):
		a.push(a.peek(op.DupDepth() - 1))
		return nil
	case asm.IsSwapInstruction(item):
		n := op.SwapDepth()
		top := a.peek(0)
		other := a.peek(n)
		a.set(0, other)
		a.set(n, top)
		return nil
	case op == asm.POP:
		a.pop()
		return nil
	case op == asm.SLOAD:
		slot := a.pop()
		if v, ok := a.storage[slot]; ok {
			a.push(v)
			return nil
		}
		a.push(a.ec.InternSynthetic(synthSLoadResult, []ClassId{slot}, a.seq))
		return nil
	case op == asm.SSTORE:
		slot := a.pop()
		value := a.pop()
		a.seq++
		if _, isConst := a.ec.KnownConstant(slot); !isConst {
			a.storage = make(map[ClassId]ClassId)
		}
		a.storage[slot] = value
		a.storeOps = append(a.storeOps, StoreOperation{Kind: StorageStore, Slot: slot, Seq: a.seq, Value: value})
		return nil
	case op == asm.MLOAD:
		offset := a.pop()
		if v, ok := a.memory[offset]; ok {
			a.push(v)
			return nil
		}
		a.push(a.ec.InternSynthetic(synthMLoadResult, []ClassId{offset}, a.seq))
		return nil
	case op == asm.MSTORE:
		offset := a.pop()
		value := a.pop()
		a.seq++
		a.storeMemory(offset, value)
		a.storeOps = append(a.storeOps, StoreOperation{Kind: MemoryStore, Slot: offset, Seq: a.seq, Value: value})
		return nil
	case op == asm.MSTORE8:
		offset := a.pop()
		value := a.pop()
		a.seq++
		// Byte-granularity writes defeat the 32-byte non-overlap exception
		// (SPEC_FULL.md design notes restrict precise aliasing to whole
		// words); conservatively drop the entire memory view.
		a.memory = make(map[ClassId]ClassId)
		a.storeOps = append(a.storeOps, StoreOperation{Kind: MemoryStore, Slot: offset, Seq: a.seq, Value: value})
		return nil
	}

	pops, pushes, sequenced := asm.Arity(op)
	args := make([]ClassId, pops)
	for i := 0; i < pops; i++ {
		args[i] = a.pop()
	}
	var seqPtr *int
	if sequenced {
		a.seq++
		a.storage = make(map[ClassId]ClassId)
		a.memory = make(map[ClassId]ClassId)
		s := a.seq
		seqPtr = &s
	}
	if pushes == 0 {
		return nil
	}
	a.push(a.ec.Intern(op, args, seqPtr))
	return nil
}

// storeMemory applies an MSTORE to the memory view, honoring the 32-byte
// non-overlap exception: writes to a known-constant offset only invalidate
// entries that could plausibly overlap it; a symbolic offset invalidates
// everything (grounded on the teacher's MemoryAccessor overlap checks).
func (a *Analyzer) storeMemory(offset, value ClassId) {
	c, isConst := a.ec.KnownConstant(offset)
	if !isConst {
		a.memory = make(map[ClassId]ClassId)
		a.memory[offset] = value
		return
	}
	for k := range a.memory {
		kc, kConst := a.ec.KnownConstant(k)
		if !kConst || overlaps32(c, kc) {
			delete(a.memory, k)
		}
	}
	a.memory[offset] = value
}

// overlaps32 reports whether the 32-byte memory ranges starting at a and b
// intersect.
func overlaps32(a, b *uint256.Int) bool {
	var diff uint256.Int
	if a.Cmp(b) >= 0 {
		diff.Sub(a, b)
	} else {
		diff.Sub(b, a)
	}
	return diff.LtUint64(32)
}
