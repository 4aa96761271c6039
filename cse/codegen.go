package cse

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/holiman/uint256"

	"github.com/bnb-chain/asmcse/asm"
)

// maxStackWindow is the EVM's DUP16/SWAP16 limit: the deepest slot either
// instruction family can reach.
const maxStackWindow = 16

// CodeGenerator is the CSECodeGenerator: given a sealed Analyzer's
// expression universe and store log, it realizes a target stack layout
// from an initial one with minimal recomputation.
type CodeGenerator struct {
	ec       *ExpressionClasses
	storeOps []StoreOperation

	generated     []asm.AssemblyItem
	genStack      []ClassId // bottom-to-top
	emittedStore  map[int]bool
	finalClasses  mapset.Set[ClassId]
	used          bool
}

// NewCodeGenerator constructs a generator over ec (shared with, and
// extended by, the sealed Analyzer) and the analyzer's store-operations log.
func NewCodeGenerator(ec *ExpressionClasses, storeOps []StoreOperation) *CodeGenerator {
	return &CodeGenerator{
		ec:           ec,
		storeOps:     storeOps,
		emittedStore: make(map[int]bool),
		finalClasses: mapset.NewSet[ClassId](),
	}
}

// GenerateCode emits assembly items that transform a real stack matching
// initialStack into one matching targetStack, replaying all store
// operations from the log in their original order. It may be called at
// most once.
func (g *CodeGenerator) GenerateCode(initialStack, targetStack map[int]ClassId) ([]asm.AssemblyItem, error) {
	if g.used {
		return nil, NewInternalInvariant("GenerateCode invoked more than once")
	}
	g.used = true

	g.genStack = sortedByHeight(initialStack)
	desired := sortedByHeight(targetStack)
	for _, id := range desired {
		g.finalClasses.Add(id)
	}

	if len(g.storeOps) == 0 && stackAlreadyMatches(g.genStack, desired) {
		return g.generated, nil
	}

	// Targets are materialized first, not store operations: a target that is
	// itself a sequenced load (or depends on one) pulls in exactly the
	// stores that must precede it via gateSequenced, in seq order, as a
	// side effect of generateFresh. Performing every store unconditionally
	// up front would be wrong whenever a target's value predates a later
	// store in the original program — it would observe the store's effect
	// instead of the historical value.
	for _, want := range desired {
		if err := g.materialize(want); err != nil {
			return nil, err
		}
	}

	// Any store no target ever depended on (its value was never re-read in
	// this block) still must run for its side effect, in its original order.
	for _, op := range g.storeOps {
		if err := g.performStore(op); err != nil {
			return nil, err
		}
	}

	if err := g.discardBelow(len(desired)); err != nil {
		return nil, err
	}
	return g.generated, nil
}

// stackAlreadyMatches is the fast path for the common case where the target
// is already exactly the stack's current top (e.g. a block whose net
// effect simplifies away entirely, per SPEC_FULL.md's identity-law
// scenario): nothing needs to be emitted at all.
func stackAlreadyMatches(genStack, desired []ClassId) bool {
	if len(genStack) != len(desired) {
		return false
	}
	for i := range desired {
		if genStack[i] != desired[i] {
			return false
		}
	}
	return true
}

func sortedByHeight(m map[int]ClassId) []ClassId {
	heights := make([]int, 0, len(m))
	for h := range m {
		heights = append(heights, h)
	}
	sort.Ints(heights)
	out := make([]ClassId, len(heights))
	for i, h := range heights {
		out[i] = m[h]
	}
	return out
}

// performStore replays one SSTORE/MSTORE, first materializing its value and
// slot operands (slot ends up on top, matching EVM order and the analyzer's
// pop order: slot is popped first), then emitting the store item itself. A
// no-op if already emitted, which happens when a sequenced load elsewhere
// already forced it out of order.
func (g *CodeGenerator) performStore(op StoreOperation) error {
	if g.emittedStore[op.Seq] {
		return nil
	}
	if err := g.materialize(op.Value); err != nil {
		return err
	}
	if err := g.materialize(op.Slot); err != nil {
		return err
	}
	switch op.Kind {
	case StorageStore:
		g.emit(asm.NewOperation(asm.SSTORE))
	case MemoryStore:
		g.emit(asm.NewOperation(asm.MSTORE))
	}
	g.genStack = g.genStack[:len(g.genStack)-2]
	g.emittedStore[op.Seq] = true
	return nil
}

// materialize always leaves a fresh copy of id on top, even if id is
// already the current top (used by final alignment, where a target
// position may repeat a value already produced for an earlier position).
func (g *CodeGenerator) materialize(id ClassId) error {
	if depth, ok := g.findDepth(id); ok {
		if depth+1 > maxStackWindow {
			return g.generateFresh(id)
		}
		g.emitDup(depth + 1)
		return nil
	}
	return g.generateFresh(id)
}

// findDepth returns the 0-indexed depth from the top of the nearest
// occurrence of id on the generator stack.
func (g *CodeGenerator) findDepth(id ClassId) (int, bool) {
	for i := len(g.genStack) - 1; i >= 0; i-- {
		if g.genStack[i] == id {
			return len(g.genStack) - 1 - i, true
		}
	}
	return 0, false
}

// generateFresh builds id from its defining expression: a literal constant,
// an opaque leaf, a sequenced load, or an operation over recursively
// ensured operands.
func (g *CodeGenerator) generateFresh(id ClassId) error {
	expr, err := g.ec.Representative(id)
	if err != nil {
		return err
	}

	if expr.Const != nil {
		g.emitPush(expr.Const)
		g.genStack = append(g.genStack, id)
		return nil
	}

	switch expr.Synth {
	case synthInitialStackItem:
		return NewStackTooDeep(id, maxStackWindow+1)
	case synthSLoadResult:
		if err := g.gateSequenced(*expr.Seq, StorageStore); err != nil {
			return err
		}
		if err := g.materialize(expr.Args[0]); err != nil {
			return err
		}
		g.emit(asm.NewOperation(asm.SLOAD))
		g.genStack[len(g.genStack)-1] = id
		return nil
	case synthMLoadResult:
		if err := g.gateSequenced(*expr.Seq, MemoryStore); err != nil {
			return err
		}
		if err := g.materialize(expr.Args[0]); err != nil {
			return err
		}
		g.emit(asm.NewOperation(asm.MLOAD))
		g.genStack[len(g.genStack)-1] = id
		return nil
	}

	if len(expr.Args) == 0 {
		if item, ok := asm.LeafItem(expr.Op, expr.Height); ok {
			g.emit(item)
			g.genStack = append(g.genStack, id)
			return nil
		}
		// Zero-argument real opcode (ADDRESS, CALLER, GAS, ...).
		if expr.Seq != nil {
			if err := g.gateSequenced(*expr.Seq, StorageStore, MemoryStore); err != nil {
				return err
			}
		}
		g.emit(asm.NewOperation(expr.Op))
		g.genStack = append(g.genStack, id)
		return nil
	}

	if expr.Seq != nil {
		if err := g.gateSequenced(*expr.Seq, StorageStore, MemoryStore); err != nil {
			return err
		}
	}
	for k := len(expr.Args) - 1; k >= 0; k-- {
		if err := g.materialize(expr.Args[k]); err != nil {
			return err
		}
	}
	g.emit(asm.NewOperation(expr.Op))
	g.genStack = g.genStack[:len(g.genStack)-len(expr.Args)]
	g.genStack = append(g.genStack, id)
	return nil
}

// gateSequenced ensures every store operation of the given kinds at or
// before the given sequence number has already been emitted, so a load
// never observes state from "the future" relative to the original program.
// Loads don't advance the sequence counter, so a load can carry the exact
// same seq as the write that must precede it (the write that produced the
// state the load observes) — the comparison must therefore be <=, not <.
func (g *CodeGenerator) gateSequenced(seq int, kinds ...StoreKind) error {
	want := make(map[StoreKind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	for _, op := range g.storeOps {
		if op.Seq > seq || !want[op.Kind] || g.emittedStore[op.Seq] {
			continue
		}
		if err := g.performStore(op); err != nil {
			return err
		}
	}
	return nil
}

// discardBelow removes everything below the top `keep` entries. A single
// SWAP_keep;POP would bring the unwanted element to the top for popping,
// but it would also drop the displaced former top down into the vacated
// slot beneath the kept window, permuting the kept entries' order. Instead,
// each unwanted element is rotated out through the whole kept window via
// SWAP_1, SWAP_2, ..., SWAP_keep (in that order) before being popped: this
// is the standard stack-rotation idiom for moving the bottom of a window to
// its top while leaving everything above it in its original relative order.
func (g *CodeGenerator) discardBelow(keep int) error {
	for len(g.genStack) > keep {
		if keep == 0 {
			g.emit(asm.NewOperation(asm.POP))
			g.genStack = g.genStack[:len(g.genStack)-1]
			continue
		}
		if keep > maxStackWindow {
			return NewStackTooDeep(g.genStack[len(g.genStack)-1], keep)
		}
		for n := 1; n <= keep; n++ {
			g.emitSwap(n)
		}
		g.emit(asm.NewOperation(asm.POP))
		g.genStack = g.genStack[:len(g.genStack)-1]
	}
	return nil
}

func (g *CodeGenerator) emit(item asm.AssemblyItem) {
	g.generated = append(g.generated, item)
}

func (g *CodeGenerator) emitPush(v *uint256.Int) {
	g.emit(asm.NewPush(v))
}

// IsFinal reports whether id is one of the classes the target stack
// requires, mirroring the original design's m_finalClasses bookkeeping.
func (g *CodeGenerator) IsFinal(id ClassId) bool {
	return g.finalClasses.Contains(id)
}

func (g *CodeGenerator) emitDup(n int) {
	g.emit(asm.NewOperation(asm.DUP1 + asm.OpCode(n-1)))
	top := g.genStack[len(g.genStack)-n]
	g.genStack = append(g.genStack, top)
}

// emitSwap emits SWAP_n, applying the elision rule: if the previous
// emitted instruction was an identical SWAP_n, the two cancel (the second
// is never emitted and the first is retracted), since back-to-back
// identical swaps are the identity.
func (g *CodeGenerator) emitSwap(n int) {
	if len(g.generated) > 0 {
		last := g.generated[len(g.generated)-1]
		if last.Kind == asm.Operation && last.Op == asm.SWAP1+asm.OpCode(n-1) {
			g.generated = g.generated[:len(g.generated)-1]
			g.swapStack(n)
			return
		}
	}
	g.emit(asm.NewOperation(asm.SWAP1 + asm.OpCode(n-1)))
	g.swapStack(n)
}

func (g *CodeGenerator) swapStack(n int) {
	top := len(g.genStack) - 1
	other := top - n
	g.genStack[top], g.genStack[other] = g.genStack[other], g.genStack[top]
}
