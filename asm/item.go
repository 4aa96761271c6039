package asm

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Kind discriminates the variants of AssemblyItem. Dispatch on Kind, not on
// field presence, mirroring the tagged-union/variant style the rest of the
// toolchain uses for instruction-like types.
type Kind int

const (
	// Operation carries a real EVM opcode (arithmetic, stack, control flow, ...).
	Operation Kind = iota
	// Push carries a literal constant pushed onto the stack.
	Push
	// PushTag carries the (not yet resolved) address of a label.
	PushTag
	// Tag marks a jump destination; it is a label, not an executable item.
	Tag
	// PushData carries an opaque data-segment address (e.g. constructor args).
	PushData
	// PushSub carries the address of a compiled sub-object (nested contract).
	PushSub
	// PushSubSize carries the size of a compiled sub-object.
	PushSubSize
	// PushProgramSize carries the total size of the assembled program.
	PushProgramSize
)

// AssemblyItem is one element of the input/output streams the CSE consumes
// and produces. It is a tagged union: exactly the fields relevant to Kind
// are meaningful for a given value.
type AssemblyItem struct {
	Kind  Kind
	Value *uint256.Int // for Push
	Op    OpCode       // for Operation
	Tag   int          // for PushTag / Tag / PushData / PushSub / PushSubSize
}

// NewPush builds a Push item for the given 256-bit constant.
func NewPush(v *uint256.Int) AssemblyItem {
	return AssemblyItem{Kind: Push, Value: v}
}

// NewOperation builds an Operation item for op.
func NewOperation(op OpCode) AssemblyItem {
	return AssemblyItem{Kind: Operation, Op: op}
}

// NewPushTag builds a PushTag item referencing the given label id.
func NewPushTag(id int) AssemblyItem {
	return AssemblyItem{Kind: PushTag, Tag: id}
}

// NewTag builds a Tag (label) item.
func NewTag(id int) AssemblyItem {
	return AssemblyItem{Kind: Tag, Tag: id}
}

// NewPushData builds a PushData item referencing the given data-segment id.
func NewPushData(id int) AssemblyItem {
	return AssemblyItem{Kind: PushData, Tag: id}
}

// NewPushSub builds a PushSub item referencing the given sub-object id.
func NewPushSub(id int) AssemblyItem {
	return AssemblyItem{Kind: PushSub, Tag: id}
}

// NewPushSubSize builds a PushSubSize item referencing the given sub-object id.
func NewPushSubSize(id int) AssemblyItem {
	return AssemblyItem{Kind: PushSubSize, Tag: id}
}

// NewPushProgramSize builds a PushProgramSize item.
func NewPushProgramSize() AssemblyItem {
	return AssemblyItem{Kind: PushProgramSize}
}

// LeafItem reconstructs the AssemblyItem a (synthetic op, tag) leaf key
// denotes, the inverse of LeafKey, for use by the code generator when
// re-emitting a class whose definition is an opaque leaf rather than a real
// operation.
func LeafItem(op OpCode, tag int) (AssemblyItem, bool) {
	switch op {
	case synthPushTag:
		return NewPushTag(tag), true
	case synthPushData:
		return NewPushData(tag), true
	case synthPushSub:
		return NewPushSub(tag), true
	case synthPushSubSize:
		return NewPushSubSize(tag), true
	case synthPushProgramSize:
		return NewPushProgramSize(), true
	default:
		return AssemblyItem{}, false
	}
}

func (it AssemblyItem) String() string {
	switch it.Kind {
	case Operation:
		return it.Op.String()
	case Push:
		if it.Value == nil {
			return "PUSH <nil>"
		}
		return fmt.Sprintf("PUSH 0x%x", it.Value)
	case PushTag:
		return fmt.Sprintf("PUSHTAG #%d", it.Tag)
	case Tag:
		return fmt.Sprintf("tag_%d:", it.Tag)
	case PushData:
		return fmt.Sprintf("PUSHDATA #%d", it.Tag)
	case PushSub:
		return fmt.Sprintf("PUSHSUB #%d", it.Tag)
	case PushSubSize:
		return fmt.Sprintf("PUSHSUBSIZE #%d", it.Tag)
	case PushProgramSize:
		return "PUSHPROGRAMSIZE"
	default:
		return "<invalid AssemblyItem>"
	}
}

// LeafKey returns the (opcode, tag) pair that uniquely identifies this item
// as a leaf expression, for item kinds the CSE treats as an opaque push
// (labels' address operands, data-segment/sub-object references). The
// opcode component is always a synthetic tag distinct from any real EVM
// opcode, so e.g. a PushTag and a numeric Push of the same bit pattern can
// never unify.
func (it AssemblyItem) LeafKey() (OpCode, int) {
	return it.syntheticOp(), it.Tag
}

// syntheticOp returns the opcode used to key this item's expression class in
// the universe. Real operations key on their own opcode; every other kind
// keys on a synthetic tag so it can never be confused with a numeric push of
// the same bit pattern (PUSH 0xb0 must not unify with a PushTag, say).
func (it AssemblyItem) syntheticOp() OpCode {
	switch it.Kind {
	case Operation:
		return it.Op
	case Push:
		return PUSH1 // canonical: all literal pushes share one opcode tag
	case PushTag:
		return synthPushTag
	case PushData:
		return synthPushData
	case PushSub:
		return synthPushSub
	case PushSubSize:
		return synthPushSubSize
	case PushProgramSize:
		return synthPushProgramSize
	default:
		return synthTag
	}
}
