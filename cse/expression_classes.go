package cse

import (
	"strconv"
	"strings"

	"github.com/bnb-chain/asmcse/asm"
	"github.com/holiman/uint256"
)

// ClassId names one equivalence class of expressions proven equal by the
// analyzer. It is opaque beyond ordering (used for commutative-argument
// sorting and tie-breaking) and never reused within a block.
type ClassId int

// InvalidClassId denotes "no value / not present on stack".
const InvalidClassId ClassId = -1

// synthKind distinguishes the handful of non-opcode leaf expressions the
// analyzer introduces: values already on the stack at block entry, and the
// results of sequenced loads.
type synthKind int

const (
	synthNone synthKind = iota
	synthInitialStackItem
	synthSLoadResult
	synthMLoadResult
)

// Expression is the canonical, immutable definition of a class: an opcode
// (or synthetic leaf tag) applied to an ordered list of argument classes,
// plus an optional sequence number for state-dependent results. Expressions
// reference arguments by ClassId rather than by pointer, matching the
// original design's "expression DAG without pointers" (see SPEC_FULL.md §9).
type Expression struct {
	Op    asm.OpCode
	Args  []ClassId
	Seq   *int
	Synth synthKind
	// Height carries the stack height for synthInitialStackItem.
	Height int
	// Const is set when this expression is a literal/folded 256-bit constant.
	Const *uint256.Int
}

func (e Expression) isLeaf() bool { return len(e.Args) == 0 }

// ExpressionClasses is the hash-consed universe of expressions for one
// basic block. It grows monotonically: once created, a ClassId's defining
// Expression never changes.
type ExpressionClasses struct {
	defs  []Expression
	index map[string]ClassId
}

// NewExpressionClasses constructs an empty universe.
func NewExpressionClasses() *ExpressionClasses {
	return &ExpressionClasses{index: make(map[string]ClassId)}
}

// Representative returns the defining Expression for id.
func (ec *ExpressionClasses) Representative(id ClassId) (Expression, error) {
	if int(id) < 0 || int(id) >= len(ec.defs) {
		return Expression{}, NewInternalInvariant("representative lookup of unknown ClassId")
	}
	return ec.defs[id], nil
}

// KnownConstant returns the folded 256-bit value of id's class, if any.
func (ec *ExpressionClasses) KnownConstant(id ClassId) (*uint256.Int, bool) {
	if int(id) < 0 || int(id) >= len(ec.defs) {
		return nil, false
	}
	if c := ec.defs[id].Const; c != nil {
		return c, true
	}
	return nil, false
}

// InternConstant interns a literal 256-bit value as a leaf expression.
func (ec *ExpressionClasses) InternConstant(v *uint256.Int) ClassId {
	key := "K:" + v.Hex()
	if id, ok := ec.index[key]; ok {
		return id
	}
	return ec.store(key, Expression{Op: asm.PUSH1, Const: v})
}

// InternInitialStackItem interns the lazily-materialized value already
// present on the real stack at the given (possibly negative) height.
func (ec *ExpressionClasses) InternInitialStackItem(height int) ClassId {
	key := "I:" + strconv.Itoa(height)
	if id, ok := ec.index[key]; ok {
		return id
	}
	return ec.store(key, Expression{Synth: synthInitialStackItem, Height: height})
}

// InternLeaf interns a tagged opaque leaf such as a PushTag/PushData/
// PushSub reference: same (op, tag) pair always yields the same class, and
// the op component guarantees it never unifies with a numeric constant of
// equal tag value.
func (ec *ExpressionClasses) InternLeaf(op asm.OpCode, tag int) ClassId {
	key := exprKey(op, nil, nil, synthNone, tag)
	if id, ok := ec.index[key]; ok {
		return id
	}
	return ec.store(key, Expression{Op: op, Height: tag})
}

// Intern returns the canonical ClassId for (op, args, seq), applying
// commutative-argument normalization and algebraic simplification first.
// When simplification rewrites the expression, the raw (pre-simplification)
// key is also mapped to the simplified class, so future identical raw
// expressions resolve instantly without re-deriving the rewrite.
func (ec *ExpressionClasses) Intern(op asm.OpCode, args []ClassId, seq *int) ClassId {
	if asm.IsCommutativeOperation(asm.NewOperation(op)) && len(args) == 2 {
		if args[0] > args[1] {
			args = []ClassId{args[1], args[0]}
		} else {
			args = append([]ClassId(nil), args...)
		}
	} else {
		args = append([]ClassId(nil), args...)
	}

	rawKey := exprKey(op, args, seq, synthNone, 0)
	if id, ok := ec.index[rawKey]; ok {
		return id
	}

	if seq == nil {
		if id, ok := ec.simplify(op, args); ok {
			ec.index[rawKey] = id
			return id
		}
	}

	return ec.store(rawKey, Expression{Op: op, Args: args, Seq: seq})
}

// InternSynthetic interns a sequenced synthetic leaf (SLoadResult /
// MLoadResult) over the given operand classes.
func (ec *ExpressionClasses) InternSynthetic(kind synthKind, args []ClassId, seq int) ClassId {
	args = append([]ClassId(nil), args...)
	key := exprKey(asm.STOP, args, &seq, kind, 0)
	if id, ok := ec.index[key]; ok {
		return id
	}
	return ec.store(key, Expression{Args: args, Seq: &seq, Synth: kind})
}

// InitialStackItems returns every InitialStackItem class this universe has
// interned so far, keyed by height. A caller driving a CodeGenerator over a
// sealed Analyzer's universe needs this as the generator's initial stack:
// any such class that the block referenced but is missing from it cannot be
// rebuilt (the value predates this block and there is nothing to recompute
// it from), and materializing it fails with StackTooDeep.
func (ec *ExpressionClasses) InitialStackItems() map[int]ClassId {
	out := make(map[int]ClassId)
	for id, e := range ec.defs {
		if e.Synth == synthInitialStackItem {
			out[e.Height] = ClassId(id)
		}
	}
	return out
}

func (ec *ExpressionClasses) store(key string, e Expression) ClassId {
	id := ClassId(len(ec.defs))
	ec.defs = append(ec.defs, e)
	ec.index[key] = id
	return id
}

func exprKey(op asm.OpCode, args []ClassId, seq *int, synth synthKind, height int) string {
	var b strings.Builder
	b.WriteByte(byte(synth))
	b.WriteByte(':')
	b.WriteByte(byte(op))
	b.WriteByte(':')
	if seq != nil {
		b.WriteString(strconv.Itoa(*seq))
	}
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(height))
	for _, a := range args {
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(int(a)))
	}
	return b.String()
}

// simplify attempts the rewrite set from SPEC_FULL.md §4.1: constant
// folding, identity/absorbing laws, and double-negation. It returns the id
// of an already-existing (or freshly interned constant) class, or false if
// no rewrite applies and the raw expression should stand as its own class.
func (ec *ExpressionClasses) simplify(op asm.OpCode, args []ClassId) (ClassId, bool) {
	if vals, ok := ec.allConstants(args); ok {
		if folded, ok := foldConstant(op, vals); ok {
			return ec.InternConstant(folded), true
		}
	}

	switch op {
	case asm.ADD, asm.OR, asm.XOR:
		if id, other, ok := ec.constZeroArg(args); ok {
			_ = id
			return other, true
		}
	case asm.MUL:
		if id, other, ok := ec.constOneArg(args); ok {
			_ = id
			return other, true
		}
		if _, _, ok := ec.constZeroArg(args); ok {
			return ec.InternConstant(uint256.NewInt(0)), true
		}
	case asm.AND:
		if _, other, ok := ec.constAllOnesArg(args); ok {
			return other, true
		}
		if _, _, ok := ec.constZeroArg(args); ok {
			return ec.InternConstant(uint256.NewInt(0)), true
		}
	case asm.NOT:
		if len(args) == 1 {
			if inner, err := ec.Representative(args[0]); err == nil && inner.Op == asm.NOT && len(inner.Args) == 1 {
				return inner.Args[0], true
			}
		}
	}
	return 0, false
}

func (ec *ExpressionClasses) allConstants(args []ClassId) ([]*uint256.Int, bool) {
	out := make([]*uint256.Int, len(args))
	for i, a := range args {
		c, ok := ec.KnownConstant(a)
		if !ok {
			return nil, false
		}
		out[i] = c
	}
	return out, true
}

// constZeroArg reports whether exactly one of a two-arg expression's
// arguments is the constant 0, returning its index and the other argument.
func (ec *ExpressionClasses) constZeroArg(args []ClassId) (idx int, other ClassId, ok bool) {
	if len(args) != 2 {
		return 0, InvalidClassId, false
	}
	for i, a := range args {
		if c, isConst := ec.KnownConstant(a); isConst && c.IsZero() {
			return i, args[1-i], true
		}
	}
	return 0, InvalidClassId, false
}

func (ec *ExpressionClasses) constOneArg(args []ClassId) (idx int, other ClassId, ok bool) {
	if len(args) != 2 {
		return 0, InvalidClassId, false
	}
	one := uint256.NewInt(1)
	for i, a := range args {
		if c, isConst := ec.KnownConstant(a); isConst && c.Eq(one) {
			return i, args[1-i], true
		}
	}
	return 0, InvalidClassId, false
}

func (ec *ExpressionClasses) constAllOnesArg(args []ClassId) (idx int, other ClassId, ok bool) {
	if len(args) != 2 {
		return 0, InvalidClassId, false
	}
	allOnes := new(uint256.Int).Not(uint256.NewInt(0))
	for i, a := range args {
		if c, isConst := ec.KnownConstant(a); isConst && c.Eq(allOnes) {
			return i, args[1-i], true
		}
	}
	return 0, InvalidClassId, false
}

// foldConstant evaluates op over known-constant operands per EVM semantics,
// mirroring the per-opcode switch in the teacher's compiler.doPeepHole.
// Unsigned wraparound is used throughout except for the two's-complement
// ops (SDIV, SMOD, SLT, SGT, SAR); division/modulus by zero folds to zero.
func foldConstant(op asm.OpCode, vals []*uint256.Int) (*uint256.Int, bool) {
	r := new(uint256.Int)
	switch {
	case op == asm.ADD && len(vals) == 2:
		return r.Add(vals[0], vals[1]), true
	case op == asm.SUB && len(vals) == 2:
		return r.Sub(vals[0], vals[1]), true
	case op == asm.MUL && len(vals) == 2:
		return r.Mul(vals[0], vals[1]), true
	case op == asm.DIV && len(vals) == 2:
		if vals[1].IsZero() {
			return uint256.NewInt(0), true
		}
		return r.Div(vals[0], vals[1]), true
	case op == asm.SDIV && len(vals) == 2:
		if vals[1].IsZero() {
			return uint256.NewInt(0), true
		}
		return r.SDiv(vals[0], vals[1]), true
	case op == asm.MOD && len(vals) == 2:
		if vals[1].IsZero() {
			return uint256.NewInt(0), true
		}
		return r.Mod(vals[0], vals[1]), true
	case op == asm.SMOD && len(vals) == 2:
		if vals[1].IsZero() {
			return uint256.NewInt(0), true
		}
		return r.SMod(vals[0], vals[1]), true
	case op == asm.ADDMOD && len(vals) == 3:
		if vals[2].IsZero() {
			return uint256.NewInt(0), true
		}
		return r.AddMod(vals[0], vals[1], vals[2]), true
	case op == asm.MULMOD && len(vals) == 3:
		if vals[2].IsZero() {
			return uint256.NewInt(0), true
		}
		return r.MulMod(vals[0], vals[1], vals[2]), true
	case op == asm.EXP && len(vals) == 2:
		return r.Exp(vals[0], vals[1]), true
	case op == asm.SIGNEXTEND && len(vals) == 2:
		return r.ExtendSign(vals[1], vals[0]), true
	case op == asm.LT && len(vals) == 2:
		return boolInt(vals[0].Lt(vals[1])), true
	case op == asm.GT && len(vals) == 2:
		return boolInt(vals[0].Gt(vals[1])), true
	case op == asm.SLT && len(vals) == 2:
		return boolInt(vals[0].Slt(vals[1])), true
	case op == asm.SGT && len(vals) == 2:
		return boolInt(vals[0].Sgt(vals[1])), true
	case op == asm.EQ && len(vals) == 2:
		return boolInt(vals[0].Eq(vals[1])), true
	case op == asm.ISZERO && len(vals) == 1:
		return boolInt(vals[0].IsZero()), true
	case op == asm.AND && len(vals) == 2:
		return r.And(vals[0], vals[1]), true
	case op == asm.OR && len(vals) == 2:
		return r.Or(vals[0], vals[1]), true
	case op == asm.XOR && len(vals) == 2:
		return r.Xor(vals[0], vals[1]), true
	case op == asm.NOT && len(vals) == 1:
		return r.Not(vals[0]), true
	case op == asm.BYTE && len(vals) == 2:
		res := new(uint256.Int).Set(vals[1])
		res.Byte(vals[0])
		return res, true
	case op == asm.SHL && len(vals) == 2:
		if !vals[0].LtUint64(256) {
			return uint256.NewInt(0), true
		}
		return r.Lsh(vals[1], uint(vals[0].Uint64())), true
	case op == asm.SHR && len(vals) == 2:
		if !vals[0].LtUint64(256) {
			return uint256.NewInt(0), true
		}
		return r.Rsh(vals[1], uint(vals[0].Uint64())), true
	case op == asm.SAR && len(vals) == 2:
		if vals[0].GtUint64(256) {
			if vals[1].Sign() >= 0 {
				return uint256.NewInt(0), true
			}
			allOnes := new(uint256.Int).Not(uint256.NewInt(0))
			return allOnes, true
		}
		return r.SRsh(vals[1], uint(vals[0].Uint64())), true
	}
	return nil, false
}

func boolInt(b bool) *uint256.Int {
	if b {
		return uint256.NewInt(1)
	}
	return uint256.NewInt(0)
}
