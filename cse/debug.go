package cse

import (
	"fmt"
	"io"
	"os"
)

// DebugLogsEnabled records whether the ASMCSE_DEBUG environment variable was
// set, mirroring the teacher's compiler package reading MIR_DEBUG rather than
// a constructor flag threaded through every call site. Stream does not
// consult it: Stream prints whenever it is called.
var DebugLogsEnabled = os.Getenv("ASMCSE_DEBUG") != ""

// EnableDebugLogs force-enables DebugLogsEnabled, as if ASMCSE_DEBUG were set.
func EnableDebugLogs() { DebugLogsEnabled = true }

// Stream prints the class universe, store log, and given stack layouts in
// a stable, human-readable form. The format is explicitly not part of the
// contract (SPEC_FULL.md §6); it exists purely for interactive debugging.
func Stream(w io.Writer, ec *ExpressionClasses, storeOps []StoreOperation, initialStack, targetStack map[int]ClassId) {
	fmt.Fprintln(w, "== expression classes ==")
	for id := ClassId(0); int(id) < len(ec.defs); id++ {
		expr := ec.defs[id]
		fmt.Fprintf(w, "  #%d: %s\n", id, describeExpression(expr))
	}

	fmt.Fprintln(w, "== store operations ==")
	for _, op := range storeOps {
		kind := "SSTORE"
		if op.Kind == MemoryStore {
			kind = "MSTORE"
		}
		fmt.Fprintf(w, "  seq=%d %s [%d] = #%d\n", op.Seq, kind, op.Slot, op.Value)
	}

	fmt.Fprintln(w, "== initial stack ==")
	printStack(w, initialStack)
	fmt.Fprintln(w, "== target stack ==")
	printStack(w, targetStack)
}

func describeExpression(e Expression) string {
	switch {
	case e.Const != nil:
		return fmt.Sprintf("const 0x%x", e.Const)
	case e.Synth == synthInitialStackItem:
		return fmt.Sprintf("initial[%d]", e.Height)
	case e.Synth == synthSLoadResult:
		return fmt.Sprintf("SLOAD(#%d)@seq%d", e.Args[0], *e.Seq)
	case e.Synth == synthMLoadResult:
		return fmt.Sprintf("MLOAD(#%d)@seq%d", e.Args[0], *e.Seq)
	default:
		s := e.Op.String()
		for _, a := range e.Args {
			s += fmt.Sprintf(" #%d", a)
		}
		if e.Seq != nil {
			s += fmt.Sprintf(" @seq%d", *e.Seq)
		}
		return s
	}
}

func printStack(w io.Writer, s map[int]ClassId) {
	for h, id := range s {
		fmt.Fprintf(w, "  [%d] = #%d\n", h, id)
	}
}
