package asm

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestStringFormatsEachKind(t *testing.T) {
	cases := []struct {
		item AssemblyItem
		want string
	}{
		{NewOperation(ADD), "ADD"},
		{NewPush(uint256.NewInt(0x2a)), "PUSH 0x2a"},
		{NewPushTag(7), "PUSHTAG #7"},
		{NewTag(7), "tag_7:"},
		{NewPushData(3), "PUSHDATA #3"},
		{NewPushSub(1), "PUSHSUB #1"},
		{NewPushSubSize(1), "PUSHSUBSIZE #1"},
		{NewPushProgramSize(), "PUSHPROGRAMSIZE"},
	}
	for _, c := range cases {
		if got := c.item.String(); got != c.want {
			t.Fatalf("String() = %q, want %q", got, c.want)
		}
	}
}

func TestLeafKeyDistinguishesPushFromPushTagOfSameBits(t *testing.T) {
	push := NewPush(uint256.NewInt(0xb0))
	tag := NewPushTag(0xb0)

	pushOp, pushTagVal := push.LeafKey()
	tagOp, tagTagVal := tag.LeafKey()

	if pushOp == tagOp && pushTagVal == tagTagVal {
		t.Fatal("a numeric PUSH and a PushTag carrying the same bit pattern must not share a leaf key")
	}
}

func TestLeafItemRoundTripsSyntheticLeaves(t *testing.T) {
	cases := []AssemblyItem{
		NewPushTag(4),
		NewPushData(9),
		NewPushSub(2),
		NewPushSubSize(2),
		NewPushProgramSize(),
	}
	for _, item := range cases {
		op, tag := item.LeafKey()
		got, ok := LeafItem(op, tag)
		if !ok {
			t.Fatalf("LeafItem(%v, %d) reported not found for %v", op, tag, item)
		}
		if got != item {
			t.Fatalf("LeafItem round trip = %v, want %v", got, item)
		}
	}
}

func TestLeafItemRejectsRealOperations(t *testing.T) {
	if _, ok := LeafItem(ADD, 0); ok {
		t.Fatal("a real opcode is not a synthetic leaf and must not resolve via LeafItem")
	}
}
