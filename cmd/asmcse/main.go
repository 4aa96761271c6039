// Command asmcse is a small demonstration driver for the cse package: it
// reads a textual assembly listing, runs common subexpression elimination
// over each basic block, and prints the result alongside a before/after
// item count. It plays the same role debug_fusion.go played for the
// teacher's MIR-based compiler, wired up as a real CLI instead of a
// hardcoded scratch program.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"

	"github.com/bnb-chain/asmcse/asm"
	"github.com/bnb-chain/asmcse/cse"
	"github.com/bnb-chain/asmcse/log"
)

func main() {
	app := &cli.App{
		Name:  "asmcse",
		Usage: "run common subexpression elimination over a textual EVM assembly listing",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "listing",
				Aliases:  []string{"l"},
				Usage:    "path to a textual assembly listing (one item per line)",
				Required: true,
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Crit("asmcse failed", "err", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	path := c.String("listing")
	f, err := os.Open(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("opening %s: %v", path, err), 1)
	}
	defer f.Close()

	items, err := parseListing(f)
	if err != nil {
		return cli.Exit(fmt.Sprintf("parsing %s: %v", path, err), 1)
	}

	segments := splitIntoBlocks(items)
	optimized := optimizeConcurrently(segments)

	var out []asm.AssemblyItem
	for i, seg := range segments {
		out = append(out, optimized[i]...)
		if seg.breaker != nil {
			out = append(out, *seg.breaker)
		}
	}

	printListing("before", items)
	printListing("after", out)

	shrink := color.New(color.FgGreen, color.Bold)
	grow := color.New(color.FgRed, color.Bold)
	line := fmt.Sprintf("%d items -> %d items", len(items), len(out))
	if len(out) < len(items) {
		shrink.Println(line)
	} else if len(out) > len(items) {
		grow.Println(line)
	} else {
		fmt.Println(line)
	}
	return nil
}

// block is one basic block's worth of items plus the breaker that ended it
// (nil for a trailing block with no breaker, e.g. a listing that simply runs
// off the end of the file).
type block struct {
	items   []asm.AssemblyItem
	breaker *asm.AssemblyItem
}

// splitIntoBlocks partitions a flat item stream at every basic-block breaker,
// mirroring asm.BreaksBasicBlock/Analyzer.FeedItems's own splitting rule so
// each block can be handed to an independent Analyzer/CodeGenerator pair.
func splitIntoBlocks(items []asm.AssemblyItem) []block {
	var segments []block
	var cur []asm.AssemblyItem
	for i := range items {
		item := items[i]
		if asm.BreaksBasicBlock(item) {
			b := item
			segments = append(segments, block{items: cur, breaker: &b})
			cur = nil
			continue
		}
		cur = append(cur, item)
	}
	if len(cur) > 0 || len(segments) == 0 {
		segments = append(segments, block{items: cur})
	}
	return segments
}

// optimizeConcurrently runs one CSE pass per basic block, one goroutine per
// block over a sync.WaitGroup. A block that fails optimization falls back to
// its original, unoptimized items: losing an optimization opportunity is
// acceptable, emitting miscompiled code is not.
func optimizeConcurrently(segments []block) [][]asm.AssemblyItem {
	out := make([][]asm.AssemblyItem, len(segments))
	var wg sync.WaitGroup
	for i, seg := range segments {
		if len(seg.items) == 0 {
			continue
		}
		wg.Add(1)
		go func(i int, seg block) {
			defer wg.Done()
			out[i] = optimizeBlock(i, seg.items)
		}(i, seg)
	}
	wg.Wait()
	return out
}

func optimizeBlock(index int, items []asm.AssemblyItem) []asm.AssemblyItem {
	ec := cse.NewExpressionClasses()
	an := cse.NewAnalyzer(ec)

	remainder, err := an.FeedItems(items)
	if err != nil {
		log.Warn("block analysis failed, keeping original code", "block", index, "err", err)
		return items
	}
	if len(remainder) > 0 {
		log.Warn("block contained an unexpected breaker, keeping original code", "block", index)
		return items
	}
	an.Seal()

	gen := cse.NewCodeGenerator(ec, an.StoreOperations())
	out, err := gen.GenerateCode(ec.InitialStackItems(), an.FinalStack())
	if err != nil {
		log.Warn("code generation failed, keeping original code", "block", index, "err", err)
		return items
	}
	return out
}

func printListing(label string, items []asm.AssemblyItem) {
	header := color.New(color.FgCyan, color.Bold)
	header.Printf("-- %s (%d items) --\n", label, len(items))
	for _, item := range items {
		fmt.Println(item.String())
	}
}

// parseListing reads one assembly item per line. Recognized forms:
//
//	tag_N:          a jump destination label
//	PUSH 0xHEX      a literal constant push
//	MNEMONIC        a real opcode, e.g. ADD, DUP3, SWAP1, LOG2
//
// Blank lines and lines starting with "//" are ignored.
func parseListing(r *os.File) ([]asm.AssemblyItem, error) {
	var items []asm.AssemblyItem
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		item, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func parseLine(line string) (asm.AssemblyItem, error) {
	if strings.HasSuffix(line, ":") && strings.HasPrefix(line, "tag_") {
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(line, "tag_"), ":"))
		if err != nil {
			return asm.AssemblyItem{}, fmt.Errorf("bad tag label %q: %w", line, err)
		}
		return asm.NewTag(n), nil
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return asm.AssemblyItem{}, fmt.Errorf("empty instruction")
	}

	if fields[0] == "PUSH" {
		if len(fields) != 2 {
			return asm.AssemblyItem{}, fmt.Errorf("PUSH requires exactly one operand, got %q", line)
		}
		v, err := parseUint256(fields[1])
		if err != nil {
			return asm.AssemblyItem{}, fmt.Errorf("bad PUSH operand %q: %w", fields[1], err)
		}
		return asm.NewPush(v), nil
	}

	op, ok := asm.ParseOpCode(fields[0])
	if !ok {
		return asm.AssemblyItem{}, fmt.Errorf("unrecognized mnemonic %q", fields[0])
	}
	return asm.NewOperation(op), nil
}

func parseUint256(s string) (*uint256.Int, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	v, err := uint256.FromHex("0x" + s)
	if err != nil {
		return nil, err
	}
	return v, nil
}
