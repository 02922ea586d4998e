package vm

import (
	"fmt"
	"strings"
)

// Program is a compiled Anzu module: a flat instruction stream, a rodata
// segment for string/array constants, and the entry point to start at.
type Program struct {
	Ops      []Op
	Rodata   []byte
	EntryPoint int64
	Functions  map[string]int64 // name -> index into Ops, for disassembly and calls
}

// Disassemble renders the program as one instruction per line, grounded on
// bytecode.cpp's print_op pretty-printer.
func (p *Program) Disassemble() string {
	var b strings.Builder
	for i, op := range p.Ops {
		fmt.Fprintf(&b, "%4d  %s\n", i, op.String())
	}
	return b.String()
}
