// Command anzu is the reference driver for the language pipeline: it reads
// one source file, runs it through lex/parse/check/compile/run, and stops
// early to pretty-print whichever phase the caller asked for. Grounded on
// cmd/ccompiler/main.go's stage-by-stage dump and cmd/console/main.go's
// flag handling plus os.Exit(1)-on-error shape, adapted from one hardcoded
// demo program to a file argument and from a single run mode to the full
// lex/parse/check/com/run/debug mode set.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"anzu/pkg/checker"
	"anzu/pkg/compiler"
	"anzu/pkg/diag"
	"anzu/pkg/lexer"
	"anzu/pkg/loader"
	"anzu/pkg/token"
	"anzu/pkg/utils"
	"anzu/pkg/vm"
)

func main() {
	outPath := flag.String("o", "", "write diagnostic-mode output to this file instead of stdout")
	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: anzu [-o file] <file> <lex|parse|check|com|run|debug>")
		os.Exit(1)
	}
	path, mode := args[0], args[1]

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "cannot create output file:", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	if err := run(path, mode, out); err != nil {
		diag.Fatal(err)
	}
}

func run(path, mode string, out io.Writer) error {
	fullPath, _, err := utils.GetPathInfo(path)
	if err != nil {
		return diag.Errorf(diag.Syntax, 0, 0, "cannot resolve %q: %v", path, err)
	}
	src, err := os.ReadFile(fullPath)
	if err != nil {
		return diag.Errorf(diag.Syntax, 0, 0, "cannot read %q: %v", fullPath, err)
	}

	if mode == "lex" {
		return runLex(src, out)
	}

	file, err := loader.New().Load(path)
	if err != nil {
		return err
	}
	if mode == "parse" {
		for _, d := range file.Decls {
			fmt.Fprintln(out, d)
		}
		return nil
	}

	chk, err := checker.Check(file)
	if err != nil {
		return err
	}
	if mode == "check" {
		fmt.Fprintf(out, "ok: %d functions declared\n", len(chk.Funcs))
		return nil
	}

	prog, err := compiler.Compile(file, chk)
	if err != nil {
		return err
	}
	if mode == "com" {
		fmt.Fprint(out, prog.Disassemble())
		return nil
	}

	m := vm.New(prog, out)
	m.Trace = mode == "debug"
	switch mode {
	case "run", "debug":
		return m.Run()
	default:
		return fmt.Errorf("anzu: unknown mode %q", mode)
	}
}

// runLex pretty-prints the token stream only, since `lex` is the one mode
// that must stop before the parser ever runs (a lex error on its own is
// diagnosable without a valid AST to hand off).
func runLex(src []byte, out io.Writer) error {
	s := lexer.New(src)
	for {
		tok, err := s.Next()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, tok)
		if tok.Kind == token.EOF {
			return nil
		}
	}
}
