// Command anzuvis is a live memory visualizer for the VM's debug trace
// mode: it single-steps a program once per frame tick and renders the
// stack and heap as two scrolling byte grids, with prog_ptr, the current
// op, and the heap's live byte count overlaid as text. Grounded on
// cmd/desktop/main.go's Game.Update/Game.Draw loop (there: poll input,
// run the CPU a fixed number of cycles per tick, draw a text-mode VRAM
// grid via pkg/grid.GetGridCoords; here: no input, one VM Step per tick,
// two byte grids instead of one character grid).
package main

import (
	"fmt"
	"image/color"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"anzu/pkg/checker"
	"anzu/pkg/compiler"
	"anzu/pkg/diag"
	"anzu/pkg/grid"
	"anzu/pkg/loader"
	"anzu/pkg/vm"
)

const (
	cols      = 48
	cellSize  = 6
	stackRows = 24
	heapRows  = 24
	gridH     = stackRows * cellSize
	overlayH  = 32
	screenW   = cols * cellSize
	screenH   = gridH*2 + overlayH
)

// Game adapts cmd/desktop's Game to Anzu's VM: instead of a CPU running
// freely with a text/graphics VRAM to paint, it owns one Machine and
// advances it by exactly one op per Update, matching debug mode's
// per-dispatch trace cadence rather than the CPU's fixed-cycle-budget tick.
type Game struct {
	m      *vm.Machine
	done   bool
	runErr error
}

func (g *Game) Update() error {
	if g.done {
		return nil
	}
	done, err := g.m.Step()
	if err != nil {
		g.runErr = err
		g.done = true
		return nil
	}
	g.done = done
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	drawByteGrid(screen, g.m.Stack, 0, cols, stackRows)
	drawByteGrid(screen, g.m.HeapBytes(), gridH, cols, heapRows)

	status := fmt.Sprintf("stack(top) | prog_ptr=%d heap_live=%d", g.m.ProgPtr(), g.m.HeapBytesLive())
	if !g.done {
		status += " | " + g.m.CurrentOp().String()
	} else if g.runErr != nil {
		status += " | error: " + g.runErr.Error()
	} else {
		status += " | halted"
	}
	ebitenutil.DebugPrintAt(screen, status, 0, gridH)
	ebitenutil.DebugPrintAt(screen, "heap(allocator buffer)", 0, gridH+16)
}

// drawByteGrid shades one cell per byte of mem, in order. Once the buffer
// outgrows its allotted rows only its last cols*rows bytes (the tail of the
// slice) are drawn, so the live edge of the stack/heap stays visible,
// mirroring
// pkg/grid.GetGridCoords' flat-index -> (x,y) mapping used verbatim.
func drawByteGrid(screen *ebiten.Image, mem []byte, yOffset, cols, rows int) {
	capacity := cols * rows
	start := 0
	if len(mem) > capacity {
		start = len(mem) - capacity
	}
	for i := start; i < len(mem); i++ {
		x, y := grid.GetGridCoords(i-start, cols)
		shade := mem[i]
		ebitenutil.DrawRect(screen,
			float64(x*cellSize), float64(yOffset+y*cellSize),
			float64(cellSize-1), float64(cellSize-1),
			byteShade(shade))
	}
}

// byteShade maps a raw byte value to a blue-tinted greyscale so zeroed
// memory reads as near-black and live/nonzero bytes stand out as the
// stack and heap fill up.
func byteShade(b byte) color.Color {
	return color.RGBA{R: b, G: b, B: b/2 + 64, A: 255}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenW, screenH
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: anzuvis <file>")
		os.Exit(1)
	}

	file, err := loader.New().Load(os.Args[1])
	if err != nil {
		diag.Fatal(err)
	}
	chk, err := checker.Check(file)
	if err != nil {
		diag.Fatal(err)
	}
	prog, err := compiler.Compile(file, chk)
	if err != nil {
		diag.Fatal(err)
	}

	m := vm.New(prog, os.Stdout)
	m.Trace = true
	m.Init()

	ebiten.SetWindowSize(screenW*3, screenH*3)
	ebiten.SetWindowTitle("Anzu VM Visualizer")

	if err := ebiten.RunGame(&Game{m: m}); err != nil {
		log.Fatal(err)
	}
}
