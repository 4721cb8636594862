package model

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

const (
	gridPosBlock = "██"
	gridPosEmpty = "  "

	macosClearCmd = "clear"
)

// Viewport is the window of the lattice drawn by a renderer
type Viewport struct {
	X, Y          int32
	Width, Height int
}

// TerminalRenderer implements basic terminal rendering
type TerminalRenderer struct {
	Out io.Writer
}

func (r *TerminalRenderer) out() io.Writer {
	if r.Out == nil {
		return os.Stdout
	}
	return r.Out
}

// Display renders the viewport of the universe to the terminal
func (r *TerminalRenderer) Display(u *Universe, vp Viewport) {
	fmt.Fprint(r.out(), Render(u, vp))
}

// Render draws the viewport into a string, one line per row
func Render(u *Universe, vp Viewport) string {
	var b strings.Builder
	for dy := range vp.Height {
		for dx := range vp.Width {
			if u.Alive(vp.X+int32(dx), vp.Y+int32(dy)) {
				b.WriteString(gridPosBlock)
			} else {
				b.WriteString(gridPosEmpty)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Clear clears the terminal screen
func (r *TerminalRenderer) Clear() {
	var cmd *exec.Cmd
	cmd = exec.Command(macosClearCmd)
	cmd.Stdout = r.out()
	if err := cmd.Run(); err != nil {
		fmt.Fprintln(r.out(), "Error clearing terminal:", err)
	}
}
