// -- cmd/progress.go --
package cmd

import (
	"fmt"
	"io"
	"strings"
)

const progressBarWidth = 40

// progressBar renders an in-place terminal progress bar for downloads. It
// only redraws when the percentage changes, so it stays cheap even with
// small chunks.
type progressBar struct {
	w        io.Writer
	label    string
	lastPct  int
	rendered bool
}

func newProgressBar(w io.Writer, label string) *progressBar {
	return &progressBar{w: w, label: label, lastPct: -1}
}

// update is a fetch.ProgressFunc.
func (p *progressBar) update(written, total int64) {
	if total <= 0 {
		return
	}
	pct := int(written * 100 / total)
	if pct > 100 {
		pct = 100
	}
	if pct == p.lastPct {
		return
	}
	p.lastPct = pct
	p.rendered = true

	filled := pct * progressBarWidth / 100
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", progressBarWidth-filled)
	fmt.Fprintf(p.w, "\r%s [%s] %3d%% (%d/%d bytes)", p.label, bar, pct, written, total)
}

// finish terminates the bar line if anything was drawn.
func (p *progressBar) finish() {
	if p.rendered {
		fmt.Fprintln(p.w)
	}
}
