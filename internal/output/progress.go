package output

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// Progress counts finished correlations on a terminal bar. A nil Progress
// ignores every call.
type Progress struct {
	bar *progressbar.ProgressBar
}

// NewProgress returns a bar over total steps written to w, or nil when
// there is nothing to count or nowhere to draw.
func NewProgress(w io.Writer, total int, description string) *Progress {
	if w == nil || total <= 0 {
		return nil
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        color.CyanString("█"),
			SaucerHead:    color.CyanString("█"),
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(w),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &Progress{bar: bar}
}

// Step advances the bar by one. It is safe for concurrent use.
func (p *Progress) Step() {
	if p == nil {
		return
	}
	_ = p.bar.Add(1)
}

// Finish completes the bar.
func (p *Progress) Finish() {
	if p == nil {
		return
	}
	_ = p.bar.Finish()
}
