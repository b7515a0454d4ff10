// Package progress renders a bar while a working copy applies files sent by
// the remote. Off a terminal, or with colors or debug logging on, it only
// logs.
package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/klauern/docsync/internal/logging"
	"github.com/klauern/docsync/internal/ui"
)

// Bar counts applied files. The zero value is a silent bar.
type Bar struct {
	bar   *progressbar.ProgressBar
	label string
	steps int
	done  int
	start time.Time
}

// Start returns a bar for label expecting steps files. It draws to w only
// when w is an interactive terminal.
func Start(w io.Writer, label string, steps int) *Bar {
	b := &Bar{label: label, steps: steps, start: time.Now()}
	if steps <= 0 || !interactive(w) {
		return b
	}
	b.bar = progressbar.NewOptions(
		steps,
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(15),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionEnableColorCodes(true),
	)
	return b
}

// Add records n applied files.
func (b *Bar) Add(n int) error {
	b.done += n
	if b.bar == nil {
		return nil
	}
	return b.bar.Add(n)
}

// Drawing reports whether the bar renders to a terminal.
func (b *Bar) Drawing() bool {
	return b.bar != nil
}

// Done returns how many files were recorded.
func (b *Bar) Done() int {
	return b.done
}

// Finish completes the bar and logs how long the work took.
func (b *Bar) Finish() error {
	logging.Debug(fmt.Sprintf("%s finished", b.label),
		logging.Count(b.done), logging.Duration(time.Since(b.start)))
	if b.bar == nil {
		return nil
	}
	return b.bar.Finish()
}

func interactive(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || !ui.IsColorEnabled() || !term.IsTerminal(int(f.Fd())) {
		return false
	}
	// debug lines would interleave with the bar
	return !logging.Default().Enabled(context.Background(), logging.LevelDebug)
}
