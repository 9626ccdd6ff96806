// Package progress reports the status of long-running detect/batch runs
// on stderr so stdout stays clean for piped report output.
package progress

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Tracker wraps a progress bar for a single scan/compare phase.
type Tracker struct {
	bar   *progressbar.ProgressBar
	label string
}

// NewSpinner creates an indeterminate tracker for a phase whose step count
// isn't known up front, such as the pairwise comparison fan-out.
func NewSpinner(label string) *Tracker {
	return &Tracker{
		label: label,
		bar: progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(20),
			progressbar.OptionSetDescription(label),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionClearOnFinish(),
		),
	}
}

// NewTracker creates a determinate bar for a phase with a known step
// count, such as reading total files off disk.
func NewTracker(label string, total int) *Tracker {
	return &Tracker{
		label: label,
		bar: progressbar.NewOptions(total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetDescription(label),
			progressbar.OptionUseANSICodes(true),
			progressbar.OptionSetElapsedTime(false),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		),
	}
}

// Tick advances the bar by one step. Safe for concurrent use.
func (t *Tracker) Tick() {
	t.bar.Add(1)
}

// FinishSuccess clears the bar once the phase completes with no issues.
func (t *Tracker) FinishSuccess() {
	t.bar.Finish()
	t.bar.Clear()
}

// FinishSkipped clears the bar and reports why part of the phase was
// skipped, e.g. files that exceeded the size limit or failed to read.
func (t *Tracker) FinishSkipped(reason string) {
	t.bar.Finish()
	t.bar.Clear()
	fmt.Fprintf(os.Stderr, "  %s: %s\n", t.label, reason)
}

// FinishError clears the bar and reports the failure that ended the phase
// early.
func (t *Tracker) FinishError(err error) {
	t.bar.Finish()
	t.bar.Clear()
	fmt.Fprintf(os.Stderr, "  %s failed: %v\n", t.label, err)
}
