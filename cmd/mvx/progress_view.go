package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"mvx/internal/logging"
	"mvx/internal/progress"
)

// barScale is the resolution of the determinate bar.
const barScale = 1000

// progressView draws the progress of one conversion: a redrawn bar or
// spinner on a terminal, sampled lines otherwise.
type progressView struct {
	w       io.Writer
	label   string
	tty     bool
	bar     *progressbar.ProgressBar
	sampler *logging.ProgressSampler
}

func newProgressView(w io.Writer, label string) *progressView {
	return &progressView{
		w:       w,
		label:   label,
		tty:     isTerminal(w),
		sampler: logging.NewProgressSampler(10),
	}
}

func (v *progressView) handle(ev progress.Event) {
	if !v.tty {
		percent := -1.0
		if ev.Determinate {
			percent = ev.Percent()
		}
		if v.sampler.ShouldLog(percent, v.label) {
			fmt.Fprintf(v.w, "%s: %s\n", v.label, describeEvent(ev))
		}
		return
	}
	if v.bar == nil {
		v.bar = v.newBar(ev.Determinate)
	}
	if ev.Determinate {
		_ = v.bar.Set(int(ev.Fraction * barScale))
		return
	}
	_ = v.bar.Add(1)
}

func (v *progressView) newBar(determinate bool) *progressbar.ProgressBar {
	if !determinate {
		return progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(v.w),
			progressbar.OptionSetDescription(v.label),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionClearOnFinish(),
		)
	}
	return progressbar.NewOptions(barScale,
		progressbar.OptionSetWriter(v.w),
		progressbar.OptionSetDescription(v.label),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func (v *progressView) finish() {
	if v.bar != nil {
		_ = v.bar.Finish()
	}
}

// attach returns a sink feeding the view and a stop function that drains
// pending events and clears the bar.
func (v *progressView) attach() (*progress.Sink, func()) {
	ch := make(chan progress.Event, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			v.handle(ev)
		}
	}()
	return progress.NewSink(ch), func() {
		close(ch)
		<-done
		v.finish()
	}
}

func describeEvent(ev progress.Event) string {
	if !ev.Determinate {
		return "running " + ev.Elapsed.Round(time.Second).String()
	}
	text := fmt.Sprintf("%.0f%%", ev.Percent())
	if ev.HasETA && !ev.Done {
		text += " (eta " + ev.ETA.Round(time.Second).String() + ")"
	}
	return text
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
