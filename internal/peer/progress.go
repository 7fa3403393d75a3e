package peer

import "github.com/schollz/progressbar/v3"

// progressReporter wraps the terminal progress bar so transfer callbacks can
// stay oblivious to whether progress rendering is enabled.
type progressReporter struct {
	bar *progressbar.ProgressBar
}

func (p *Peer) newProgress(total int64, description string) *progressReporter {
	if !p.opts.ShowProgress || total <= 0 {
		return &progressReporter{}
	}
	return &progressReporter{
		bar: progressbar.DefaultBytes(total, description),
	}
}

func (r *progressReporter) update(current int64) {
	if r.bar == nil {
		return
	}
	_ = r.bar.Set64(current)
}

func (r *progressReporter) finish() {
	if r.bar == nil {
		return
	}
	_ = r.bar.Finish()
}
