package main

import (
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// progress renders scan progress on a terminal. A new bar is started whenever
// a scan reports a different batch size.
type progress struct {
	mu    sync.Mutex
	w     io.Writer
	desc  string
	bar   *progressbar.ProgressBar
	total int
}

func newProgress(w io.Writer, desc string) *progress {
	return &progress{w: w, desc: desc}
}

// Update matches scan.ProgressFunc.
func (p *progress) Update(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil || total != p.total {
		if p.bar != nil {
			_ = p.bar.Finish()
		}
		p.total = total
		p.bar = progressbar.NewOptions64(int64(total),
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetDescription(p.desc),
			progressbar.OptionSetItsString("blocks"),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionSetWidth(50),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
	}
	if done > int(p.bar.State().CurrentNum) {
		_ = p.bar.Set(done)
	}
}

func (p *progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
		_, _ = io.WriteString(p.w, "\n")
	}
}
