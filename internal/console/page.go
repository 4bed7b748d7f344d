package console

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// PageState is the load state of a list page.
type PageState string

const (
	PageLoading PageState = "loading"
	PageReady   PageState = "ready"
)

// page is the state shared by the list controllers: load sequencing, the
// page notice and delayed reloads.
type page struct {
	name string
	feed *Feed
	ctx  context.Context
	load func(ctx context.Context)

	mu         sync.Mutex
	state      PageState
	notice     Notice
	loadSeq    uint64
	appliedSeq uint64
}

func newPage(ctx context.Context, name string, feed *Feed) *page {
	return &page{name: name, feed: feed, ctx: ctx, state: PageLoading}
}

// notify sets the page notice and posts it to the feed.
func (p *page) notify(n Notice) {
	p.mu.Lock()
	p.notice = n
	p.mu.Unlock()
	if p.feed != nil {
		p.feed.Append(p.name, n)
	}
}

// Notice returns the current page notice.
func (p *page) Notice() Notice {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.notice
}

// State returns whether the page has finished its latest load.
func (p *page) State() PageState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *page) beginLoad() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadSeq++
	p.state = PageLoading
	return p.loadSeq
}

// finishLoad applies a load result. A load that finishes after a newer one
// was applied is dropped, so the snapshot never goes backwards. apply runs
// under the page lock.
func (p *page) finishLoad(seq uint64, err error, apply func()) {
	p.mu.Lock()
	if seq == p.loadSeq {
		p.state = PageReady
	}
	if seq <= p.appliedSeq {
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.mu.Unlock()
		log.Warn().Err(err).Str("page", p.name).Msg("Page load failed")
		p.notify(failureNotice(err))
		return
	}
	p.appliedSeq = seq
	apply()
	p.mu.Unlock()
}

// reload runs the page load once, after delay when positive. Reloads use the
// console's own context so they outlive the overlay that triggered them.
func (p *page) reload(delay time.Duration) {
	if delay <= 0 {
		p.load(p.ctx)
		return
	}
	time.AfterFunc(delay, func() {
		if p.ctx.Err() != nil {
			return
		}
		p.load(p.ctx)
	})
}
