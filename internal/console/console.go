// Package console holds the per-operator state of the admin console: the API
// key and index list pages, the workflow overlays opened from them and the
// notice feed the browser follows.
package console

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rflorenc/search-admin/internal/backend"
	"github.com/rflorenc/search-admin/internal/metrics"
	"github.com/rflorenc/search-admin/internal/models"
)

// Backend is the subset of the search admin API the console drives.
// *backend.Client implements it.
type Backend interface {
	ListKeys(ctx context.Context) (map[string]*models.APIKey, error)
	GetKey(ctx context.Context, key string) (*models.APIKey, error)
	CreateKey(ctx context.Context, k *models.APIKey) (string, error)
	UpdateKey(ctx context.Context, key string, k *models.APIKey) (string, error)
	DeleteKey(ctx context.Context, key string) (string, error)

	ListMappings(ctx context.Context) (map[string]*models.Mapping, error)
	GetMapping(ctx context.Context, index string) (*models.Mapping, error)
	CreateMapping(ctx context.Context, index string, m *models.Mapping) (string, error)
	UpdateMapping(ctx context.Context, index string, m *models.Mapping) (string, error)
	DeleteMapping(ctx context.Context, index string) (string, error)

	ListIndexes(ctx context.Context) (map[string]*models.IndexStatus, error)
	FlushIndex(ctx context.Context, index string) (string, error)
	ActivateIndex(ctx context.Context, index string) (string, error)
	DeactivateIndex(ctx context.Context, index string) (string, error)
}

var _ Backend = (*backend.Client)(nil)

// Notice classes.
const (
	ClassSuccess = "alert-success"
	ClassDanger  = "alert-danger"
)

// Notice is the message line shown on a page or inside an overlay.
type Notice struct {
	Message string `json:"message"`
	Class   string `json:"class"`
}

// failureNotice renders err the way the console shows backend failures.
func failureNotice(err error) Notice {
	return Notice{Message: errorMessage(err), Class: ClassDanger}
}

func errorMessage(err error) string {
	if r, ok := backend.IsReason(err); ok {
		return r.Message
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return err.Error()
}

// FeedEntry is one notice as it was posted to a page.
type FeedEntry struct {
	Page   string    `json:"page"`
	Notice Notice    `json:"notice"`
	Time   time.Time `json:"time"`
}

// maxFeedEntries bounds the notices a feed retains; older ones are dropped.
const maxFeedEntries = 200

// Feed is the ordered log of page notices for one console. Entries are
// addressed by their position since the console was created, so offsets stay
// valid after the oldest entries are dropped.
type Feed struct {
	mu      sync.Mutex
	entries []FeedEntry
	base    int
}

// Append adds a notice to the feed.
func (f *Feed) Append(page string, n Notice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, FeedEntry{Page: page, Notice: n, Time: time.Now()})
	if over := len(f.entries) - maxFeedEntries; over > 0 {
		f.entries = append(f.entries[:0:0], f.entries[over:]...)
		f.base += over
	}
}

// Since returns the retained entries from position offset on, and the offset
// to ask for next. An offset older than the retained window starts at its
// oldest entry.
func (f *Feed) Since(offset int) ([]FeedEntry, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := f.base + len(f.entries)
	if offset < f.base {
		offset = f.base
	}
	if offset >= next {
		return nil, next
	}
	entries := make([]FeedEntry, next-offset)
	copy(entries, f.entries[offset-f.base:])
	return entries, next
}

// Options tunes a Console.
type Options struct {
	// RefreshDelay is how long flush and activate wait before reloading the
	// index list, since the backend applies them asynchronously.
	RefreshDelay time.Duration
	Metrics      *metrics.Metrics
}

// DefaultRefreshDelay is used when Options.RefreshDelay is zero.
const DefaultRefreshDelay = time.Second

// Console is the state of one signed-in operator.
type Console struct {
	Keys     *KeyList
	Indexes  *IndexList
	Overlays *Overlays
	Feed     *Feed

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Console driving api. Nothing is loaded until the pages'
// Load is called.
func New(ctx context.Context, api Backend, opts Options) *Console {
	if opts.RefreshDelay <= 0 {
		opts.RefreshDelay = DefaultRefreshDelay
	}
	ctx, cancel := context.WithCancel(ctx)
	c := &Console{
		Feed:   &Feed{},
		ctx:    ctx,
		cancel: cancel,
	}
	c.Overlays = NewOverlays(ctx, opts.Metrics)
	c.Keys = newKeyList(ctx, api, c.Overlays, c.Feed)
	c.Indexes = newIndexList(ctx, api, c.Overlays, c.Feed, opts.RefreshDelay)
	return c
}

// Close closes every open overlay and stops pending reloads.
func (c *Console) Close() {
	c.Overlays.CloseAll()
	c.cancel()
}

// Done is closed once the console is closed.
func (c *Console) Done() <-chan struct{} {
	return c.ctx.Done()
}
