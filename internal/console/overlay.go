package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rflorenc/search-admin/internal/metrics"
)

var (
	ErrOverlayClosed = errors.New("overlay is closed")
	ErrBusy          = errors.New("overlay is already submitting")
	ErrStale         = errors.New("result arrived after the overlay closed")
	ErrReadOnly      = errors.New("overlay has nothing to confirm")
	ErrNoMapping     = errors.New("overlay has no mapping form")
)

// ValidationError is a client-side rejection: the form or import text is
// malformed, so nothing was sent to the backend.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "validation failed: " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Err: fmt.Errorf(format, args...)}
}

// Template names the view the browser renders an overlay with.
type Template string

const (
	TemplateConfirm     Template = "confirm"
	TemplateKeyAdd      Template = "keyAdd"
	TemplateKeyEdit     Template = "keyEdit"
	TemplateIndexAdd    Template = "indexAdd"
	TemplateIndexEdit   Template = "indexEdit"
	TemplateCopyConfirm Template = "copyConfirm"
	TemplateIndexImport Template = "indexImport"
	TemplateIndexExport Template = "indexExport"
)

// Outcome is what a successful confirm reports to the owning page. An empty
// Class means success.
type Outcome struct {
	Message string
	Class   string
}

// Scope is the private state of one overlay: what it shows, the form it edits
// and what confirming it does. A Scope is built per user action and never
// shared between overlays.
type Scope struct {
	Title   string
	Message string
	OkText  string
	Form    interface{}

	// Action labels workflow metrics and logs ("flush", "copy", ...).
	Action string
	// ReloadDelay postpones the owner's reload after success.
	ReloadDelay time.Duration

	// Bind decodes a form update. nil means the form is read-only.
	Bind func(raw json.RawMessage) error
	// Confirmed performs the workflow. nil means there is nothing to confirm.
	Confirmed func(ctx context.Context) (Outcome, error)
}

// owner is the page an overlay reports back to.
type owner interface {
	notify(n Notice)
	reload(delay time.Duration)
}

// OverlayState is the lifecycle position of an overlay.
type OverlayState string

const (
	StateOpen       OverlayState = "open"
	StateSubmitting OverlayState = "submitting"
	StateClosed     OverlayState = "closed"
)

// Overlay is one open workflow. Its context is cancelled on Close, which
// aborts in-flight requests; results that still come back are discarded.
type Overlay struct {
	ID       string
	Template Template
	OpenedAt time.Time

	mu     sync.Mutex
	scope  *Scope
	owner  owner
	state  OverlayState
	notice Notice

	ctx     context.Context
	cancel  context.CancelFunc
	manager *Overlays
	seq     uint64
}

// OverlayView is the JSON shape of an overlay for the browser.
type OverlayView struct {
	ID       string          `json:"id"`
	Template Template        `json:"template"`
	State    OverlayState    `json:"state"`
	Title    string          `json:"title,omitempty"`
	Message  string          `json:"message,omitempty"`
	OkText   string          `json:"ok_text,omitempty"`
	Form     json.RawMessage `json:"form,omitempty"`
	Notice   *Notice         `json:"notice,omitempty"`
	ReadOnly bool            `json:"read_only"`
}

// State returns the current lifecycle state.
func (o *Overlay) State() OverlayState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Notice returns the message shown inside the overlay, if any.
func (o *Overlay) Notice() Notice {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.notice
}

// View snapshots the overlay for rendering.
func (o *Overlay) View() OverlayView {
	o.mu.Lock()
	defer o.mu.Unlock()
	v := OverlayView{
		ID:       o.ID,
		Template: o.Template,
		State:    o.state,
		Title:    o.scope.Title,
		Message:  o.scope.Message,
		OkText:   o.scope.OkText,
		ReadOnly: o.scope.Bind == nil,
	}
	if o.scope.Form != nil {
		if data, err := json.Marshal(o.scope.Form); err == nil {
			v.Form = data
		}
	}
	if o.notice.Message != "" {
		n := o.notice
		v.Notice = &n
	}
	return v
}

// Bind applies a form update from the browser.
func (o *Overlay) Bind(raw json.RawMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateOpen {
		return o.notOpen()
	}
	if o.scope.Bind == nil {
		return ErrReadOnly
	}
	return o.scope.Bind(raw)
}

// EditMapping runs fn against the overlay's mapping form (add/remove field or
// date, geopoint toggle).
func (o *Overlay) EditMapping(fn func(f *MappingForm)) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateOpen {
		return o.notOpen()
	}
	form, ok := o.scope.Form.(*MappingForm)
	if !ok {
		return ErrNoMapping
	}
	fn(form)
	return nil
}

// Confirm runs the overlay's workflow. On success the owning page gets the
// outcome notice, reloads once and the overlay closes. On failure the overlay
// stays open with the error as its notice. ctx bounds the call in addition to
// the overlay's own lifetime.
func (o *Overlay) Confirm(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateOpen {
		err := o.notOpen()
		o.mu.Unlock()
		return err
	}
	if o.scope.Confirmed == nil {
		o.mu.Unlock()
		return ErrReadOnly
	}
	o.state = StateSubmitting
	o.notice = Notice{}
	opCtx, cancel := context.WithCancel(o.ctx)
	o.mu.Unlock()

	stop := context.AfterFunc(ctx, cancel)
	outcome, err := o.scope.Confirmed(opCtx)
	stop()
	cancel()

	o.mu.Lock()
	if o.state == StateClosed {
		o.mu.Unlock()
		o.manager.metrics.RecordWorkflow(o.scope.Action, "stale")
		log.Debug().Str("overlay", o.ID).Str("action", o.scope.Action).Msg("Discarding late workflow result")
		return ErrStale
	}
	if err != nil {
		o.state = StateOpen
		o.notice = failureNotice(err)
		o.mu.Unlock()
		o.manager.metrics.RecordWorkflow(o.scope.Action, "failure")
		log.Warn().Err(err).Str("overlay", o.ID).Str("action", o.scope.Action).Msg("Workflow failed")
		return err
	}
	// Committed: a Close from here on is a no-op, so the outcome is reported
	// exactly once.
	o.state = StateClosed
	o.cancel()
	o.mu.Unlock()

	if outcome.Class == "" {
		outcome.Class = ClassSuccess
	}
	o.manager.metrics.RecordWorkflow(o.scope.Action, "success")
	log.Info().Str("overlay", o.ID).Str("action", o.scope.Action).Msg("Workflow confirmed")

	o.owner.notify(Notice{Message: outcome.Message, Class: outcome.Class})
	o.owner.reload(o.scope.ReloadDelay)
	o.manager.remove(o.ID)
	return nil
}

// Close dismisses the overlay. Closing twice is a no-op.
func (o *Overlay) Close() {
	o.mu.Lock()
	if o.state == StateClosed {
		o.mu.Unlock()
		return
	}
	o.state = StateClosed
	o.cancel()
	o.mu.Unlock()
	o.manager.remove(o.ID)
}

func (o *Overlay) notOpen() error {
	if o.state == StateSubmitting {
		return ErrBusy
	}
	return ErrOverlayClosed
}

// Overlays tracks the open overlays of one console.
type Overlays struct {
	ctx     context.Context
	metrics *metrics.Metrics

	mu       sync.RWMutex
	overlays map[string]*Overlay
	opened   uint64
}

// NewOverlays creates an overlay manager whose overlays live no longer than ctx.
func NewOverlays(ctx context.Context, m *metrics.Metrics) *Overlays {
	return &Overlays{
		ctx:      ctx,
		metrics:  m,
		overlays: make(map[string]*Overlay),
	}
}

// Open creates an overlay for scope, owned by page, assigning it a UUID.
func (s *Overlays) Open(template Template, scope *Scope, page owner) *Overlay {
	ctx, cancel := context.WithCancel(s.ctx)
	o := &Overlay{
		ID:       uuid.New().String(),
		Template: template,
		OpenedAt: time.Now(),
		scope:    scope,
		owner:    page,
		state:    StateOpen,
		ctx:      ctx,
		cancel:   cancel,
		manager:  s,
	}
	s.mu.Lock()
	s.opened++
	o.seq = s.opened
	s.overlays[o.ID] = o
	s.mu.Unlock()
	s.metrics.OverlayOpened()
	log.Debug().Str("overlay", o.ID).Str("template", string(template)).Str("action", scope.Action).Msg("Overlay opened")
	return o
}

// Get returns an open overlay by ID, or nil.
func (s *Overlays) Get(id string) *Overlay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overlays[id]
}

// List returns the open overlays, oldest first.
func (s *Overlays) List() []*Overlay {
	s.mu.RLock()
	result := make([]*Overlay, 0, len(s.overlays))
	for _, o := range s.overlays {
		result = append(result, o)
	}
	s.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		return result[i].seq < result[j].seq
	})
	return result
}

// CloseAll closes every open overlay.
func (s *Overlays) CloseAll() {
	for _, o := range s.List() {
		o.Close()
	}
}

func (s *Overlays) remove(id string) {
	s.mu.Lock()
	_, ok := s.overlays[id]
	delete(s.overlays, id)
	s.mu.Unlock()
	if ok {
		s.metrics.OverlayClosed()
		log.Debug().Str("overlay", id).Msg("Overlay closed")
	}
}
