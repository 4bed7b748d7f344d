package console

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func newTestConsole(t *testing.T, f *fakeBackend) *Console {
	t.Helper()
	c := New(context.Background(), f, Options{RefreshDelay: 10 * time.Millisecond})
	t.Cleanup(c.Close)
	return c
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestOverlay_ConfirmSuccess(t *testing.T) {
	f := newFakeBackend()
	f.keys["k1"] = testKey()
	c := newTestConsole(t, f)
	c.Keys.Load(context.Background())

	o := c.Keys.Remove("k1")
	if c.Overlays.Get(o.ID) == nil {
		t.Fatal("opened overlay is not tracked")
	}
	if err := o.Confirm(context.Background()); err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}

	if o.State() != StateClosed {
		t.Errorf("state = %s, want closed", o.State())
	}
	if c.Overlays.Get(o.ID) != nil {
		t.Error("closed overlay still tracked")
	}
	n := c.Keys.Notice()
	if n.Message != "API key removed" || n.Class != ClassSuccess {
		t.Errorf("page notice = %+v", n)
	}
	if got := f.count("ListKeys"); got != 2 {
		t.Errorf("ListKeys calls = %d, want 2 (load + one reload)", got)
	}
	if _, ok := c.Keys.View().Keys["k1"]; ok {
		t.Error("removed key still listed after reload")
	}
}

func TestOverlay_ConfirmFailureStaysOpen(t *testing.T) {
	f := newFakeBackend()
	f.setFail("DeleteKey", serverError("Key is in use"))
	c := newTestConsole(t, f)
	c.Keys.Load(context.Background())

	o := c.Keys.Remove("k1")
	err := o.Confirm(context.Background())
	if err == nil {
		t.Fatal("Confirm should fail")
	}
	if o.State() != StateOpen {
		t.Errorf("state = %s, want open", o.State())
	}
	if n := o.Notice(); n.Message != "Key is in use" || n.Class != ClassDanger {
		t.Errorf("overlay notice = %+v", n)
	}
	if n := c.Keys.Notice(); n.Message != "" {
		t.Errorf("page notice should be untouched, got %+v", n)
	}
	if got := f.count("ListKeys"); got != 1 {
		t.Errorf("ListKeys calls = %d, want 1 (no reload on failure)", got)
	}

	// A retry after fixing the backend succeeds.
	f.setFail("DeleteKey", nil)
	if err := o.Confirm(context.Background()); err != nil {
		t.Fatalf("retry returned error: %v", err)
	}
	if o.State() != StateClosed {
		t.Errorf("state after retry = %s, want closed", o.State())
	}
}

func TestOverlay_BusyAndClosed(t *testing.T) {
	f := newFakeBackend()
	release := f.setBlock("DeleteKey")
	c := newTestConsole(t, f)

	o := c.Keys.Remove("k1")
	done := make(chan error, 1)
	go func() { done <- o.Confirm(context.Background()) }()
	waitFor(t, "submitting", func() bool { return o.State() == StateSubmitting })

	if err := o.Confirm(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("second Confirm = %v, want ErrBusy", err)
	}
	if err := o.Bind(json.RawMessage(`{}`)); !errors.Is(err, ErrBusy) && !errors.Is(err, ErrReadOnly) {
		t.Errorf("Bind while submitting = %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}
	if err := o.Confirm(context.Background()); !errors.Is(err, ErrOverlayClosed) {
		t.Errorf("Confirm after close = %v, want ErrOverlayClosed", err)
	}
}

func TestOverlay_LateResultIsStale(t *testing.T) {
	f := newFakeBackend()
	f.setBlock("DeleteKey")
	c := newTestConsole(t, f)
	c.Keys.Load(context.Background())

	o := c.Keys.Remove("k1")
	done := make(chan error, 1)
	go func() { done <- o.Confirm(context.Background()) }()
	waitFor(t, "submitting", func() bool { return o.State() == StateSubmitting })

	o.Close()
	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("Confirm = %v, want ErrStale", err)
	}
	if n := c.Keys.Notice(); n.Message != "" {
		t.Errorf("stale result wrote page notice %+v", n)
	}
	if got := f.count("ListKeys"); got != 1 {
		t.Errorf("ListKeys calls = %d, want 1 (no reload for stale result)", got)
	}
}

func TestOverlay_CallerCancel(t *testing.T) {
	f := newFakeBackend()
	f.setBlock("FlushIndex")
	c := newTestConsole(t, f)

	o := c.Indexes.Flush("i1")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Confirm(ctx) }()
	waitFor(t, "submitting", func() bool { return o.State() == StateSubmitting })
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Confirm = %v, want context.Canceled", err)
	}
	if o.State() != StateOpen {
		t.Errorf("state = %s, want open after caller cancel", o.State())
	}
}

func TestOverlay_CloseIdempotent(t *testing.T) {
	c := newTestConsole(t, newFakeBackend())
	o := c.Indexes.Deactivate("i1")
	o.Close()
	o.Close()
	if len(c.Overlays.List()) != 0 {
		t.Errorf("overlays = %d, want 0", len(c.Overlays.List()))
	}
	if err := o.Bind(json.RawMessage(`{}`)); !errors.Is(err, ErrOverlayClosed) {
		t.Errorf("Bind after close = %v, want ErrOverlayClosed", err)
	}
}

func TestOverlays_CloseAll(t *testing.T) {
	c := New(context.Background(), newFakeBackend(), Options{})
	a := c.Keys.Remove("k1")
	b := c.Indexes.Flush("i1")
	if got := len(c.Overlays.List()); got != 2 {
		t.Fatalf("overlays = %d, want 2", got)
	}
	if c.Overlays.List()[0].ID != a.ID {
		t.Error("List should return overlays oldest first")
	}
	c.Close()
	if a.State() != StateClosed || b.State() != StateClosed {
		t.Error("Close should close every overlay")
	}
}

func TestOverlay_View(t *testing.T) {
	c := newTestConsole(t, newFakeBackend())
	o := c.Indexes.Flush("i1")
	v := o.View()
	if v.Template != TemplateConfirm || v.Title != "Flush index" || v.OkText != "Flush" {
		t.Errorf("View = %+v", v)
	}
	if v.Message != `Flush all the indexed data in the index "i1". This can not be undone.` {
		t.Errorf("Message = %q", v.Message)
	}
	if !v.ReadOnly || v.Form != nil || v.Notice != nil {
		t.Errorf("confirm overlay should have no form, got %+v", v)
	}
}

// closingOwner closes the overlay while the outcome is being reported, the
// way a browser dismissing the dialog at that moment would.
type closingOwner struct {
	overlay   *Overlay
	notices   []Notice
	reloads   int
	seenState OverlayState
}

func (c *closingOwner) notify(n Notice) {
	c.seenState = c.overlay.State()
	c.overlay.Close()
	c.notices = append(c.notices, n)
}

func (c *closingOwner) reload(time.Duration) { c.reloads++ }

func TestOverlay_CloseDuringReportIsNoop(t *testing.T) {
	overlays := NewOverlays(context.Background(), nil)
	page := &closingOwner{}
	o := overlays.Open(TemplateConfirm, &Scope{
		Action: "test",
		Confirmed: func(context.Context) (Outcome, error) {
			return Outcome{Message: "done"}, nil
		},
	}, page)
	page.overlay = o

	if err := o.Confirm(context.Background()); err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}
	if page.seenState != StateClosed {
		t.Errorf("state while reporting = %s, want closed", page.seenState)
	}
	if len(page.notices) != 1 || page.notices[0].Message != "done" || page.reloads != 1 {
		t.Errorf("notices = %+v reloads = %d, want one of each", page.notices, page.reloads)
	}
	if overlays.Get(o.ID) != nil {
		t.Error("overlay still tracked after confirm")
	}
	if err := o.Confirm(context.Background()); !errors.Is(err, ErrOverlayClosed) {
		t.Errorf("Confirm after close = %v, want ErrOverlayClosed", err)
	}
}
