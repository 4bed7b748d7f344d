package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rflorenc/search-admin/internal/models"
)

func TestExportJSON(t *testing.T) {
	text, err := ExportJSON("i1", articles())
	if err != nil {
		t.Fatalf("ExportJSON returned error: %v", err)
	}
	if !strings.HasPrefix(text, "{\n  \"i1\": {\n    \"name\": \"Articles\"") {
		t.Errorf("unexpected layout:\n%s", text)
	}
}

func TestParseImport_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", "   "},
		{"malformed", `{"i1": `},
		{"wrong shape", `["i1"]`},
		{"no entries", `{}`},
		{"null mapping", `{"i1": null}`},
		{"missing name", `{"i1": {"fields": []}}`},
		{"missing field type", `{"i1": {"name": "A", "fields": [{"field": "x"}]}}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseImport(tc.text)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("ParseImport = %v, want ValidationError", err)
			}
		})
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := seededIndexes()
	c := newTestConsole(t, src)
	o, err := c.Indexes.ExportMapping(context.Background(), "i1")
	if err != nil {
		t.Fatalf("ExportMapping returned error: %v", err)
	}
	if !o.View().ReadOnly {
		t.Error("export overlay should be read-only")
	}
	if err := o.Confirm(context.Background()); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Confirm on export = %v, want ErrReadOnly", err)
	}
	text := o.scope.Form.(*TransferForm).JSON

	dst := newFakeBackend()
	c2 := newTestConsole(t, dst)
	imp := c2.Indexes.ImportMapping()
	raw, _ := json.Marshal(TransferForm{JSON: text})
	if err := imp.Bind(raw); err != nil {
		t.Fatalf("Bind returned error: %v", err)
	}
	if err := imp.Confirm(context.Background()); err != nil {
		t.Fatalf("import Confirm returned error: %v", err)
	}
	if !reflect.DeepEqual(dst.mappings["i1"], src.mappings["i1"]) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", dst.mappings["i1"], src.mappings["i1"])
	}
}

func TestExportMapping_FetchFailure(t *testing.T) {
	c := newTestConsole(t, newFakeBackend())
	o, err := c.Indexes.ExportMapping(context.Background(), "missing")
	if err == nil || o != nil {
		t.Fatalf("ExportMapping = %v, %v; want error and no overlay", o, err)
	}
	if n := c.Indexes.Notice(); n.Class != ClassDanger {
		t.Errorf("notice = %+v", n)
	}
}

const importText = `{
  "a": {"name": "A", "fields": [], "dates": []},
  "b": {"name": "B", "fields": [], "dates": []},
  "c": {"name": "C", "fields": [], "dates": []}
}`

func confirmImport(t *testing.T, c *Console, text string) (*Overlay, error) {
	t.Helper()
	o := c.Indexes.ImportMapping()
	raw, _ := json.Marshal(TransferForm{JSON: text})
	if err := o.Bind(raw); err != nil {
		t.Fatalf("Bind returned error: %v", err)
	}
	return o, o.Confirm(context.Background())
}

func TestImport_AllSucceed(t *testing.T) {
	f := newFakeBackend()
	c := newTestConsole(t, f)
	o, err := confirmImport(t, c, importText)
	if err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}
	if o.State() != StateClosed {
		t.Errorf("state = %s, want closed", o.State())
	}
	n := c.Indexes.Notice()
	if n.Message != "Imported 3 of 3 mappings" || n.Class != ClassSuccess {
		t.Errorf("notice = %+v", n)
	}
	if f.count("ListIndexes") != 1 {
		t.Errorf("reloads = %d, want exactly 1", f.count("ListIndexes"))
	}
}

func TestImport_PartialFailure(t *testing.T) {
	f := newFakeBackend()
	f.setFail("CreateMapping:b", serverError("duplicate"))
	c := newTestConsole(t, f)

	o, err := confirmImport(t, c, importText)
	if err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}
	if o.State() != StateClosed {
		t.Errorf("state = %s, want closed", o.State())
	}
	n := c.Indexes.Notice()
	if n.Class != ClassDanger || n.Message != "Imported 2 of 3 mappings. Failed: b: duplicate" {
		t.Errorf("notice = %+v", n)
	}
	if _, ok := f.mappings["a"]; !ok {
		t.Error("successful entries should be created")
	}
	if f.count("ListIndexes") != 1 {
		t.Errorf("reloads = %d, want exactly 1", f.count("ListIndexes"))
	}
}

func TestImport_AllFail(t *testing.T) {
	f := newFakeBackend()
	f.setFail("CreateMapping", serverError("read only"))
	c := newTestConsole(t, f)

	o, err := confirmImport(t, c, importText)
	var ie *ImportError
	if !errors.As(err, &ie) || len(ie.Summary.Failed) != 3 {
		t.Fatalf("Confirm = %v, want ImportError with 3 failures", err)
	}
	if o.State() != StateOpen || o.Notice().Class != ClassDanger {
		t.Errorf("overlay state=%s notice=%+v", o.State(), o.Notice())
	}
	if f.count("ListIndexes") != 0 {
		t.Error("no reload expected when every import failed")
	}
}

func TestImport_ParseErrorStaysOpen(t *testing.T) {
	f := newFakeBackend()
	c := newTestConsole(t, f)
	o, err := confirmImport(t, c, `{"a": `)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Confirm = %v, want ValidationError", err)
	}
	if o.State() != StateOpen {
		t.Errorf("state = %s, want open", o.State())
	}
	if f.count("CreateMapping") != 0 {
		t.Error("nothing should be sent for unparseable input")
	}
}

func TestImportSummary_String(t *testing.T) {
	s := ImportSummary{Succeeded: []string{"a"}, Failed: []string{"b", "c"}, Errors: map[string]string{"b": "x", "c": "y"}}
	if got := s.String(); got != "Imported 1 of 3 mappings. Failed: b: x; c: y" {
		t.Errorf("String() = %q", got)
	}
}

func TestImport_BoundsConcurrentCreates(t *testing.T) {
	f := newFakeBackend()
	f.createDelay = 20 * time.Millisecond
	f.setFail("CreateMapping:idx-03", serverError("disk full"))

	mappings := map[string]*models.Mapping{}
	for i := 0; i < 3*importLimit; i++ {
		mappings[fmt.Sprintf("idx-%02d", i)] = articles()
	}

	summary := importMappings(context.Background(), f, mappings)

	if len(summary.Succeeded) != len(mappings)-1 || len(summary.Failed) != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.Errors["idx-03"] != "disk full" {
		t.Errorf("errors = %v", summary.Errors)
	}
	f.mu.Lock()
	peak := f.peakCreates
	f.mu.Unlock()
	if peak > importLimit {
		t.Errorf("peak concurrent creates = %d, want at most %d", peak, importLimit)
	}
	if peak < 2 {
		t.Errorf("peak concurrent creates = %d, want creates to overlap", peak)
	}
}
