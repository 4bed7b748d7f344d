package console

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rflorenc/search-admin/internal/ident"
	"github.com/rflorenc/search-admin/internal/models"
)

// MappingForm is the model behind the index add and edit overlays.
type MappingForm struct {
	Index   string          `json:"index"`
	Mapping *models.Mapping `json:"mapping"`
}

// CopyForm is the model behind the copy overlay. Index is derived from Name.
type CopyForm struct {
	Source string `json:"source"`
	Name   string `json:"name"`
	Index  string `json:"index"`
}

// TransferForm holds the JSON text of the import and export overlays.
type TransferForm struct {
	Index string `json:"index,omitempty"`
	JSON  string `json:"json"`
}

// IndexesView is the indexes page as the browser renders it.
type IndexesView struct {
	State    PageState                      `json:"state"`
	Notice   *Notice                        `json:"notice,omitempty"`
	Indexes  map[string]*models.IndexStatus `json:"indexes"`
	Active   map[string]*models.Mapping     `json:"active"`
	Inactive map[string]*models.Mapping     `json:"inactive"`
}

// IndexList is the indexes page: the active indexes reported by the backend
// and every configured mapping, split by whether its index is active.
type IndexList struct {
	*page
	api          Backend
	overlays     *Overlays
	refreshDelay time.Duration

	indexes  map[string]*models.IndexStatus
	active   map[string]*models.Mapping
	inactive map[string]*models.Mapping
}

func newIndexList(ctx context.Context, api Backend, overlays *Overlays, feed *Feed, refreshDelay time.Duration) *IndexList {
	l := &IndexList{
		page:         newPage(ctx, "indexes", feed),
		api:          api,
		overlays:     overlays,
		refreshDelay: refreshDelay,
		indexes:      map[string]*models.IndexStatus{},
		active:       map[string]*models.Mapping{},
		inactive:     map[string]*models.Mapping{},
	}
	l.page.load = l.Load
	return l
}

// Load fetches the active indexes, then the mappings. The snapshot is only
// replaced when both succeed.
func (l *IndexList) Load(ctx context.Context) {
	seq := l.beginLoad()
	indexes, err := l.api.ListIndexes(ctx)
	var mappings map[string]*models.Mapping
	if err == nil {
		mappings, err = l.api.ListMappings(ctx)
	}
	l.finishLoad(seq, err, func() {
		active := make(map[string]*models.Mapping)
		inactive := make(map[string]*models.Mapping)
		for id, m := range mappings {
			if _, ok := indexes[id]; ok {
				active[id] = m
			} else {
				inactive[id] = m
			}
		}
		l.indexes, l.active, l.inactive = indexes, active, inactive
	})
}

// Reload is Load.
func (l *IndexList) Reload(ctx context.Context) { l.Load(ctx) }

// View snapshots the page.
func (l *IndexList) View() IndexesView {
	l.mu.Lock()
	defer l.mu.Unlock()
	v := IndexesView{State: l.state, Indexes: l.indexes, Active: l.active, Inactive: l.inactive}
	if l.notice.Message != "" {
		n := l.notice
		v.Notice = &n
	}
	return v
}

// GetClass maps an index health to its row class.
func (l *IndexList) GetClass(health string) string {
	return models.HealthClass(health)
}

// Edit fetches the mapping of index and opens the edit form.
func (l *IndexList) Edit(ctx context.Context, index string) (*Overlay, error) {
	m, err := l.api.GetMapping(ctx, index)
	if err != nil {
		l.notify(failureNotice(err))
		return nil, err
	}
	form := &MappingForm{Index: index, Mapping: m}
	return l.overlays.Open(TemplateIndexEdit, &Scope{
		Form:   form,
		Action: "index_edit",
		Bind: func(raw json.RawMessage) error {
			m, err := decodeMapping(raw)
			if err != nil {
				return err
			}
			form.Mapping = m
			return nil
		},
		Confirmed: func(ctx context.Context) (Outcome, error) {
			if err := form.Mapping.Validate(); err != nil {
				return Outcome{}, &ValidationError{Err: err}
			}
			msg, err := l.api.UpdateMapping(ctx, index, form.Mapping)
			return Outcome{Message: msg}, err
		},
	}, l), nil
}

// Flush asks to confirm dropping the indexed data of index. The backend
// flushes asynchronously, so the reload is delayed.
func (l *IndexList) Flush(index string) *Overlay {
	return l.overlays.Open(TemplateConfirm, &Scope{
		Title:       "Flush index",
		Message:     fmt.Sprintf(`Flush all the indexed data in the index "%s". This can not be undone.`, index),
		OkText:      "Flush",
		Action:      "index_flush",
		ReloadDelay: l.refreshDelay,
		Confirmed: func(ctx context.Context) (Outcome, error) {
			msg, err := l.api.FlushIndex(ctx, index)
			return Outcome{Message: msg}, err
		},
	}, l)
}

// Copy opens the copy form. Confirming fetches the source mapping and
// creates it under the new name and a freshly generated index id. Only the
// configuration is copied, not the indexed content.
func (l *IndexList) Copy(index string) *Overlay {
	form := &CopyForm{Source: index}
	return l.overlays.Open(TemplateCopyConfirm, &Scope{
		Title:   "Copy mappings configuration",
		Message: "This will copy the indexes configuration to a new index (but NOT the indexes content).",
		OkText:  "Copy",
		Form:    form,
		Action:  "index_copy",
		Bind: func(raw json.RawMessage) error {
			var update struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(raw, &update); err != nil {
				return invalid("decoding copy form: %v", err)
			}
			if update.Name != form.Name {
				form.Name = update.Name
				form.Index = ident.Generate(update.Name)
			}
			return nil
		},
		Confirmed: func(ctx context.Context) (Outcome, error) {
			if form.Index == "" {
				return Outcome{}, invalid("name is required")
			}
			src, err := l.api.GetMapping(ctx, form.Source)
			if err != nil {
				return Outcome{}, err
			}
			m := src.Clone()
			m.Name = form.Name
			msg, err := l.api.CreateMapping(ctx, form.Index, m)
			return Outcome{Message: msg}, err
		},
	}, l)
}

// Deactivate asks to confirm deleting the index. The mapping is kept.
func (l *IndexList) Deactivate(index string) *Overlay {
	return l.overlays.Open(TemplateConfirm, &Scope{
		Title:   "Deactivate index",
		Message: fmt.Sprintf(`Deactivate the index "%s" will delete all indexed data. This can not be undone.`, index),
		OkText:  "Deactivate",
		Action:  "index_deactivate",
		Confirmed: func(ctx context.Context) (Outcome, error) {
			msg, err := l.api.DeactivateIndex(ctx, index)
			return Outcome{Message: msg}, err
		},
	}, l)
}

// AddMapping opens the create form. The index id follows the mapping name.
func (l *IndexList) AddMapping() *Overlay {
	form := &MappingForm{Mapping: models.NewMapping()}
	return l.overlays.Open(TemplateIndexAdd, &Scope{
		Form:   form,
		Action: "mapping_add",
		Bind: func(raw json.RawMessage) error {
			m, err := decodeMapping(raw)
			if err != nil {
				return err
			}
			if m.Name != form.Mapping.Name {
				form.Index = ident.Generate(m.Name)
			}
			form.Mapping = m
			return nil
		},
		Confirmed: func(ctx context.Context) (Outcome, error) {
			if err := form.Mapping.Validate(); err != nil {
				return Outcome{}, &ValidationError{Err: err}
			}
			if form.Index == "" {
				return Outcome{}, invalid("index id is missing")
			}
			msg, err := l.api.CreateMapping(ctx, form.Index, form.Mapping)
			return Outcome{Message: msg}, err
		},
	}, l)
}

// ImportMapping opens the import form. Confirming creates every mapping in
// the pasted JSON. The overlay closes when at least one import succeeded.
func (l *IndexList) ImportMapping() *Overlay {
	form := &TransferForm{}
	return l.overlays.Open(TemplateIndexImport, &Scope{
		Form:   form,
		Action: "mapping_import",
		Bind: func(raw json.RawMessage) error {
			var update TransferForm
			if err := json.Unmarshal(raw, &update); err != nil {
				return invalid("decoding import form: %v", err)
			}
			form.JSON = update.JSON
			return nil
		},
		Confirmed: func(ctx context.Context) (Outcome, error) {
			mappings, err := ParseImport(form.JSON)
			if err != nil {
				return Outcome{}, err
			}
			summary := importMappings(ctx, l.api, mappings)
			if len(summary.Succeeded) == 0 {
				return Outcome{}, &ImportError{Summary: summary}
			}
			out := Outcome{Message: summary.String(), Class: ClassSuccess}
			if len(summary.Failed) > 0 {
				out.Class = ClassDanger
			}
			return out, nil
		},
	}, l)
}

// ExportMapping fetches the mapping of index and shows it as JSON in a
// read-only overlay.
func (l *IndexList) ExportMapping(ctx context.Context, index string) (*Overlay, error) {
	m, err := l.api.GetMapping(ctx, index)
	if err == nil {
		var text string
		text, err = ExportJSON(index, m)
		if err == nil {
			return l.overlays.Open(TemplateIndexExport, &Scope{
				Form:   &TransferForm{Index: index, JSON: text},
				Action: "mapping_export",
			}, l), nil
		}
	}
	l.notify(failureNotice(err))
	return nil, err
}

// RemoveMapping asks to confirm deleting the mapping of index.
func (l *IndexList) RemoveMapping(index string) *Overlay {
	return l.overlays.Open(TemplateConfirm, &Scope{
		Title:   "Remove mapping",
		Message: fmt.Sprintf(`Remove the mapping "%s" from configuration. This can not be undone.`, index),
		OkText:  "Remove",
		Action:  "mapping_remove",
		Confirmed: func(ctx context.Context) (Outcome, error) {
			msg, err := l.api.DeleteMapping(ctx, index)
			return Outcome{Message: msg}, err
		},
	}, l)
}

// Activate starts indexing without confirmation. The backend activates
// asynchronously, so the reload is delayed.
func (l *IndexList) Activate(ctx context.Context, index string) error {
	msg, err := l.api.ActivateIndex(ctx, index)
	if err != nil {
		l.notify(failureNotice(err))
		l.overlays.metrics.RecordWorkflow("index_activate", "failure")
		return err
	}
	l.notify(Notice{Message: msg, Class: ClassSuccess})
	l.overlays.metrics.RecordWorkflow("index_activate", "success")
	l.reload(l.refreshDelay)
	return nil
}

// decodeMapping reads a mapping form update, {"mapping": {...}}.
func decodeMapping(raw json.RawMessage) (*models.Mapping, error) {
	var update MappingForm
	if err := json.Unmarshal(raw, &update); err != nil {
		return nil, invalid("decoding mapping form: %v", err)
	}
	if update.Mapping == nil {
		return nil, invalid("mapping form has no mapping object")
	}
	if update.Mapping.Fields == nil {
		update.Mapping.Fields = []models.FieldSpec{}
	}
	if update.Mapping.Dates == nil {
		update.Mapping.Dates = []string{}
	}
	return update.Mapping, nil
}
