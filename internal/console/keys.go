package console

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rflorenc/search-admin/internal/ident"
	"github.com/rflorenc/search-admin/internal/models"
)

// KeyForm is the model behind the key add and edit overlays.
type KeyForm struct {
	API      *models.APIKey         `json:"api"`
	Mappings []models.MappingOption `json:"mappings"`
}

// KeysView is the API keys page as the browser renders it.
type KeysView struct {
	State    PageState                  `json:"state"`
	Notice   *Notice                    `json:"notice,omitempty"`
	Keys     map[string]*models.APIKey  `json:"keys"`
	Mappings map[string]*models.Mapping `json:"mappings"`
}

// KeyList is the API keys page.
type KeyList struct {
	*page
	api      Backend
	overlays *Overlays

	keys     map[string]*models.APIKey
	mappings map[string]*models.Mapping
}

func newKeyList(ctx context.Context, api Backend, overlays *Overlays, feed *Feed) *KeyList {
	l := &KeyList{
		page:     newPage(ctx, "keys", feed),
		api:      api,
		overlays: overlays,
		keys:     map[string]*models.APIKey{},
		mappings: map[string]*models.Mapping{},
	}
	l.page.load = l.Load
	return l
}

// Load fetches the keys, then the mappings the key forms offer. The snapshot
// is only replaced when both succeed.
func (l *KeyList) Load(ctx context.Context) {
	seq := l.beginLoad()
	keys, err := l.api.ListKeys(ctx)
	var mappings map[string]*models.Mapping
	if err == nil {
		mappings, err = l.api.ListMappings(ctx)
	}
	l.finishLoad(seq, err, func() {
		l.keys = keys
		l.mappings = mappings
	})
}

// Reload is Load.
func (l *KeyList) Reload(ctx context.Context) { l.Load(ctx) }

// View snapshots the page. The collections are replaced, never mutated, on
// load, so they are shared with the caller.
func (l *KeyList) View() KeysView {
	l.mu.Lock()
	defer l.mu.Unlock()
	v := KeysView{State: l.state, Keys: l.keys, Mappings: l.mappings}
	if l.notice.Message != "" {
		n := l.notice
		v.Notice = &n
	}
	return v
}

func (l *KeyList) options() []models.MappingOption {
	l.mu.Lock()
	defer l.mu.Unlock()
	return models.MappingOptions(l.mappings)
}

// Remove asks to confirm deleting key.
func (l *KeyList) Remove(key string) *Overlay {
	return l.overlays.Open(TemplateConfirm, &Scope{
		Title:   "Remove API key",
		Message: fmt.Sprintf(`Remove the key "%s". This can not be undone.`, key),
		OkText:  "Remove",
		Action:  "key_remove",
		Confirmed: func(ctx context.Context) (Outcome, error) {
			msg, err := l.api.DeleteKey(ctx, key)
			return Outcome{Message: msg}, err
		},
	}, l)
}

// Add opens the create form. The key is derived from the name and
// regenerated whenever the name changes.
func (l *KeyList) Add() *Overlay {
	form := &KeyForm{API: models.NewAPIKey(), Mappings: l.options()}
	return l.overlays.Open(TemplateKeyAdd, &Scope{
		Form:   form,
		Action: "key_add",
		Bind: func(raw json.RawMessage) error {
			k, err := decodeKey(raw)
			if err != nil {
				return err
			}
			if k.Name != form.API.Name {
				k.Key = ident.Generate(k.Name)
			} else {
				k.Key = form.API.Key
			}
			form.API = k
			return nil
		},
		Confirmed: func(ctx context.Context) (Outcome, error) {
			if err := form.API.Validate(); err != nil {
				return Outcome{}, &ValidationError{Err: err}
			}
			msg, err := l.api.CreateKey(ctx, form.API)
			return Outcome{Message: msg}, err
		},
	}, l)
}

// Edit fetches key and opens the edit form. The key itself can not be
// changed. When the fetch fails the page shows the error and no overlay opens.
func (l *KeyList) Edit(ctx context.Context, key string) (*Overlay, error) {
	k, err := l.api.GetKey(ctx, key)
	if err != nil {
		l.notify(failureNotice(err))
		return nil, err
	}
	k.Key = key
	form := &KeyForm{API: k, Mappings: l.options()}
	return l.overlays.Open(TemplateKeyEdit, &Scope{
		Form:   form,
		Action: "key_edit",
		Bind: func(raw json.RawMessage) error {
			k, err := decodeKey(raw)
			if err != nil {
				return err
			}
			k.Key = key
			form.API = k
			return nil
		},
		Confirmed: func(ctx context.Context) (Outcome, error) {
			if err := form.API.Validate(); err != nil {
				return Outcome{}, &ValidationError{Err: err}
			}
			msg, err := l.api.UpdateKey(ctx, key, form.API)
			return Outcome{Message: msg}, err
		},
	}, l), nil
}

// decodeKey reads a key form update, {"api": {...}}.
func decodeKey(raw json.RawMessage) (*models.APIKey, error) {
	var payload models.KeyPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, invalid("decoding key form: %v", err)
	}
	if payload.API == nil {
		return nil, invalid("key form has no api object")
	}
	if payload.API.Indexes == nil {
		payload.API.Indexes = []string{}
	}
	return payload.API, nil
}

