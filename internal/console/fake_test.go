package console

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rflorenc/search-admin/internal/backend"
	"github.com/rflorenc/search-admin/internal/models"
)

// fakeBackend is an in-memory admin API. fail maps an operation name
// ("ListKeys", "CreateMapping:abc", ...) to the error it returns; block maps
// an operation name to a channel the call waits on.
type fakeBackend struct {
	mu       sync.Mutex
	keys     map[string]*models.APIKey
	mappings map[string]*models.Mapping
	indexes  map[string]*models.IndexStatus
	fail     map[string]error
	block    map[string]chan struct{}
	calls    []string

	// createDelay holds each CreateMapping so overlapping calls can be counted.
	createDelay time.Duration
	creating    int
	peakCreates int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		keys:     map[string]*models.APIKey{},
		mappings: map[string]*models.Mapping{},
		indexes:  map[string]*models.IndexStatus{},
		fail:     map[string]error{},
		block:    map[string]chan struct{}{},
	}
}

func serverError(msg string) error {
	return &backend.Reason{Status: http.StatusInternalServerError, Message: msg}
}

func (f *fakeBackend) setFail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = err
}

func (f *fakeBackend) setBlock(op string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.block[op] = ch
	return ch
}

func (f *fakeBackend) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

// enter records the call and applies blocking and failure injection.
func (f *fakeBackend) enter(ctx context.Context, op, id string) error {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	ch := f.block[op]
	err := f.fail[op]
	if err == nil && id != "" {
		err = f.fail[op+":"+id]
	}
	f.mu.Unlock()
	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeBackend) ListKeys(ctx context.Context) (map[string]*models.APIKey, error) {
	if err := f.enter(ctx, "ListKeys", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*models.APIKey, len(f.keys))
	for k, v := range f.keys {
		c := *v
		out[k] = &c
	}
	return out, nil
}

func (f *fakeBackend) GetKey(ctx context.Context, key string) (*models.APIKey, error) {
	if err := f.enter(ctx, "GetKey", key); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.keys[key]
	if !ok {
		return nil, &backend.Reason{Status: http.StatusNotFound, Message: "Key not found"}
	}
	c := *k
	return &c, nil
}

func (f *fakeBackend) CreateKey(ctx context.Context, k *models.APIKey) (string, error) {
	if err := f.enter(ctx, "CreateKey", k.Key); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *k
	f.keys[k.Key] = &c
	return "API key created", nil
}

func (f *fakeBackend) UpdateKey(ctx context.Context, key string, k *models.APIKey) (string, error) {
	if err := f.enter(ctx, "UpdateKey", key); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *k
	f.keys[key] = &c
	return "API key updated", nil
}

func (f *fakeBackend) DeleteKey(ctx context.Context, key string) (string, error) {
	if err := f.enter(ctx, "DeleteKey", key); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
	return "API key removed", nil
}

func (f *fakeBackend) ListMappings(ctx context.Context) (map[string]*models.Mapping, error) {
	if err := f.enter(ctx, "ListMappings", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*models.Mapping, len(f.mappings))
	for k, v := range f.mappings {
		out[k] = v.Clone()
	}
	return out, nil
}

func (f *fakeBackend) GetMapping(ctx context.Context, index string) (*models.Mapping, error) {
	if err := f.enter(ctx, "GetMapping", index); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.mappings[index]
	if !ok {
		return nil, &backend.Reason{Status: http.StatusNotFound, Message: "Mapping not found"}
	}
	return m.Clone(), nil
}

func (f *fakeBackend) CreateMapping(ctx context.Context, index string, m *models.Mapping) (string, error) {
	if err := f.enter(ctx, "CreateMapping", index); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.creating++
	if f.creating > f.peakCreates {
		f.peakCreates = f.creating
	}
	delay := f.createDelay
	f.mu.Unlock()
	time.Sleep(delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.creating--
	if _, ok := f.mappings[index]; ok {
		return "", &backend.Reason{Status: http.StatusConflict, Message: "Mapping already exists"}
	}
	f.mappings[index] = m.Clone()
	return fmt.Sprintf("Mapping %s created", index), nil
}

func (f *fakeBackend) UpdateMapping(ctx context.Context, index string, m *models.Mapping) (string, error) {
	if err := f.enter(ctx, "UpdateMapping", index); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mappings[index] = m.Clone()
	return "Mapping updated", nil
}

func (f *fakeBackend) DeleteMapping(ctx context.Context, index string) (string, error) {
	if err := f.enter(ctx, "DeleteMapping", index); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.mappings, index)
	return "Mapping removed", nil
}

func (f *fakeBackend) ListIndexes(ctx context.Context) (map[string]*models.IndexStatus, error) {
	if err := f.enter(ctx, "ListIndexes", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*models.IndexStatus, len(f.indexes))
	for k, v := range f.indexes {
		c := *v
		out[k] = &c
	}
	return out, nil
}

func (f *fakeBackend) FlushIndex(ctx context.Context, index string) (string, error) {
	if err := f.enter(ctx, "FlushIndex", index); err != nil {
		return "", err
	}
	return "Index flushed", nil
}

func (f *fakeBackend) ActivateIndex(ctx context.Context, index string) (string, error) {
	if err := f.enter(ctx, "ActivateIndex", index); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexes[index] = &models.IndexStatus{Health: models.HealthGreen}
	return "Index activated", nil
}

func (f *fakeBackend) DeactivateIndex(ctx context.Context, index string) (string, error) {
	if err := f.enter(ctx, "DeactivateIndex", index); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.indexes, index)
	return "Index deactivated", nil
}

var _ Backend = (*fakeBackend)(nil)
