package console

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/rflorenc/search-admin/internal/models"
)

// ExportJSON renders one mapping the way the export overlay shows it:
// {"<id>": mapping}, indented by two spaces.
func ExportJSON(id string, m *models.Mapping) (string, error) {
	data, err := json.MarshalIndent(map[string]*models.Mapping{id: m}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding mapping %s: %w", id, err)
	}
	return string(data), nil
}

// ParseImport decodes import text into mappings keyed by index id. Every
// mapping is validated; nothing is sent when any entry is rejected.
func ParseImport(text string) (map[string]*models.Mapping, error) {
	if strings.TrimSpace(text) == "" {
		return nil, invalid("import text is empty")
	}
	var mappings map[string]*models.Mapping
	if err := json.Unmarshal([]byte(text), &mappings); err != nil {
		return nil, invalid("parsing import: %v", err)
	}
	if len(mappings) == 0 {
		return nil, invalid("import contains no mappings")
	}
	for _, id := range sortedKeys(mappings) {
		m := mappings[id]
		if id == "" {
			return nil, invalid("import contains an empty index id")
		}
		if m == nil {
			return nil, invalid("%s: mapping is null", id)
		}
		if err := m.Validate(); err != nil {
			return nil, invalid("%s: %v", id, err)
		}
		if m.Fields == nil {
			m.Fields = []models.FieldSpec{}
		}
		if m.Dates == nil {
			m.Dates = []string{}
		}
	}
	return mappings, nil
}

// ImportSummary is the settled result of an import.
type ImportSummary struct {
	Succeeded []string          `json:"succeeded"`
	Failed    []string          `json:"failed"`
	Errors    map[string]string `json:"errors,omitempty"`
}

func (s ImportSummary) String() string {
	total := len(s.Succeeded) + len(s.Failed)
	if len(s.Failed) == 0 {
		return fmt.Sprintf("Imported %d of %d mappings", len(s.Succeeded), total)
	}
	parts := make([]string, 0, len(s.Failed))
	for _, id := range s.Failed {
		parts = append(parts, id+": "+s.Errors[id])
	}
	return fmt.Sprintf("Imported %d of %d mappings. Failed: %s", len(s.Succeeded), total, strings.Join(parts, "; "))
}

// ImportError is returned when no entry of an import succeeded.
type ImportError struct {
	Summary ImportSummary
}

func (e *ImportError) Error() string { return e.Summary.String() }

// importLimit caps the create requests an import has in flight at once.
const importLimit = 4

// importMappings creates every mapping, at most importLimit at a time, and
// waits for all of them. A failed entry does not stop the others. Ids are used
// as given.
func importMappings(ctx context.Context, api Backend, mappings map[string]*models.Mapping) ImportSummary {
	var (
		mu      sync.Mutex
		g       errgroup.Group
		summary = ImportSummary{Succeeded: []string{}, Failed: []string{}, Errors: map[string]string{}}
	)
	g.SetLimit(importLimit)
	for id, m := range mappings {
		g.Go(func() error {
			_, err := api.CreateMapping(ctx, id, m)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Debug().Err(err).Str("index", id).Msg("Import of mapping failed")
				summary.Failed = append(summary.Failed, id)
				summary.Errors[id] = errorMessage(err)
				return nil
			}
			summary.Succeeded = append(summary.Succeeded, id)
			return nil
		})
	}
	g.Wait()
	sort.Strings(summary.Succeeded)
	sort.Strings(summary.Failed)
	return summary
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
