package models

import (
	"errors"
	"fmt"
	"sort"
)

// Access is the permission level granted by an API key.
type Access string

const (
	AccessReadOnly  Access = "ro"
	AccessReadWrite Access = "rw"
)

// DefaultKeyExpire is the expire value (seconds) a new key starts with.
const DefaultKeyExpire = 300

// APIKey is a search API key as the backend stores it.
type APIKey struct {
	Key     string   `json:"key"`
	Name    string   `json:"name"`
	Expire  int      `json:"expire"`
	Access  Access   `json:"access"`
	Indexes []string `json:"indexes"`
}

// NewAPIKey returns the blank key a create form starts from.
func NewAPIKey() *APIKey {
	return &APIKey{
		Expire:  DefaultKeyExpire,
		Access:  AccessReadWrite,
		Indexes: []string{},
	}
}

// Validate checks the key before it is sent to the backend.
func (k *APIKey) Validate() error {
	var errs []error
	if k.Key == "" {
		errs = append(errs, errors.New("key is required"))
	}
	if k.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if k.Access != AccessReadOnly && k.Access != AccessReadWrite {
		errs = append(errs, fmt.Errorf("access must be %q or %q, got %q", AccessReadOnly, AccessReadWrite, k.Access))
	}
	if k.Expire < 0 {
		errs = append(errs, fmt.Errorf("expire must not be negative, got %d", k.Expire))
	}
	return errors.Join(errs...)
}

// KeyPayload is the request envelope the backend expects for key writes.
type KeyPayload struct {
	API *APIKey `json:"api"`
}

// MappingOption is one entry in the index choice list of a key form.
type MappingOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MappingOptions builds the sorted index choices from a mappings collection.
func MappingOptions(mappings map[string]*Mapping) []MappingOption {
	opts := make([]MappingOption, 0, len(mappings))
	for id, m := range mappings {
		name := ""
		if m != nil {
			name = m.Name
		}
		opts = append(opts, MappingOption{ID: id, Name: name})
	}
	sort.Slice(opts, func(i, j int) bool {
		if opts[i].Name != opts[j].Name {
			return opts[i].Name < opts[j].Name
		}
		return opts[i].ID < opts[j].ID
	})
	return opts
}
