package models

import (
	"errors"
	"fmt"
)

// FieldSpec describes how one document field is indexed.
type FieldSpec struct {
	Field           string `json:"field,omitempty"`
	Type            string `json:"type"`
	Country         string `json:"country,omitempty"`
	Language        string `json:"language,omitempty"`
	DefaultAnalyzer string `json:"default_analyzer,omitempty"`
	DefaultIndexer  string `json:"default_indexer,omitempty"`
	Sort            bool   `json:"sort"`
	Indexable       bool   `json:"indexable"`
	Raw             bool   `json:"raw"`
	GeoPoint        bool   `json:"geopoint"`
}

// GeoPointType is the field type forced on geopoint fields.
const GeoPointType = "geo_point"

// DefaultField returns the field a mapping form appends on "add field".
func DefaultField() FieldSpec {
	return FieldSpec{
		Type:            "string",
		Country:         "DK",
		Language:        "da",
		DefaultAnalyzer: "string_index",
		DefaultIndexer:  "analysed",
		Indexable:       true,
	}
}

// Mapping is the configuration of one search index.
type Mapping struct {
	Name   string      `json:"name"`
	Fields []FieldSpec `json:"fields"`
	Dates  []string    `json:"dates"`
}

// NewMapping returns the blank mapping a create form starts from.
func NewMapping() *Mapping {
	return &Mapping{Fields: []FieldSpec{}, Dates: []string{}}
}

// Clone returns a deep copy.
func (m *Mapping) Clone() *Mapping {
	c := &Mapping{
		Name:   m.Name,
		Fields: make([]FieldSpec, len(m.Fields)),
		Dates:  make([]string, len(m.Dates)),
	}
	copy(c.Fields, m.Fields)
	copy(c.Dates, m.Dates)
	return c
}

// Validate checks the mapping before it is sent to the backend.
func (m *Mapping) Validate() error {
	var errs []error
	if m.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	for i, f := range m.Fields {
		if f.Type == "" {
			errs = append(errs, fmt.Errorf("fields[%d]: type is required", i))
		}
	}
	return errors.Join(errs...)
}

func (m *Mapping) AddField() {
	m.Fields = append(m.Fields, DefaultField())
}

// RemoveField drops the field at position k. Out of range is a no-op.
func (m *Mapping) RemoveField(k int) {
	m.Fields = removeAt(m.Fields, k)
}

func (m *Mapping) AddDate() {
	m.Dates = append(m.Dates, "")
}

// RemoveDate drops the date at position k. Out of range is a no-op.
func (m *Mapping) RemoveDate(k int) {
	m.Dates = removeAt(m.Dates, k)
}

// ToggleGeoPoint applies the geopoint side effects to field k: a geopoint
// field is typed geo_point and is never indexable.
func (m *Mapping) ToggleGeoPoint(k int) {
	if k < 0 || k >= len(m.Fields) {
		return
	}
	f := &m.Fields[k]
	f.GeoPoint = !f.GeoPoint
	if f.GeoPoint {
		f.Indexable = false
		f.Type = GeoPointType
	}
}

// removeAt returns a new slice without element k, keeping order.
func removeAt[T any](s []T, k int) []T {
	if k < 0 || k >= len(s) {
		return s
	}
	out := make([]T, 0, len(s)-1)
	out = append(out, s[:k]...)
	return append(out, s[k+1:]...)
}
