package models

import "encoding/json"

// Health is the cluster health the backend reports per index.
type Health string

const (
	HealthGreen  Health = "green"
	HealthYellow Health = "yellow"
	HealthRed    Health = "red"
)

// IndexStatus is the status of one active index. Fields the console does not
// interpret are kept in Extra so they survive a round trip to the browser.
type IndexStatus struct {
	Health Health                     `json:"health"`
	Extra  map[string]json.RawMessage `json:"-"`
}

func (s *IndexStatus) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if h, ok := raw["health"]; ok {
		if err := json.Unmarshal(h, &s.Health); err != nil {
			return err
		}
		delete(raw, "health")
	}
	s.Extra = raw
	return nil
}

func (s IndexStatus) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(s.Extra)+1)
	for k, v := range s.Extra {
		out[k] = v
	}
	out["health"] = s.Health
	return json.Marshal(out)
}

// HealthClass maps an index health to the row class the console renders.
// Anything unrecognised is shown as healthy.
func HealthClass(health string) string {
	switch Health(health) {
	case HealthYellow:
		return "warning"
	case HealthRed:
		return "danger"
	default:
		return "success"
	}
}
