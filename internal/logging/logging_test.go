package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetup_ECS(t *testing.T) {
	var buf bytes.Buffer
	if err := Setup("search-admin", "debug", "ecs", &buf); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	log.Info().Str("index", "abc").Msg("hello")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("ECS output is not JSON: %v (%q)", err, buf.String())
	}
	if line["app"] != "search-admin" || line["message"] != "hello" {
		t.Errorf("ECS line = %v", line)
	}
	if _, ok := line["log.level"]; !ok {
		t.Errorf("ECS line missing log.level: %v", line)
	}
}

func TestSetup_Console(t *testing.T) {
	var buf bytes.Buffer
	if err := Setup("search-admin", "info", "console", &buf); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	log.Debug().Msg("hidden")
	log.Info().Msg("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug line written at info level")
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("info line missing: %q", out)
	}
}

func TestSetup_Errors(t *testing.T) {
	if err := Setup("x", "loud", "console", nil); err == nil {
		t.Error("Setup should reject an unknown level")
	}
	if err := Setup("x", "info", "xml", nil); err == nil {
		t.Error("Setup should reject an unknown format")
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	if err := Setup("search-admin", "info", "ecs", &buf); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/console/keys", nil))

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if line["status"] != float64(201) || line["path"] != "/api/console/keys" {
		t.Errorf("request line = %v", line)
	}
}
