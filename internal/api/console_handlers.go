package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rflorenc/search-admin/internal/backend"
	"github.com/rflorenc/search-admin/internal/session"
)

// ListKeys loads the API keys page and returns it.
func (s *Server) ListKeys(w http.ResponseWriter, r *http.Request) {
	c := consoleFrom(r)
	c.Keys.Load(r.Context())
	writeJSON(w, http.StatusOK, c.Keys.View())
}

func (s *Server) AddKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, consoleFrom(r).Keys.Add().View())
}

func (s *Server) EditKey(w http.ResponseWriter, r *http.Request) {
	o, err := consoleFrom(r).Keys.Edit(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o.View())
}

func (s *Server) RemoveKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, consoleFrom(r).Keys.Remove(chi.URLParam(r, "key")).View())
}

// ListIndexes loads the indexes page and returns it.
func (s *Server) ListIndexes(w http.ResponseWriter, r *http.Request) {
	c := consoleFrom(r)
	c.Indexes.Load(r.Context())
	writeJSON(w, http.StatusOK, c.Indexes.View())
}

func (s *Server) AddMapping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, consoleFrom(r).Indexes.AddMapping().View())
}

func (s *Server) ImportMapping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, consoleFrom(r).Indexes.ImportMapping().View())
}

func (s *Server) EditIndex(w http.ResponseWriter, r *http.Request) {
	o, err := consoleFrom(r).Indexes.Edit(r.Context(), chi.URLParam(r, "index"))
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o.View())
}

func (s *Server) FlushIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, consoleFrom(r).Indexes.Flush(chi.URLParam(r, "index")).View())
}

func (s *Server) CopyIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, consoleFrom(r).Indexes.Copy(chi.URLParam(r, "index")).View())
}

func (s *Server) DeactivateIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, consoleFrom(r).Indexes.Deactivate(chi.URLParam(r, "index")).View())
}

func (s *Server) ExportMapping(w http.ResponseWriter, r *http.Request) {
	o, err := consoleFrom(r).Indexes.ExportMapping(r.Context(), chi.URLParam(r, "index"))
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o.View())
}

func (s *Server) RemoveMapping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, consoleFrom(r).Indexes.RemoveMapping(chi.URLParam(r, "index")).View())
}

// ActivateIndex activates without an overlay and returns the indexes page
// carrying the outcome notice. The list itself refreshes later.
func (s *Server) ActivateIndex(w http.ResponseWriter, r *http.Request) {
	c := consoleFrom(r)
	if err := c.Indexes.Activate(r.Context(), chi.URLParam(r, "index")); err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Indexes.View())
}

// writeBackendError answers for a row action that failed before an overlay
// could open. The page notice already carries the message.
func writeBackendError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrNoSession) {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if r, ok := backend.IsReason(err); ok {
		if r.Status == http.StatusNotFound {
			writeError(w, http.StatusNotFound, r.Message)
			return
		}
		writeError(w, http.StatusBadGateway, r.Message)
		return
	}
	writeError(w, http.StatusBadGateway, err.Error())
}
