package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rflorenc/search-admin/internal/console"
)

// ConfirmResult is the answer to a confirm. A workflow that failed on the
// backend is not an HTTP error: the overlay stays open and its notice says
// what went wrong.
type ConfirmResult struct {
	Closed  bool                `json:"closed"`
	Overlay console.OverlayView `json:"overlay"`
}

func (s *Server) ListOverlays(w http.ResponseWriter, r *http.Request) {
	overlays := consoleFrom(r).Overlays.List()
	views := make([]console.OverlayView, 0, len(overlays))
	for _, o := range overlays {
		views = append(views, o.View())
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) GetOverlay(w http.ResponseWriter, r *http.Request) {
	o := s.overlay(w, r)
	if o == nil {
		return
	}
	writeJSON(w, http.StatusOK, o.View())
}

func (s *Server) CloseOverlay(w http.ResponseWriter, r *http.Request) {
	o := s.overlay(w, r)
	if o == nil {
		return
	}
	o.Close()
	w.WriteHeader(http.StatusNoContent)
}

// BindOverlay applies a form update.
func (s *Server) BindOverlay(w http.ResponseWriter, r *http.Request) {
	o := s.overlay(w, r)
	if o == nil {
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body: "+err.Error())
		return
	}
	if err := o.Bind(json.RawMessage(body)); err != nil {
		writeOverlayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o.View())
}

// ConfirmOverlay runs the overlay's workflow.
func (s *Server) ConfirmOverlay(w http.ResponseWriter, r *http.Request) {
	o := s.overlay(w, r)
	if o == nil {
		return
	}
	err := o.Confirm(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ConfirmResult{Closed: true, Overlay: o.View()})
	case errors.Is(err, console.ErrBusy), errors.Is(err, console.ErrStale),
		errors.Is(err, console.ErrOverlayClosed), errors.Is(err, console.ErrReadOnly):
		writeOverlayError(w, err)
	default:
		writeJSON(w, http.StatusOK, ConfirmResult{Closed: false, Overlay: o.View()})
	}
}

func (s *Server) AddField(w http.ResponseWriter, r *http.Request) {
	s.editMapping(w, r, func(f *console.MappingForm, _ int) { f.Mapping.AddField() }, false)
}

func (s *Server) RemoveField(w http.ResponseWriter, r *http.Request) {
	s.editMapping(w, r, func(f *console.MappingForm, n int) { f.Mapping.RemoveField(n) }, true)
}

func (s *Server) ToggleGeoPoint(w http.ResponseWriter, r *http.Request) {
	s.editMapping(w, r, func(f *console.MappingForm, n int) { f.Mapping.ToggleGeoPoint(n) }, true)
}

func (s *Server) AddDate(w http.ResponseWriter, r *http.Request) {
	s.editMapping(w, r, func(f *console.MappingForm, _ int) { f.Mapping.AddDate() }, false)
}

func (s *Server) RemoveDate(w http.ResponseWriter, r *http.Request) {
	s.editMapping(w, r, func(f *console.MappingForm, n int) { f.Mapping.RemoveDate(n) }, true)
}

func (s *Server) editMapping(w http.ResponseWriter, r *http.Request, fn func(*console.MappingForm, int), positional bool) {
	o := s.overlay(w, r)
	if o == nil {
		return
	}
	n := 0
	if positional {
		var err error
		n, err = strconv.Atoi(chi.URLParam(r, "n"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid position: "+chi.URLParam(r, "n"))
			return
		}
	}
	if err := o.EditMapping(func(f *console.MappingForm) { fn(f, n) }); err != nil {
		writeOverlayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o.View())
}

// overlay looks up the overlay named in the URL, answering 404 itself when it
// is not open.
func (s *Server) overlay(w http.ResponseWriter, r *http.Request) *console.Overlay {
	o := consoleFrom(r).Overlays.Get(chi.URLParam(r, "id"))
	if o == nil {
		writeError(w, http.StatusNotFound, "overlay not found")
	}
	return o
}

func writeOverlayError(w http.ResponseWriter, err error) {
	var ve *console.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, console.ErrBusy), errors.Is(err, console.ErrStale):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, console.ErrOverlayClosed):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, console.ErrReadOnly), errors.Is(err, console.ErrNoMapping):
		writeError(w, http.StatusMethodNotAllowed, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
