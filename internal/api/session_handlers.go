package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/rflorenc/search-admin/internal/backend"
	"github.com/rflorenc/search-admin/internal/console"
	"github.com/rflorenc/search-admin/internal/session"
)

type workspaceKey struct{}

func workspaceFrom(ctx context.Context) *workspace {
	ws, _ := ctx.Value(workspaceKey{}).(*workspace)
	return ws
}

func consoleFrom(r *http.Request) *console.Console {
	return workspaceFrom(r.Context()).console
}

// Login signs the operator in against the backend and opens their console.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var creds backend.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	sess := s.Sessions.Create(creds.User)
	client := backend.NewClient(s.opts.BackendURL, sess, s.opts.Backend)
	if err := client.Login(r.Context(), creds); err != nil {
		s.Sessions.Delete(sess.ID)
		log.Warn().Err(errors.Unwrap(err)).Str("user", creds.User).Msg("Login failed")
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	ws := &workspace{
		session: sess,
		client:  client,
		console: console.New(s.ctx, client, s.opts.Console),
	}
	s.mu.Lock()
	s.workspaces[sess.ID] = ws
	s.mu.Unlock()

	// Signing in again replaces the workspace the browser had.
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != sess.ID {
		s.dropWorkspace(c.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	log.Info().Str("user", creds.User).Str("session", sess.ID).Msg("Operator logged in")
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "user": sess.User})
}

// Logout forgets the backend token, closes the console and expires the
// cookie. Logging out without a session is not an error.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		s.dropWorkspace(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// dropWorkspace forgets the backend token of session id, closes its console
// and deletes the session.
func (s *Server) dropWorkspace(id string) {
	s.mu.Lock()
	ws := s.workspaces[id]
	delete(s.workspaces, id)
	s.mu.Unlock()
	if ws != nil {
		ws.client.Logout()
		ws.console.Close()
		log.Info().Str("user", ws.session.User).Str("session", ws.session.ID).Msg("Operator logged out")
	}
	s.Sessions.Delete(id)
}

// requireSession rejects requests without an active session, telling the
// browser where to log in.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			ws   *workspace
			sess *session.Session
		)
		if c, err := r.Cookie(SessionCookie); err == nil {
			sess = s.Sessions.Get(c.Value)
			s.mu.RLock()
			ws = s.workspaces[c.Value]
			s.mu.RUnlock()
		}
		if err := s.Guard.Check(sess); err != nil || ws == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error":    session.ErrNoSession.Error(),
				"redirect": s.Guard.LoginPath,
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), workspaceKey{}, ws)))
	})
}
