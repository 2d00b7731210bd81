package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/conneroisu/stratum/internal/errors"
	"github.com/conneroisu/stratum/internal/layout"
	"github.com/conneroisu/stratum/internal/logging"
	"github.com/conneroisu/stratum/internal/version"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	checks := map[string]interface{}{}

	mods, err := s.pipeline.Modules()
	if err != nil {
		status = "unhealthy"
		checks["modules"] = map[string]interface{}{"status": "unhealthy", "message": err.Error()}
	} else {
		checks["modules"] = map[string]interface{}{"status": "healthy", "count": len(mods)}
	}
	checks["websocket"] = map[string]interface{}{"status": "healthy", "clients": s.hub.Count()}

	health := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"version":   version.GetShortVersion(),
		"checks":    checks,
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, r, code, health)
}

// handles returns the route handle plus any ?with= handles.
func handles(r *http.Request) ([]string, bool) {
	out := []string{chi.URLParam(r, "handle")}
	for _, v := range r.URL.Query()["with"] {
		for _, h := range strings.Split(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				out = append(out, h)
			}
		}
	}
	for _, h := range out {
		if !layout.ValidHandle(h) {
			return nil, false
		}
	}
	return out, true
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	hs, ok := handles(r)
	if !ok {
		http.Error(w, "invalid handle", http.StatusBadRequest)
		return
	}

	page, err := s.pipeline.RenderPage(r.Context(), hs...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(page))
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	hs, ok := handles(r)
	if !ok {
		http.Error(w, "invalid handle", http.StatusBadRequest)
		return
	}
	name := chi.URLParam(r, "name")

	out, err := s.pipeline.RenderBlock(r.Context(), name, s.pipeline.PageHandles(hs...)...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(out))
}

type layoutResponse struct {
	Handles  []string            `json:"handles"`
	Sources  map[string][]string `json:"sources"`
	Rounds   int                 `json:"rounds"`
	Outcomes []string            `json:"outcomes"`
	Blocks   string              `json:"blocks"`
	XML      string              `json:"xml"`
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	hs, ok := handles(r)
	if !ok {
		http.Error(w, "invalid handle", http.StatusBadRequest)
		return
	}

	exp, err := s.pipeline.Explain(r.Context(), hs...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") != "json" {
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		_, _ = w.Write([]byte(exp.XML))
		return
	}

	resp := layoutResponse{
		Handles: exp.Handles,
		Sources: make(map[string][]string, len(exp.Sources)),
		Rounds:  exp.Report.Rounds,
		Blocks:  exp.Blocks,
		XML:     exp.XML,
	}
	for h, sources := range exp.Sources {
		for _, src := range sources {
			resp.Sources[h] = append(resp.Sources[h], src.Path)
		}
	}
	for _, o := range exp.Report.Outcomes {
		resp.Outcomes = append(resp.Outcomes, o.String())
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context(), s.logger).Warn(r.Context(), err, "Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch errors.Code(err) {
	case errors.ErrCodeNoHandles, errors.ErrCodeUnsafeHandle:
		code = http.StatusBadRequest
	case errors.ErrCodeBlockNotFound:
		code = http.StatusNotFound
	}
	if r.Context().Err() != nil {
		code = http.StatusServiceUnavailable
	}
	http.Error(w, err.Error(), code)
}
