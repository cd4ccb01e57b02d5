package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "college-predictor/internal/common/errors"
	"college-predictor/internal/cutoff"
	"college-predictor/internal/render"
)

// ExportResponse is the JSON body of /api/offers/export.
type ExportResponse struct {
	Offers   []cutoff.ReconciledOffer `json:"offers"`
	Count    int                      `json:"count"`
	Rank     int                      `json:"rank"`
	Category string                   `json:"category"`
	Group    string                   `json:"group,omitempty"`
}

// parseRequest reads rank, category and group from the query string.
// preferredCourse is accepted as an alias of group.
func parseRequest(r *http.Request) (cutoff.Request, error) {
	q := r.URL.Query()

	raw := strings.TrimSpace(q.Get("rank"))
	rank, err := strconv.Atoi(raw)
	if err != nil {
		return cutoff.Request{}, fmt.Errorf("%w: %q", cutoff.ErrInvalidRank, raw)
	}

	group := q.Get("group")
	if group == "" {
		group = q.Get("preferredCourse")
	}

	return cutoff.Request{
		Rank:     rank,
		Category: q.Get("category"),
		Group:    strings.TrimSpace(group),
	}, nil
}

func parsePage(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("page"))
	if raw == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", cutoff.ErrInvalidPage, raw)
	}
	return page, nil
}

func (s *Server) handleOffers(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := parsePage(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.service.GetPage(r.Context(), req, page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	req, offers, ok := s.exportSet(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ExportResponse{
		Offers:   offers,
		Count:    len(offers),
		Rank:     req.Rank,
		Category: strings.TrimSpace(req.Category),
		Group:    req.Group,
	})
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	req, offers, ok := s.exportSet(w, r)
	if !ok {
		return
	}

	// render fully before headers go out so a failure can still be reported
	var buf bytes.Buffer
	err := s.renderer.Render(&buf, render.ExportDocument{
		Category: strings.TrimSpace(req.Category),
		Offers:   offers,
	})
	if err != nil {
		s.writeError(w, r, apperrors.NewExportRenderError(err))
		return
	}

	w.Header().Set("Content-Type", s.renderer.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.renderer.Filename()))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) exportSet(w http.ResponseWriter, r *http.Request) (cutoff.Request, []cutoff.ReconciledOffer, bool) {
	req, err := parseRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return req, nil, false
	}
	offers, err := s.service.GetExportSet(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return req, nil, false
	}
	return req, offers, true
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"categories": s.service.Categories().List(),
	})
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	groups := s.service.Catalog().Groups()
	if groups == nil {
		groups = []cutoff.ProgramGroup{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"groups": groups,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for _, c := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := c.pinger.Ping(ctx)
		cancel()
		if err != nil {
			status = http.StatusServiceUnavailable
			checks[c.name] = err.Error()
			s.logger.Warn("Readiness check failed", map[string]interface{}{
				"check": c.name,
				"error": err.Error(),
			})
			continue
		}
		checks[c.name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	writeJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": checks,
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := cutoff.ToStandardError(err)
	if id := RequestIDFrom(r.Context()); id != "" {
		stdErr = stdErr.WithMetadata("requestId", id)
	}
	status := apperrors.HTTPStatus(stdErr.Code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", map[string]interface{}{
			"code":  stdErr.Code,
			"error": err.Error(),
		})
	}
	writeJSON(w, status, map[string]interface{}{
		"error": stdErr,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
