package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/disaster-console/internal/console"
	"github.com/couchcryptid/disaster-console/internal/domain"
	"github.com/couchcryptid/disaster-console/internal/livesync"
	"github.com/couchcryptid/disaster-console/internal/playback"
)

const (
	maxBodyBytes   = 64 << 10
	maxUploadBytes = 10 << 20
)

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/priorities", s.handlePriorities)
	mux.HandleFunc("PUT /api/feedback/{zoneID}", s.handleFeedback)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/zones/{zoneID}/select", s.handleSelectZone)
	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("GET /api/layers", s.handleLayers)
	mux.HandleFunc("POST /api/layers/{layer}/toggle", s.handleToggleLayer)
	mux.HandleFunc("POST /api/route", s.handleRoute)
	mux.HandleFunc("POST /api/coverage", s.handleCoverage)
	mux.HandleFunc("POST /api/compare", s.handleCompare)
	mux.HandleFunc("GET /api/overlays", s.handleOverlays)
	mux.HandleFunc("DELETE /api/overlays", s.handleClearOverlays)
	mux.HandleFunc("GET /api/notifications", s.handleNotifications)
	mux.HandleFunc("DELETE /api/notifications/{id}", s.handleDismiss)
	mux.HandleFunc("GET /api/playback", s.handlePlayback)
	mux.HandleFunc("POST /api/playback/{action}", s.handlePlaybackAction)
	mux.HandleFunc("PUT /api/playback/index", s.handlePlaybackIndex)
	mux.HandleFunc("GET /api/theme", s.handleTheme)
	mux.HandleFunc("PUT /api/theme", s.handleSetTheme)
	mux.HandleFunc("GET /api/sync", s.handleSyncStatus)
	mux.HandleFunc("POST /api/sync", s.handleSyncNow)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.deps.Console.Snapshot())
}

func (s *Server) handlePriorities(w http.ResponseWriter, r *http.Request) {
	expanded := false
	if v := r.URL.Query().Get("all"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, fmt.Errorf("%w: all must be a boolean", console.ErrInvalidInput))
			return
		}
		expanded = b
	}
	sharedobs.WriteJSON(w, http.StatusOK, s.deps.Console.Priorities(expanded))
}

type feedbackBody struct {
	Code string `json:"code"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var body feedbackBody
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	zoneID := r.PathValue("zoneID")
	if err := s.deps.Console.SetFeedback(zoneID, body.Code); err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]string{"zone_id": zoneID, "code": body.Code})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.deps.Console.SearchZones(r.URL.Query().Get("q")))
}

func (s *Server) handleSelectZone(w http.ResponseWriter, r *http.Request) {
	zone, err := s.deps.Console.SelectZone(r.PathValue("zoneID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, zone)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, fmt.Errorf("%w: limit must be an integer", console.ErrInvalidInput))
			return
		}
		limit = n
	}
	sharedobs.WriteJSON(w, http.StatusOK, s.deps.Console.RecentAlerts(limit))
}

func (s *Server) handleLayers(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.deps.Console.Layers())
}

func (s *Server) handleToggleLayer(w http.ResponseWriter, r *http.Request) {
	layers, err := s.deps.Console.ToggleLayer(r.PathValue("layer"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, layers)
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req console.RouteRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	plan, err := s.deps.Console.RequestRoute(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, plan)
}

func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	var req console.CoverageRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	overlay, err := s.deps.Console.RequestCoverage(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, overlay)
}

// handleCompare accepts a multipart form with the image in "file" and the
// location in "lat", "lon" and "zoom".
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", console.ErrInvalidInput, err))
		return
	}

	req, err := compareRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.deps.Console.CompareImage(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, res)
}

func compareRequest(r *http.Request) (console.CompareRequest, error) {
	var req console.CompareRequest
	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return req, fmt.Errorf("%w: read image: %w", console.ErrInvalidInput, err)
		}
		req.Filename = header.Filename
		req.Image = data
	}

	var err error
	if req.Lat, err = formFloat(r, "lat"); err != nil {
		return req, err
	}
	if req.Lon, err = formFloat(r, "lon"); err != nil {
		return req, err
	}
	zoom := r.FormValue("zoom")
	if zoom == "" {
		zoom = "15"
	}
	if req.Zoom, err = strconv.Atoi(zoom); err != nil {
		return req, fmt.Errorf("%w: zoom must be an integer", console.ErrInvalidInput)
	}
	return req, nil
}

func formFloat(r *http.Request, key string) (float64, error) {
	v, err := strconv.ParseFloat(r.FormValue(key), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", console.ErrInvalidInput, key)
	}
	return v, nil
}

func (s *Server) handleOverlays(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.deps.Console.Overlays())
}

func (s *Server) handleClearOverlays(w http.ResponseWriter, _ *http.Request) {
	s.deps.Console.ClearOverlays()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNotifications(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.deps.Notifications.List())
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Notifications.Dismiss(r.PathValue("id")) {
		sharedobs.WriteJSON(w, http.StatusNotFound, errorBody{Error: "notification not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlayback(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.deps.Playback.State())
}

func (s *Server) handlePlaybackAction(w http.ResponseWriter, r *http.Request) {
	var state playback.State
	switch action := r.PathValue("action"); action {
	case "play":
		state = s.deps.Playback.Play()
	case "pause":
		state = s.deps.Playback.Pause()
	case "toggle":
		state = s.deps.Playback.Toggle()
	case "reset":
		state = s.deps.Playback.Reset()
	default:
		s.writeError(w, fmt.Errorf("%w: unknown playback action %q", console.ErrInvalidInput, action))
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, state)
}

type indexBody struct {
	Index *int `json:"index"`
}

func (s *Server) handlePlaybackIndex(w http.ResponseWriter, r *http.Request) {
	var body indexBody
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if body.Index == nil {
		s.writeError(w, fmt.Errorf("%w: index is required", console.ErrInvalidInput))
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, s.deps.Playback.SetIndex(*body.Index))
}

type themeBody struct {
	Theme string `json:"theme"`
}

func (s *Server) handleTheme(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, themeBody{Theme: string(s.deps.Console.Theme())})
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var body themeBody
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	theme, err := s.deps.Console.SetTheme(body.Theme)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, themeBody{Theme: string(theme)})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.deps.Sync.Status())
}

func (s *Server) handleSyncNow(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sync.Poll(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, s.deps.Sync.Status())
}

type errorBody struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// writeError maps a console or sync error onto a status code. Unrecognised
// errors are upstream poll failures or bugs and map to 502 and 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var rl *domain.RateLimitError
	if errors.As(err, &rl) {
		secs := int(rl.RetryAfter.Seconds())
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		sharedobs.WriteJSON(w, http.StatusTooManyRequests, errorBody{Error: err.Error(), RetryAfter: secs})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, console.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, console.ErrZoneNotFound):
		status = http.StatusNotFound
	case errors.Is(err, console.ErrNoCoordinates):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, livesync.ErrPollInFlight):
		status = http.StatusConflict
	case errors.Is(err, console.ErrUpstream), errors.Is(err, livesync.ErrFetch):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	sharedobs.WriteJSON(w, status, errorBody{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %w", console.ErrInvalidInput, err)
	}
	return nil
}
