package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/disaster-console/internal/domain"
	"github.com/couchcryptid/disaster-console/internal/geometry"
)

const (
	earthRadiusKm = 6371.0
	roadFactor    = 1.3
	avgSpeedKmh   = 30.0
	routeSegments = 8
	ringVertices  = 24
)

// isolineMinutes are the reachability tiers returned by rescue coverage.
var isolineMinutes = []int{5, 10, 15}

type service struct {
	data    fixtures
	limiter *rate.Limiter
	logger  *slog.Logger
}

// newService creates the mock service. compareBurst image comparisons are
// allowed per compareWindow before requests are rate limited.
func newService(compareBurst int, compareWindow time.Duration, logger *slog.Logger) *service {
	burst := max(compareBurst, 1)
	return &service{
		data:    buildFixtures(),
		limiter: rate.NewLimiter(rate.Every(compareWindow/time.Duration(burst)), burst),
		logger:  logger,
	}
}

func (s *service) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/disaster-zones", s.list("zones", func() any { return s.data.zones }))
	mux.HandleFunc("GET /api/flood-areas", s.list("flood_areas", func() any { return s.data.floods }))
	mux.HandleFunc("GET /api/infrastructure-damage", s.list("infrastructure", func() any { return s.data.infrastructure }))
	mux.HandleFunc("GET /api/population-displacement", s.list("displacement_zones", func() any { return s.data.displacement }))
	mux.HandleFunc("GET /api/alerts", s.list("alerts", func() any { return s.data.alerts }))
	mux.HandleFunc("GET /api/social-feed-sample", s.list("posts", func() any { return s.data.posts }))
	mux.HandleFunc("GET /api/statistics", func(w http.ResponseWriter, _ *http.Request) {
		sharedobs.WriteJSON(w, http.StatusOK, s.data.statistics)
	})
	mux.HandleFunc("POST /api/here/route", s.handleRoute)
	mux.HandleFunc("GET /api/here/rescue-coverage", s.handleCoverage)
	mux.HandleFunc("POST /api/here/compare-disaster-image", s.handleCompare)
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	return s.logRequests(mux)
}

func (s *service) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request served", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *service) list(envelope string, records func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		sharedobs.WriteJSON(w, http.StatusOK, map[string]any{envelope: records()})
	}
}

type routeRequest struct {
	OriginLat float64 `json:"origin_lat"`
	OriginLon float64 `json:"origin_lon"`
	DestLat   float64 `json:"destination_lat"`
	DestLon   float64 `json:"destination_lon"`
}

func (s *service) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid route request: "+err.Error())
		return
	}
	origin := domain.Coordinates{Lat: req.OriginLat, Lon: req.OriginLon}
	dest := domain.Coordinates{Lat: req.DestLat, Lon: req.DestLon}
	if !origin.Valid() || !dest.Valid() {
		writeDetail(w, http.StatusUnprocessableEntity, "coordinates out of range")
		return
	}

	distance := haversineKm(origin, dest) * roadFactor
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"distance_km":      math.Round(distance*100) / 100,
		"duration_minutes": math.Round(distance/avgSpeedKmh*60*10) / 10,
		"polyline":         geometry.Encode(roadPath(origin, dest)),
	})
}

// roadPath bends the straight segment slightly so the decoded polyline is
// visibly distinct from the straight fallback.
func roadPath(origin, dest domain.Coordinates) []domain.Coordinates {
	path := make([]domain.Coordinates, 0, routeSegments+1)
	for i := 0; i <= routeSegments; i++ {
		t := float64(i) / routeSegments
		bend := math.Sin(t*math.Pi) * 0.002
		path = append(path, domain.Coordinates{
			Lat: origin.Lat + (dest.Lat-origin.Lat)*t + bend,
			Lon: origin.Lon + (dest.Lon-origin.Lon)*t - bend,
		})
	}
	return path
}

func (s *service) handleCoverage(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	origin := domain.Coordinates{Lat: lat, Lon: lon}
	if errLat != nil || errLon != nil || !origin.Valid() {
		writeDetail(w, http.StatusUnprocessableEntity, "lat and lon are required")
		return
	}

	isolines := make([]map[string]any, 0, len(isolineMinutes))
	for _, minutes := range isolineMinutes {
		radiusKm := avgSpeedKmh * float64(minutes) / 60
		isolines = append(isolines, map[string]any{
			"range_value":    minutes * 60,
			"range_label":    fmt.Sprintf("%d min", minutes),
			"range_type":     "time",
			"transport_mode": "car",
			"polygons":       [][][2]float64{ring(origin, radiusKm)},
		})
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"origin":   map[string]float64{"lat": lat, "lon": lon},
		"isolines": isolines,
	})
}

// ring returns a closed circle of [lng, lat] vertices around c.
func ring(c domain.Coordinates, radiusKm float64) [][2]float64 {
	dLat := radiusKm / earthRadiusKm * 180 / math.Pi
	dLon := dLat / math.Cos(c.Lat*math.Pi/180)
	out := make([][2]float64, 0, ringVertices+1)
	for i := 0; i <= ringVertices; i++ {
		a := 2 * math.Pi * float64(i%ringVertices) / ringVertices
		out = append(out, [2]float64{c.Lon + dLon*math.Cos(a), c.Lat + dLat*math.Sin(a)})
	}
	return out
}

func (s *service) handleCompare(w http.ResponseWriter, r *http.Request) {
	if res := s.limiter.Reserve(); res.Delay() > 0 {
		retry := math.Ceil(res.Delay().Seconds())
		res.Cancel()
		sharedobs.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
			"status":      "rate_limited",
			"retry_after": retry,
			"message":     "Imagery provider rate limit reached",
		})
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "multipart form required")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer file.Close()
	image, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "unreadable upload")
		return
	}
	lat, _ := strconv.ParseFloat(r.FormValue("lat"), 64)
	lon, _ := strconv.ParseFloat(r.FormValue("lon"), 64)

	change := changePercentage(image)
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"location":          map[string]float64{"lat": lat, "lon": lon},
		"change_percentage": change,
		"changes_detected": map[string]bool{
			"flooding":           change > 15,
			"structural_damage":  change > 30,
			"vegetation_loss":    change > 50,
			"road_obstruction":   change > 40,
			"debris_accumulated": change > 25,
		},
		"analysis": fmt.Sprintf("%.1f%% of the area differs from the reference imagery", change),
	})
}

// changePercentage derives a stable pseudo-analysis from the image bytes.
func changePercentage(image []byte) float64 {
	var sum int
	for _, b := range image {
		sum += int(b)
	}
	return float64(sum%1000) / 10
}

func haversineKm(a, b domain.Coordinates) float64 {
	lat1, lat2 := a.Lat*math.Pi/180, b.Lat*math.Pi/180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	sharedobs.WriteJSON(w, status, map[string]string{"detail": detail})
}
