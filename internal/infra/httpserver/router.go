package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	appscans "github.com/bryanwahyu/qa-scanlog/internal/application/scans"
	appsettings "github.com/bryanwahyu/qa-scanlog/internal/application/settings"
	appspecs "github.com/bryanwahyu/qa-scanlog/internal/application/specs"
	domain "github.com/bryanwahyu/qa-scanlog/internal/domain/scans"
	"github.com/bryanwahyu/qa-scanlog/internal/domain/specs"
	"github.com/bryanwahyu/qa-scanlog/internal/infra/push"
	"github.com/bryanwahyu/qa-scanlog/internal/middleware"
)

// Deps are the collaborators of the HTTP surface. Metrics, Limiter and
// Health are optional.
type Deps struct {
	Scans       *appscans.Service
	Specs       *appspecs.Service
	Settings    *appsettings.Service
	Hub         *push.Hub
	Metrics     *middleware.Metrics
	Limiter     *middleware.RateLimiter
	Health      map[string]middleware.HealthChecker
	CORSOrigins []string
	Log         zerolog.Logger
}

type Router struct {
	scansSvc    *appscans.Service
	specsSvc    *appspecs.Service
	settingsSvc *appsettings.Service
	hub         *push.Hub
	log         zerolog.Logger
}

func NewRouter(d Deps) http.Handler {
	r := &Router{
		scansSvc:    d.Scans,
		specsSvc:    d.Specs,
		settingsSvc: d.Settings,
		hub:         d.Hub,
		log:         d.Log,
	}
	mux := chi.NewRouter()

	mux.Use(chimw.Recoverer)
	mux.Use(middleware.Logging(d.Log))
	if d.Metrics != nil {
		mux.Use(d.Metrics.Middleware)
	}
	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition", "X-Archive-URL"},
		MaxAge:         300,
	}))
	if d.Limiter != nil {
		mux.Use(d.Limiter.Middleware)
	}

	mux.Get("/health", middleware.HealthHandler(d.Health))
	mux.Get("/ready", middleware.ReadinessHandler(d.Health, "database"))
	mux.Get("/live", middleware.LivenessHandler)
	if d.Metrics != nil {
		mux.Handle("/metrics", d.Metrics.Handler())
	}

	mux.Get("/", r.wrap(r.handleDashboard))
	mux.Post("/scan", r.wrap(r.handleScan))
	mux.Post("/update_failure_code", r.wrap(r.handleUpdateFailureCode))
	mux.Post("/update_failure_code_and_result", r.wrap(r.handleUpdateFailureCodeAndResult))
	mux.Post("/edit_last_scan", r.wrap(r.handleEditLastScan))
	mux.Post("/update_result", r.wrap(r.handleUpdateResult))
	mux.Post("/undo", r.wrap(r.handleUndo))
	mux.Post("/clear_scans", r.wrap(r.handleClear))
	mux.Get("/last_scan", r.wrap(r.handleLastScan))
	mux.Get("/export", r.wrap(r.handleExport))
	mux.Post("/voice_recognition", r.wrap(r.handleVoiceRecognition))
	mux.Get("/defaults", r.wrap(r.handleDefaults))
	mux.Get("/models", r.wrap(r.handleModels))
	mux.Post("/models", r.wrap(r.handleModels))

	if r.hub != nil {
		mux.Handle("/ws", r.hub)
		mux.Get("/ws/stats", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]int{"clients": r.hub.ClientCount()})
		})
	}

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap maps service errors to {"error": msg} with a matching status.
func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			status = http.StatusBadRequest
		case errors.Is(err, domain.ErrNotFound):
			status = http.StatusNotFound
		}

		msg := "Internal server error"
		var de *domain.Error
		if errors.As(err, &de) {
			msg = de.Msg
		}
		if status == http.StatusInternalServerError {
			r.log.Error().Err(err).Str("path", req.URL.Path).Msg("request failed")
		}
		writeJSON(w, status, map[string]string{"error": msg})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

type success struct {
	Success bool `json:"success"`
}

// GET /?date=YYYY-MM-DD
func (r *Router) handleDashboard(w http.ResponseWriter, req *http.Request) error {
	date := req.URL.Query().Get("date")
	if err := middleware.ValidateDate(date); err != nil {
		return domain.Invalid(err.Error())
	}
	dash, err := r.scansSvc.Dashboard(req.Context(), date)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, dash)
}

// POST /scan form qr_code, failure_code
func (r *Router) handleScan(w http.ResponseWriter, req *http.Request) error {
	res, err := r.scansSvc.Submit(req.Context(), domain.SubmitRequest{
		QRCode:      middleware.SanitizeString(req.FormValue("qr_code")),
		FailureCode: middleware.SanitizeString(req.FormValue("failure_code")),
	})
	if errors.Is(err, domain.ErrDuplicatePass) {
		return writeJSON(w, http.StatusOK, map[string]any{
			"success":         false,
			"duplicate_fp_ok": true,
			"message":         "Duplicate scan not allowed.",
		})
	}
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, struct {
		success
		appscans.SubmitResult
	}{success{true}, res})
}

// POST /update_failure_code form qr_code, failure_code
func (r *Router) handleUpdateFailureCode(w http.ResponseWriter, req *http.Request) error {
	err := r.scansSvc.UpdateFailureCode(req.Context(),
		middleware.SanitizeString(req.FormValue("qr_code")),
		middleware.SanitizeString(req.FormValue("failure_code")))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, success{true})
}

// POST /update_failure_code_and_result form failure_code, result
func (r *Router) handleUpdateFailureCodeAndResult(w http.ResponseWriter, req *http.Request) error {
	err := r.scansSvc.UpdateFailureCodeAndResult(req.Context(),
		middleware.SanitizeString(req.FormValue("failure_code")),
		middleware.SanitizeString(req.FormValue("result")))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, success{true})
}

// POST /edit_last_scan form failure_code, result
func (r *Router) handleEditLastScan(w http.ResponseWriter, req *http.Request) error {
	err := r.scansSvc.EditLastScan(req.Context(),
		middleware.SanitizeString(req.FormValue("failure_code")),
		middleware.SanitizeString(req.FormValue("result")))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, success{true})
}

// POST /update_result form result
func (r *Router) handleUpdateResult(w http.ResponseWriter, req *http.Request) error {
	if err := r.scansSvc.UpdateResult(req.Context(), middleware.SanitizeString(req.FormValue("result"))); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, success{true})
}

// POST /undo
func (r *Router) handleUndo(w http.ResponseWriter, req *http.Request) error {
	if err := r.scansSvc.Undo(req.Context()); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, success{true})
}

// POST /clear_scans
func (r *Router) handleClear(w http.ResponseWriter, req *http.Request) error {
	if err := r.scansSvc.Clear(req.Context()); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "All scan logs cleared successfully.",
	})
}

// GET /last_scan
func (r *Router) handleLastScan(w http.ResponseWriter, req *http.Request) error {
	scan, err := r.scansSvc.Last(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, scan)
}

// GET /export?start_date=&end_date=&file_name=
func (r *Router) handleExport(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	start, end := q.Get("start_date"), q.Get("end_date")
	name := strings.TrimSpace(q.Get("file_name"))
	if err := middleware.ValidateDateRange(start, end); err != nil {
		return domain.Invalid(err.Error())
	}
	if err := middleware.ValidateFileName(name); err != nil {
		return domain.Invalid(err.Error())
	}

	res, err := r.scansSvc.Export(req.Context(), appscans.ExportCommand{StartDate: start, EndDate: end, FileName: name})
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	if res.ArchiveURL != "" {
		w.Header().Set("X-Archive-URL", res.ArchiveURL)
	}
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(res.Data)
	return err
}

// POST /voice_recognition form option
func (r *Router) handleVoiceRecognition(w http.ResponseWriter, req *http.Request) error {
	option := middleware.SanitizeString(req.FormValue("option"))
	if err := middleware.ValidateVoiceOption(option); err != nil {
		return domain.Invalid(err.Error())
	}
	if err := r.settingsSvc.SetVoiceRecognition(req.Context(), option); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"success": true, "selected": option})
}

// GET /defaults
func (r *Router) handleDefaults(w http.ResponseWriter, req *http.Request) error {
	d, err := r.settingsSvc.Defaults(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, d)
}

// GET|POST /models form action, model_prefix, power_min, power_max, pf_min, rpm_min, rpm_max
func (r *Router) handleModels(w http.ResponseWriter, req *http.Request) error {
	var (
		action string
		m      specs.ModelSpec
	)
	if req.Method == http.MethodPost {
		action = strings.ToLower(strings.TrimSpace(req.FormValue("action")))
		m.Prefix = middleware.SanitizeString(req.FormValue("model_prefix"))
		if action == appspecs.ActionAdd || action == appspecs.ActionUpdate {
			if err := parseLimits(req, &m); err != nil {
				return err
			}
		}
	}

	list, err := r.specsSvc.Apply(req.Context(), action, &m)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

func parseLimits(req *http.Request, m *specs.ModelSpec) error {
	floats := []struct {
		field string
		dst   *float64
	}{
		{"power_min", &m.PowerMin},
		{"power_max", &m.PowerMax},
		{"pf_min", &m.PFMin},
	}
	for _, f := range floats {
		v, err := strconv.ParseFloat(strings.TrimSpace(req.FormValue(f.field)), 64)
		if err != nil {
			return domain.Invalid("Invalid " + f.field)
		}
		*f.dst = v
	}

	ints := []struct {
		field string
		dst   *int
	}{
		{"rpm_min", &m.RPMMin},
		{"rpm_max", &m.RPMMax},
	}
	for _, f := range ints {
		v, err := strconv.Atoi(strings.TrimSpace(req.FormValue(f.field)))
		if err != nil {
			return domain.Invalid("Invalid " + f.field)
		}
		*f.dst = v
	}
	return nil
}
