package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bryanwahyu/sessionlens/internal/application/analyses"
	"github.com/bryanwahyu/sessionlens/internal/application/customtopics"
	"github.com/bryanwahyu/sessionlens/internal/domain/analysis"
	"github.com/bryanwahyu/sessionlens/internal/logger"
	"github.com/bryanwahyu/sessionlens/internal/middleware"
)

// maxBodyBytes leaves room for inline chart images.
const maxBodyBytes = 16 << 20

type Options struct {
	JWTSecret      []byte
	AllowedOrigins []string
	// requests per minute and burst for the classification batch, per principal
	SearchPerMinute int
	SearchBurst     int
	HealthCheckers  map[string]middleware.HealthChecker
}

type Router struct {
	analysesSvc *analyses.Service
	searchSvc   *customtopics.Service
}

func NewRouter(analysesSvc *analyses.Service, searchSvc *customtopics.Service, opts Options) http.Handler {
	r := &Router{analysesSvc: analysesSvc, searchSvc: searchSvc}
	mux := chi.NewRouter()

	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(chimw.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	mux.Get("/health", middleware.HealthHandler(opts.HealthCheckers))
	mux.Handle("/metrics", middleware.MetricsHandler())

	limiter := middleware.NewRateLimiter(opts.SearchPerMinute, opts.SearchBurst)
	mux.Route("/api", func(rt chi.Router) {
		rt.Use(middleware.JWTAuth(opts.JWTSecret))

		rt.Get("/analyses", r.wrap(r.handleGetAnalysis))
		rt.Post("/analyses", r.wrap(r.handleUpsertAnalysis))
		rt.Delete("/analyses", r.wrap(r.handleDeleteAnalysis))
		rt.Put("/analyses/summary", r.wrap(r.handleSetSummary))

		rt.With(middleware.RateLimit(limiter)).Post("/custom-topic-search", r.wrap(r.handleCustomTopicSearch))
		rt.Get("/saved-custom-searches", r.wrap(r.handleSavedSearches))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var verr *analysis.ValidationError
		switch {
		case errors.Is(err, analysis.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "unauthorized")
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Error())
		case errors.Is(err, analysis.ErrNoTranscript):
			writeError(w, http.StatusNotFound, analysis.ErrNoTranscript.Error())
		case errors.Is(err, analysis.ErrNotFound):
			// sama untuk sesi yang tidak ada dan sesi milik user lain
			writeError(w, http.StatusNotFound, "not found")
		default:
			logger.WithError(err, "httpserver").
				WithField("method", req.Method).
				WithField("path", req.URL.Path).
				WithField("request_id", chimw.GetReqID(req.Context())).
				Error("request failed")
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
	}
}

// decode reads a JSON body into v and runs its validate tags.
func decode(w http.ResponseWriter, req *http.Request, v interface{}) error {
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		return analysis.Invalid("", "malformed JSON body: %v", err)
	}
	return middleware.ValidateStruct(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	_ = writeJSON(w, status, map[string]string{"error": msg})
}
