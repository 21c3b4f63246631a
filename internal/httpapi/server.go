package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kerasbridge/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
// *manager.Manager implements it.
type Service interface {
	Status() types.StatusResponse
	Ready() bool
	Warmup(ctx context.Context) error
	Import(ctx context.Context, module string) (types.ConvertResponse, error)
	Convert(ctx context.Context, raw json.RawMessage) (types.ConvertResponse, error)
	BuildLayer(ctx context.Context, kind string, params map[string]json.RawMessage) (types.ObjectInfo, error)
	Objects() []types.ObjectInfo
	Object(id string) (types.ObjectInfo, error)
	DeleteObject(id string) error
	Kinds() []string
}

// ImportRequest names a module to import.
type ImportRequest struct {
	// example: tensorflow.keras.layers
	Module string `json:"module" example:"tensorflow.keras.layers"`
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(corsOptions()))
	}

	h := &handlers{svc: svc}
	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
	r.Get("/status", h.status)
	r.Get("/kinds", h.kinds)
	r.Post("/warmup", h.warmup)
	r.Post("/import", h.importModule)
	r.Post("/convert", h.convert)
	r.Post("/layers", h.buildLayer)
	r.Get("/objects", h.objects)
	r.Get("/objects/{id}", h.object)
	r.Delete("/objects/{id}", h.deleteObject)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)
	return r
}

func corsOptions() cors.Options {
	opts := cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: corsAllowedMethods,
		AllowedHeaders: corsAllowedHeaders,
		MaxAge:         300,
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if len(opts.AllowedMethods) == 0 {
		opts.AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	}
	if len(opts.AllowedHeaders) == 0 {
		opts.AllowedHeaders = []string{"Content-Type", "X-Request-Id"}
	}
	return opts
}

type handlers struct {
	svc Service
}

// decodeJSON enforces the content type and body limit. It writes the error
// response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// healthz godoc
// @Summary  Liveness probe
// @Produce  plain
// @Success  200 {string} string "ok"
// @Router   /healthz [get]
func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readyz godoc
// @Summary  Readiness probe; ready once the interpreter is running
// @Produce  plain
// @Success  200 {string} string "ready"
// @Failure  503 {string} string "not ready"
// @Router   /readyz [get]
func (h *handlers) readyz(w http.ResponseWriter, r *http.Request) {
	if h.svc.Ready() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

// status godoc
// @Summary  Runtime status
// @Produce  json
// @Success  200 {object} types.StatusResponse
// @Router   /status [get]
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// kinds godoc
// @Summary  Buildable Keras kinds
// @Produce  json
// @Success  200 {object} types.KindsResponse
// @Router   /kinds [get]
func (h *handlers) kinds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.KindsResponse{Kinds: h.svc.Kinds()})
}

// warmup godoc
// @Summary  Start the interpreter and import tensorflow.keras
// @Produce  json
// @Success  200 {object} types.StatusResponse
// @Failure  503 {object} types.ErrorResponse
// @Router   /warmup [post]
func (h *handlers) warmup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := handlerContext(r.Context())
	defer cancel()
	if err := h.svc.Warmup(ctx); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// importModule godoc
// @Summary  Import a module by dotted path
// @Accept   json
// @Produce  json
// @Param    body body ImportRequest true "Module"
// @Success  200 {object} types.ConvertResponse
// @Failure  400 {object} types.ErrorResponse
// @Failure  503 {object} types.ErrorResponse
// @Router   /import [post]
func (h *handlers) importModule(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := handlerContext(r.Context())
	defer cancel()
	resp, err := h.svc.Import(ctx, req.Module)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// convert godoc
// @Summary  Convert a JSON value into an interpreter object
// @Accept   json
// @Produce  json
// @Param    body body types.ConvertRequest true "Value"
// @Success  200 {object} types.ConvertResponse
// @Failure  400 {object} types.ErrorResponse
// @Failure  503 {object} types.ErrorResponse
// @Router   /convert [post]
func (h *handlers) convert(w http.ResponseWriter, r *http.Request) {
	var req types.ConvertRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := handlerContext(r.Context())
	defer cancel()
	resp, err := h.svc.Convert(ctx, req.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// buildLayer godoc
// @Summary  Build a registered Keras kind
// @Accept   json
// @Produce  json
// @Param    body body types.LayerRequest true "Kind and parameters"
// @Success  201 {object} types.ObjectInfo
// @Failure  400 {object} types.ErrorResponse
// @Failure  404 {object} types.ErrorResponse
// @Failure  429 {object} types.ErrorResponse
// @Failure  503 {object} types.ErrorResponse
// @Router   /layers [post]
func (h *handlers) buildLayer(w http.ResponseWriter, r *http.Request) {
	var req types.LayerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Kind) == "" {
		writeJSONError(w, http.StatusBadRequest, "kind is required")
		return
	}
	ctx, cancel := handlerContext(r.Context())
	defer cancel()
	info, err := h.svc.BuildLayer(ctx, req.Kind, req.Params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// objects godoc
// @Summary  Built objects in construction order
// @Produce  json
// @Success  200 {object} types.ObjectsResponse
// @Router   /objects [get]
func (h *handlers) objects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.ObjectsResponse{Objects: h.svc.Objects()})
}

// object godoc
// @Summary  One built object
// @Produce  json
// @Param    id path string true "Object id"
// @Success  200 {object} types.ObjectInfo
// @Failure  404 {object} types.ErrorResponse
// @Router   /objects/{id} [get]
func (h *handlers) object(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.Object(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// deleteObject godoc
// @Summary  Forget a built object
// @Param    id path string true "Object id"
// @Success  204
// @Failure  404 {object} types.ErrorResponse
// @Router   /objects/{id} [delete]
func (h *handlers) deleteObject(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteObject(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
