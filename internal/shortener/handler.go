package shortener

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/JLChnToZ/shota-url/internal/errx"
	"github.com/JLChnToZ/shota-url/internal/httpx"
	"github.com/JLChnToZ/shota-url/internal/opengraph"
)

// HTTPTarget is one destination in the JSON creation payload.
type HTTPTarget struct {
	URL    string   `json:"url"`
	Weight *float64 `json:"prob,omitempty"`
}

// HTTPCreateRequest is the JSON body of POST /add. The field names, the
// duration-in-milliseconds convention and the inverted consistentDuration
// flag are all part of the public wire contract.
type HTTPCreateRequest struct {
	ID                 string       `json:"id,omitempty"`
	Comments           string       `json:"comments,omitempty"`
	Targets            []HTTPTarget `json:"targets"`
	RemovalDuration    float64      `json:"removalDuration"`
	ClickCount         *float64     `json:"clickCount,omitempty"`
	Randomize          bool         `json:"randomize,omitempty"`
	AutoRedirect       bool         `json:"autoRedirect,omitempty"`
	ConsistentDuration bool         `json:"consistentDuration,omitempty"`
	OGPolicy           int          `json:"ogPolicy,omitempty"`
}

// HTTPCreateResponse is the JSON body returned by POST /add.
type HTTPCreateResponse struct {
	ID       string `json:"id"`
	RemoveID string `json:"removeId"`
}

// HTTPCheckResponse is the JSON body returned by GET /check/{id}.
type HTTPCheckResponse struct {
	ID        string `json:"id"`
	Available bool   `json:"available"`
}

// HTTPRemoveResponse is the JSON body returned by GET /remove/{rid}.
type HTTPRemoveResponse struct {
	Success bool `json:"success"`
}

// HTTPLandingResponse is the JSON landing payload for non-redirect visits.
type HTTPLandingResponse struct {
	Pages    []string             `json:"pages"`
	Random   bool                 `json:"random"`
	Comments string               `json:"comments,omitempty"`
	Metadata []opengraph.Property `json:"metadata,omitempty"`
}

// Handler exposes the service and engine over HTTP.
type Handler struct {
	service *Service
	engine  *Engine
	logger  *slog.Logger
}

// HandlerConfig holds the Handler dependencies.
type HandlerConfig struct {
	Service *Service
	Engine  *Engine
	Logger  *slog.Logger
}

// NewHandler builds a Handler from cfg.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: cfg.Service, engine: cfg.Engine, logger: logger}
}

// Create handles POST /add.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := httpx.DecodeJSON[HTTPCreateRequest](r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	result, err := h.service.Create(r.Context(), toCreateRequest(body))
	if err != nil {
		h.writeServiceError(w, r, "create entry failed", err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, HTTPCreateResponse{
		ID:       result.ID,
		RemoveID: result.RemovalID,
	})
}

// Check handles GET /check/{id}.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	available, err := h.service.CheckAvailability(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "availability check failed", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, HTTPCheckResponse{ID: id, Available: available})
}

// Remove handles GET /remove/{rid}.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.Remove(r.Context(), r.PathValue("rid"))
	if err != nil {
		h.writeServiceError(w, r, "removal failed", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, HTTPRemoveResponse{Success: removed})
}

// Preview handles GET /preview/{id}/{index}.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "no such preview image")
		return
	}

	img, err := h.service.PreviewImage(r.Context(), r.PathValue("id"), index)
	if err != nil {
		if errx.KindOf(err) == errx.NotFound {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "no such preview image")
			return
		}
		h.writeServiceError(w, r, "preview lookup failed", err)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(img))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(img); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write preview image", "error", err)
	}
}

// Visit handles GET /{id}: the resolution hot path. Expired, exhausted and
// never-registered ids all answer 404; repository faults answer a generic
// 403 so failures leak nothing about which ids exist.
func (h *Handler) Visit(w http.ResponseWriter, r *http.Request) {
	decision, err := h.engine.Resolve(r.Context(), r.PathValue("id"))
	if err != nil {
		if errx.KindOf(err) == errx.NotFound {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "no such link")
			return
		}
		h.logger.ErrorContext(r.Context(), "resolution failed",
			"request_id", httpx.GetRequestID(r.Context()),
			"error", err,
		)
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "")
		return
	}

	if decision.Redirect != nil {
		http.Redirect(w, r, decision.Redirect.URL, decision.Redirect.Status)
		return
	}

	landing := decision.Landing
	httpx.WriteJSON(w, http.StatusOK, HTTPLandingResponse{
		Pages:    landing.Pages,
		Random:   landing.Random,
		Comments: landing.Comments,
		Metadata: landing.Properties,
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	kind := errx.KindOf(err)
	status := httpx.StatusOf(kind)

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), msg,
			"request_id", httpx.GetRequestID(r.Context()),
			"error", err,
		)
		httpx.WriteError(w, status, httpx.CodeOf(kind), "an unexpected error occurred")
		return
	}

	httpx.WriteError(w, status, httpx.CodeOf(kind), err.Error())
}

// toCreateRequest maps the wire payload onto the domain request, rounding
// the fractional click count and converting milliseconds to a duration.
func toCreateRequest(body HTTPCreateRequest) CreateRequest {
	targets := make([]TargetRequest, 0, len(body.Targets))
	for _, t := range body.Targets {
		targets = append(targets, TargetRequest{URL: t.URL, Weight: t.Weight})
	}

	remaining := UnlimitedUses
	if body.ClickCount != nil {
		remaining = int64(math.Round(*body.ClickCount))
	}

	return CreateRequest{
		ID:                body.ID,
		Comments:          body.Comments,
		Targets:           targets,
		TTL:               time.Duration(body.RemovalDuration) * time.Millisecond,
		RemainingUses:     remaining,
		Randomize:         body.Randomize,
		AutoRedirect:      body.AutoRedirect,
		RefreshTTLOnVisit: !body.ConsistentDuration,
		OGPolicy:          body.OGPolicy,
	}
}
