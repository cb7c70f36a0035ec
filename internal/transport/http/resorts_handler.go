package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apperrors "tripharvest/internal/errors"
	"tripharvest/internal/geocode"
	"tripharvest/internal/middleware"
	"tripharvest/internal/services"
)

var validate = validator.New()

// ResortsHandler handles the geocode maintenance endpoints
type ResortsHandler struct {
	service ResortServiceInterface
	logger  *slog.Logger

	// improveThreshold is the default quality cutoff for improve-quality
	// runs when the request does not supply one
	improveThreshold int
}

// NewResortsHandler creates a resorts handler
func NewResortsHandler(service ResortServiceInterface, improveThreshold int, logger *slog.Logger) *ResortsHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if improveThreshold <= 0 {
		improveThreshold = 60
	}
	return &ResortsHandler{
		service:          service,
		logger:           logger.With(slog.String("handler", "resorts")),
		improveThreshold: improveThreshold,
	}
}

// Routes returns the chi router for resort endpoints
func (h *ResortsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	// Maintenance runs call the rate-limited external geocoder and can
	// take minutes on a full cache.
	r.Use(middleware.Timeout(10*time.Minute, h.logger))

	r.Get("/", h.ListEntries)
	r.Post("/populate", h.Populate)
	r.Post("/fix-generic", h.FixGeneric)
	r.Post("/improve-quality", h.ImproveQuality)
	r.Patch("/{id}/verify", h.VerifyEntry)
	r.Patch("/{id}/coordinates", h.UpdateCoordinates)

	return r
}

// ListEntries handles GET /resorts
func (h *ResortsHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.List(r.Context())
	if err != nil {
		render.Render(w, r, apperrors.FromDomain(err))
		return
	}
	if entries == nil {
		entries = []geocode.CacheEntry{}
	}
	render.JSON(w, r, map[string]interface{}{"resorts": entries, "total": len(entries)})
}

// Populate handles POST /resorts/populate
func (h *ResortsHandler) Populate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.logger.InfoContext(ctx, "populate requested")

	report, err := h.service.Populate(ctx)
	if err != nil {
		render.Render(w, r, apperrors.FromDomain(err))
		return
	}
	render.JSON(w, r, report)
}

// FixGeneric handles POST /resorts/fix-generic
func (h *ResortsHandler) FixGeneric(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.logger.InfoContext(ctx, "fix-generic requested")

	report, err := h.service.FixGeneric(ctx)
	if err != nil {
		render.Render(w, r, apperrors.FromDomain(err))
		return
	}
	render.JSON(w, r, report)
}

// ImproveQuality handles POST /resorts/improve-quality
func (h *ResortsHandler) ImproveQuality(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	threshold := h.improveThreshold
	if v := r.URL.Query().Get("threshold"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 100 {
			render.Render(w, r, apperrors.InvalidRequestWithError(
				fmt.Errorf("threshold must be an integer in [1,100]")))
			return
		}
		threshold = parsed
	}

	report, err := h.service.ImproveQuality(ctx, threshold)
	if err != nil {
		render.Render(w, r, apperrors.FromDomain(err))
		return
	}
	render.JSON(w, r, report)
}

// VerifyRequest is the body of PATCH /resorts/{id}/verify
type VerifyRequest struct {
	IsVerified *bool `json:"isVerified"`
}

// Bind implements render.Binder
func (r *VerifyRequest) Bind(req *http.Request) error {
	if r.IsVerified == nil {
		return errMissingField("isVerified")
	}
	return nil
}

// VerifyEntry handles PATCH /resorts/{id}/verify
func (h *ResortsHandler) VerifyEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	req := &VerifyRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Render(w, r, apperrors.InvalidRequestWithError(err))
		return
	}

	entry, err := h.service.Verify(ctx, id, *req.IsVerified)
	if err != nil {
		render.Render(w, r, apperrors.FromDomain(err))
		return
	}
	render.JSON(w, r, entry)
}

// CoordinatesRequest is the body of PATCH /resorts/{id}/coordinates
type CoordinatesRequest struct {
	Coordinates      []float64 `json:"coordinates" validate:"required,len=2"`
	FormattedAddress string    `json:"formattedAddress"`
	Method           string    `json:"method" validate:"required,oneof=api_geocoding beach_match fallback manual"`
	QualityScore     int       `json:"qualityScore" validate:"min=0,max=100"`
	IsVerified       bool      `json:"isVerified"`
}

// Bind implements render.Binder. Coordinates must be a numeric
// [lng, lat] pair inside the country's outer bounding box.
func (r *CoordinatesRequest) Bind(req *http.Request) error {
	if err := validate.Struct(r); err != nil {
		return err
	}

	coords := geocode.Coordinates{Lon: r.Coordinates[0], Lat: r.Coordinates[1]}
	if !coords.Valid() {
		return fmt.Errorf("coordinates out of range: [%v, %v]", coords.Lon, coords.Lat)
	}
	if !geocode.CountryBounds.Contains(coords) {
		return fmt.Errorf("coordinates [%v, %v] fall outside %s", coords.Lon, coords.Lat, geocode.CountryName)
	}
	return nil
}

// UpdateCoordinates handles PATCH /resorts/{id}/coordinates
func (h *ResortsHandler) UpdateCoordinates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	reqID := middleware.GetReqID(ctx)

	req := &CoordinatesRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Render(w, r, apperrors.InvalidRequestWithError(err))
		return
	}

	entry, err := h.service.UpdateCoordinates(ctx, id, services.CoordinateEdit{
		Coordinates:      geocode.Coordinates{Lon: req.Coordinates[0], Lat: req.Coordinates[1]},
		FormattedAddress: req.FormattedAddress,
		Method:           req.Method,
		QualityScore:     req.QualityScore,
		IsVerified:       req.IsVerified,
	})
	if err != nil {
		render.Render(w, r, apperrors.FromDomain(err))
		return
	}

	h.logger.InfoContext(ctx, "coordinates updated",
		slog.String("request_id", reqID),
		slog.String("query_key", id))
	render.JSON(w, r, entry)
}
