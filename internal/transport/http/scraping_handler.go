package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "tripharvest/internal/errors"
	"tripharvest/internal/middleware"
	"tripharvest/internal/operations"
)

// ScrapingHandler handles the scraping control endpoints
type ScrapingHandler struct {
	service ScrapeServiceInterface
	logger  *slog.Logger
}

// NewScrapingHandler creates a scraping handler
func NewScrapingHandler(service ScrapeServiceInterface, logger *slog.Logger) *ScrapingHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScrapingHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "scraping")),
	}
}

// Routes returns the chi router for scraping endpoints
func (h *ScrapingHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(60*time.Second, h.logger))

	r.Post("/start", h.StartOperation)
	r.Get("/status/{operationId}", h.GetOperationStatus)
	r.Post("/cancel/{operationId}", h.CancelOperation)
	r.Get("/logs", h.ListOperationLogs)

	r.Get("/cron/status", h.GetCronStatus)
	r.Put("/cron/schedule", h.UpdateCronSchedule)
	r.Post("/cron/pause/{taskName}", h.PauseCronTask)
	r.Post("/cron/resume/{taskName}", h.ResumeCronTask)

	return r
}

// StartRequest is the body of POST /scraping/start
type StartRequest struct {
	Sources     []string `json:"sources,omitempty"`
	TriggeredBy string   `json:"triggeredBy,omitempty"`
	Config      struct {
		TimeoutPerSource string `json:"timeoutPerSource,omitempty"`
		RetryAttempts    int    `json:"retryAttempts,omitempty"`
		BatchSize        int    `json:"batchSize,omitempty"`
	} `json:"config"`
}

// Bind implements render.Binder
func (r *StartRequest) Bind(req *http.Request) error {
	if r.Config.TimeoutPerSource != "" {
		if _, err := time.ParseDuration(r.Config.TimeoutPerSource); err != nil {
			return err
		}
	}
	return nil
}

// StartOperation handles POST /scraping/start
func (h *ScrapingHandler) StartOperation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("scraping-handler")
	ctx, span := tracer.Start(ctx, "scraping_handler.start",
		trace.WithAttributes(
			attribute.String("http.route", "/api/scraping/start"),
			attribute.String("request_id", middleware.GetReqID(ctx)),
		),
	)
	defer span.End()

	req := &StartRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Render(w, r, apperrors.InvalidRequestWithError(err))
		return
	}

	cfg := operations.RunConfig{
		Sources:       req.Sources,
		RetryAttempts: req.Config.RetryAttempts,
		BatchSize:     req.Config.BatchSize,
	}
	if req.Config.TimeoutPerSource != "" {
		cfg.TimeoutPerSource, _ = time.ParseDuration(req.Config.TimeoutPerSource)
	}

	trigger := operations.TriggerAPI
	if req.TriggeredBy != "" {
		trigger = operations.TriggerManual
	}

	id, err := h.service.Start(ctx, trigger, req.TriggeredBy, cfg)
	if err != nil {
		h.logger.WarnContext(ctx, "start rejected", slog.String("error", err.Error()))
		render.Render(w, r, apperrors.FromDomain(err))
		return
	}

	span.SetAttributes(attribute.String("operation_id", id))
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{"operationId": id})
}

// GetOperationStatus handles GET /scraping/status/{operationId}
func (h *ScrapingHandler) GetOperationStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "operationId")

	snap, err := h.service.Status(ctx, id)
	if err != nil {
		render.Render(w, r, apperrors.FromDomain(err))
		return
	}
	render.JSON(w, r, snap)
}

// CancelOperation handles POST /scraping/cancel/{operationId}
func (h *ScrapingHandler) CancelOperation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "operationId")

	if err := h.service.Cancel(ctx, id); err != nil {
		render.Render(w, r, apperrors.FromDomain(err))
		return
	}
	h.logger.InfoContext(ctx, "cancellation accepted", slog.String("operation_id", id))
	render.JSON(w, r, map[string]string{"status": "cancelling", "operationId": id})
}

// ListOperationLogs handles GET /scraping/logs
func (h *ScrapingHandler) ListOperationLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := operations.LogFilter{
		Status:      operations.Status(q.Get("status")),
		TriggerKind: operations.TriggerKind(q.Get("triggerKind")),
		StartDate:   q.Get("startDate"),
		EndDate:     q.Get("endDate"),
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	snaps, total, err := h.service.Logs(ctx, filter)
	if err != nil {
		render.Render(w, r, apperrors.InvalidRequestWithError(err))
		return
	}
	if snaps == nil {
		snaps = []*operations.Snapshot{}
	}

	render.JSON(w, r, map[string]interface{}{
		"operations": snaps,
		"total":      total,
		"page":       max(filter.Page, 1),
		"limit":      filter.Limit,
	})
}

// GetCronStatus handles GET /scraping/cron/status
func (h *ScrapingHandler) GetCronStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{"tasks": h.service.CronStatus()})
}

// CronScheduleRequest is the body of PUT /scraping/cron/schedule
type CronScheduleRequest struct {
	Schedule string `json:"schedule"`
	TaskName string `json:"taskName"`
}

// Bind implements render.Binder
func (r *CronScheduleRequest) Bind(req *http.Request) error {
	if r.Schedule == "" {
		return errMissingField("schedule")
	}
	if r.TaskName == "" {
		return errMissingField("taskName")
	}
	return nil
}

// UpdateCronSchedule handles PUT /scraping/cron/schedule
func (h *ScrapingHandler) UpdateCronSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := &CronScheduleRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Render(w, r, apperrors.InvalidRequestWithError(err))
		return
	}

	if err := h.service.ScheduleCron(req.TaskName, req.Schedule); err != nil {
		render.Render(w, r, apperrors.FromDomain(err))
		return
	}
	h.logger.InfoContext(ctx, "cron schedule updated",
		slog.String("task", req.TaskName),
		slog.String("schedule", req.Schedule))
	render.JSON(w, r, map[string]string{"status": "scheduled", "taskName": req.TaskName})
}

// PauseCronTask handles POST /scraping/cron/pause/{taskName}
func (h *ScrapingHandler) PauseCronTask(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "taskName")
	if !h.service.PauseCron(name) {
		render.Render(w, r, apperrors.NotFoundError("scheduled task"))
		return
	}
	render.JSON(w, r, map[string]string{"status": "paused", "taskName": name})
}

// ResumeCronTask handles POST /scraping/cron/resume/{taskName}
func (h *ScrapingHandler) ResumeCronTask(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "taskName")
	if !h.service.ResumeCron(name) {
		render.Render(w, r, apperrors.NotFoundError("scheduled task"))
		return
	}
	render.JSON(w, r, map[string]string{"status": "resumed", "taskName": name})
}

type errMissingField string

func (e errMissingField) Error() string {
	return string(e) + " is required"
}
