package scheduling

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/caresched/core/logger"
	"github.com/kilianp07/caresched/core/model"
	"github.com/kilianp07/caresched/core/runlog"
	"github.com/kilianp07/caresched/core/schedule"
	"github.com/kilianp07/caresched/core/solver"
	"github.com/kilianp07/caresched/core/timegrid"
	"github.com/kilianp07/caresched/pkg/export"
)

// Runner runs one scheduling pass; *schedule.Scheduler implements it.
type Runner interface {
	Run(ctx context.Context, ds model.Dataset) (schedule.Outcome, error)
	Grid() timegrid.Grid
}

// ClientRequest adds a client. Availability may be given structured or as
// "Day: HH:00, HH:00" lines.
type ClientRequest struct {
	ID               string              `json:"id"`
	Name             string              `json:"name" binding:"required"`
	Needs            map[string]float64  `json:"needs" binding:"dive,keys,required,endkeys,gte=0"`
	Availability     map[string][]string `json:"availability" binding:"required_without=AvailabilityText"`
	AvailabilityText string              `json:"availability_text"`
}

// ProviderRequest adds a provider.
type ProviderRequest struct {
	ID               string              `json:"id"`
	Name             string              `json:"name" binding:"required"`
	Category         string              `json:"category" binding:"required"`
	Availability     map[string][]string `json:"availability" binding:"required_without=AvailabilityText"`
	AvailabilityText string              `json:"availability_text"`
}

// ScheduleResponse describes the latest run.
type ScheduleResponse struct {
	RunID         string                `json:"run_id"`
	Status        solver.Status         `json:"status"`
	Feasible      bool                  `json:"feasible"`
	Consultations []model.Consultation  `json:"consultations"`
	Diagnostics   []schedule.Diagnostic `json:"diagnostics"`
	Violations    []schedule.Violation  `json:"violations"`
	Stats         schedule.Stats        `json:"stats"`
}

// Handler serves the registry and run endpoints.
type Handler struct {
	reg    *Registry
	runner Runner
	store  runlog.Store
	log    logger.Logger
}

// NewHandler wires the handler; store may be nil.
func NewHandler(reg *Registry, runner Runner, store runlog.Store, log logger.Logger) *Handler {
	if store == nil {
		store = runlog.NopStore{}
	}
	return &Handler{reg: reg, runner: runner, store: store, log: log}
}

// Register mounts the endpoints under /api.
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api")
	{
		api.GET("/clients", h.ListClients)
		api.POST("/clients", h.AddClient)
		api.DELETE("/clients/:id", h.DeleteClient)
		api.GET("/providers", h.ListProviders)
		api.POST("/providers", h.AddProvider)
		api.DELETE("/providers/:id", h.DeleteProvider)
		api.POST("/schedule/run", h.RunSchedule)
		api.GET("/schedule", h.GetSchedule)
		api.GET("/schedule/table", h.GetTable)
		api.GET("/runs", h.ListRuns)
	}
}

// NewRouter returns a gin engine with recovery, request logging and the
// handler's routes.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	h.Register(r)
	return r
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.log.Debugw("http request", map[string]any{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
	}
}

func (h *Handler) ListClients(c *gin.Context) { c.JSON(http.StatusOK, h.reg.Clients()) }

func (h *Handler) ListProviders(c *gin.Context) { c.JSON(http.StatusOK, h.reg.Providers()) }

func (h *Handler) AddClient(c *gin.Context) {
	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	client, err := h.reg.AddClient(model.Client{
		ID:           req.ID,
		Name:         req.Name,
		Needs:        req.Needs,
		Availability: h.availability(req.Availability, req.AvailabilityText),
	})
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	h.log.Infof("Added client: %s", client.Name)
	c.JSON(http.StatusCreated, client)
}

func (h *Handler) AddProvider(c *gin.Context) {
	var req ProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.reg.AddProvider(model.Provider{
		ID:           req.ID,
		Name:         req.Name,
		Category:     req.Category,
		Availability: h.availability(req.Availability, req.AvailabilityText),
	})
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	h.log.Infof("Added provider: %s (%s)", p.Name, p.Category)
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) availability(raw map[string][]string, text string) map[string][]string {
	if len(raw) > 0 {
		return raw
	}
	return timegrid.ParseAvailabilityText(text, h.runner.Grid())
}

func (h *Handler) DeleteClient(c *gin.Context) {
	h.deleted(c, h.reg.DeleteClient(c.Param("id")))
}

func (h *Handler) DeleteProvider(c *gin.Context) {
	h.deleted(c, h.reg.DeleteProvider(c.Param("id")))
}

func (h *Handler) deleted(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// RunSchedule schedules the current registry content.
func (h *Handler) RunSchedule(c *gin.Context) {
	ds := h.reg.Dataset()
	if len(ds.Clients) == 0 || len(ds.Providers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "add at least one client and one provider"})
		return
	}
	out, err := h.runner.Run(c.Request.Context(), ds)
	if err != nil {
		if errors.Is(err, schedule.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Errorf("schedule run: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.reg.SetOutcome(ds, out)
	c.JSON(http.StatusOK, toResponse(out))
}

// GetSchedule returns the latest run, 404 when none was attempted.
func (h *Handler) GetSchedule(c *gin.Context) {
	_, out, ok := h.reg.Outcome()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no schedule has been attempted"})
		return
	}
	c.JSON(http.StatusOK, toResponse(out))
}

// GetTable renders the latest schedule as text (default) or PDF with
// ?format=pdf.
func (h *Handler) GetTable(c *gin.Context) {
	ds, out, ok := h.reg.Outcome()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no schedule has been attempted"})
		return
	}
	if !out.Feasible() {
		c.String(http.StatusOK, "No feasible schedule could be created.\n")
		return
	}
	var buf bytes.Buffer
	if c.Query("format") == "pdf" {
		if err := export.WriteSchedulePDF(&buf, ds, out.Schedule); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/pdf", buf.Bytes())
		return
	}
	if err := export.RenderSchedule(&buf, ds, out.Schedule); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", buf.Bytes())
}

// ListRuns queries the run log with start, end (RFC3339), status,
// client_id and limit filters.
func (h *Handler) ListRuns(c *gin.Context) {
	q := runlog.Query{Status: c.Query("status"), ClientID: c.Query("client_id")}
	if s := c.Query("start"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			q.Start = t
		}
	}
	if s := c.Query("end"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			q.End = t
		}
	}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		q.Limit = n
	}
	recs, err := h.store.Query(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if recs == nil {
		recs = []runlog.Record{}
	}
	c.JSON(http.StatusOK, recs)
}

func toResponse(o schedule.Outcome) ScheduleResponse {
	resp := ScheduleResponse{
		RunID:         o.RunID,
		Status:        o.Status,
		Feasible:      o.Feasible(),
		Consultations: []model.Consultation{},
		Diagnostics:   o.Diagnostics,
		Violations:    o.Violations,
		Stats:         o.Stats,
	}
	if o.Schedule != nil {
		resp.Consultations = o.Schedule.Consultations
	}
	return resp
}
