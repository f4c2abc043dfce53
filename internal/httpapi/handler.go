package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"socialplane/pkg/config"
	"socialplane/pkg/health"
	"socialplane/services/pipeline"
	"socialplane/services/postjob"
)

var Module = fx.Module("httpapi",
	fx.Provide(ProvideHandler),
)

// Handler exposes the manual pipeline triggers and read endpoints.
type Handler struct {
	orch *pipeline.Orchestrator
	jobs postjob.Repository
}

func NewHandler(orch *pipeline.Orchestrator, jobs postjob.Repository) *Handler {
	return &Handler{orch: orch, jobs: jobs}
}

// ProvideHandler builds the gin engine the HTTP server serves.
func ProvideHandler(cfg *config.Config, orch *pipeline.Orchestrator, jobs postjob.Repository, hc health.HealthService) http.Handler {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	h := NewHandler(orch, jobs)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", hc.Liveness)
	r.GET("/readyz", hc.Readiness)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/drafts/:id/publish", h.PublishNow)
		v1.POST("/drafts/:id/retry-failed", h.RetryFailed)
		v1.GET("/drafts/:id/jobs", h.ListJobs)
	}

	return r
}

type jobView struct {
	ID             string `json:"id"`
	Channel        string `json:"channel"`
	Status         string `json:"status"`
	AttemptCount   int    `json:"attempt_count"`
	ExternalPostID string `json:"external_post_id,omitempty"`
	ExternalURL    string `json:"external_url,omitempty"`
	Error          string `json:"error,omitempty"`
}

type draftResultView struct {
	DraftID string    `json:"draft_id"`
	Status  string    `json:"status"`
	Jobs    []jobView `json:"jobs"`
}

func viewJobs(jobs []postjob.PostJob) []jobView {
	out := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		v := jobView{
			ID:           j.ID,
			Channel:      j.Channel.String(),
			Status:       j.Status.String(),
			AttemptCount: j.AttemptCount,
		}
		if j.ExternalPostID != nil {
			v.ExternalPostID = *j.ExternalPostID
		}
		if j.ExternalURL != nil {
			v.ExternalURL = *j.ExternalURL
		}
		if j.LastError != nil {
			v.Error = *j.LastError
		}
		out = append(out, v)
	}
	return out
}

// PublishNow runs the draft through the pipeline immediately, resetting its
// publishable jobs first.
func (h *Handler) PublishNow(c *gin.Context) {
	d, jobs, err := h.orch.RunImmediate(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == pipeline.ErrDraftNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, draftResultView{
		DraftID: d.ID,
		Status:  d.Status.String(),
		Jobs:    viewJobs(jobs),
	})
}

// RetryFailed re-runs only the draft's failed jobs.
func (h *Handler) RetryFailed(c *gin.Context) {
	d, jobs, err := h.orch.RetryFailed(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == pipeline.ErrDraftNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, draftResultView{
		DraftID: d.ID,
		Status:  d.Status.String(),
		Jobs:    viewJobs(jobs),
	})
}

func (h *Handler) ListJobs(c *gin.Context) {
	jobs, err := h.jobs.ListByDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": viewJobs(jobs)})
}
