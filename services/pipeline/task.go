package pipeline

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	taskq "socialplane/pkg/asynq"
)

// TaskHandler adapts the orchestrator to asynq. The run_due task is what the
// cron scheduler enqueues; publish_draft backs the manual trigger when it is
// dispatched asynchronously.
type TaskHandler struct {
	orch *Orchestrator
}

func NewTaskHandler(orch *Orchestrator) *TaskHandler {
	return &TaskHandler{orch: orch}
}

func (h *TaskHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(taskq.TaskRunDueCycle, h.HandleRunDueCycle)
	mux.HandleFunc(taskq.TaskPublishDraft, h.HandlePublishDraft)
}

func (h *TaskHandler) HandleRunDueCycle(ctx context.Context, t *asynq.Task) error {
	var payload taskq.RunDueCyclePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			zap.L().Error("decode run_due payload", zap.Error(err))
			return err
		}
	}

	summary, err := h.orch.RunDueCycle(ctx, payload.Limit)
	if err != nil {
		return err
	}
	zap.L().Info("due cycle finished",
		zap.Int("drafts", summary.Drafts),
		zap.Int("attempted", summary.Attempted),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
	)
	return nil
}

func (h *TaskHandler) HandlePublishDraft(ctx context.Context, t *asynq.Task) error {
	var payload taskq.PublishDraftPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		zap.L().Error("decode publish_draft payload", zap.Error(err))
		return err
	}

	d, jobs, err := h.orch.RunImmediate(ctx, payload.DraftID)
	if err != nil {
		if err == ErrDraftNotFound {
			// Nothing to retry; drop the task.
			zap.L().Warn("publish_draft task for missing draft", zap.String("draft_id", payload.DraftID))
			return nil
		}
		return err
	}
	zap.L().Info("immediate publish finished",
		zap.String("draft_id", d.ID),
		zap.String("status", d.Status.String()),
		zap.Int("jobs", len(jobs)),
	)
	return nil
}
