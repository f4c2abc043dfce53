package pipeline

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	taskq "socialplane/pkg/asynq"
	"socialplane/pkg/config"
)

// Scheduler enqueues the periodic run_due task. Enqueueing through the task
// queue, rather than calling the orchestrator directly, lets a crashed cycle
// be retried by the queue and keeps cycles serialized on the single worker.
type Scheduler struct {
	cron   *cron.Cron
	client *asynq.Client
	cfg    *config.Config
}

func NewScheduler(client *asynq.Client, cfg *config.Config) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		client: client,
		cfg:    cfg,
	}
}

func (s *Scheduler) enqueueDueCycle() {
	payload, _ := json.Marshal(taskq.RunDueCyclePayload{Limit: s.cfg.Publish.BatchLimit})
	info, err := s.client.Enqueue(
		asynq.NewTask(taskq.TaskRunDueCycle, payload),
		asynq.Queue("publish"),
		asynq.MaxRetry(0),
	)
	if err != nil {
		zap.L().Error("enqueue due cycle", zap.Error(err))
		return
	}
	zap.L().Debug("due cycle enqueued", zap.String("task_id", info.ID))
}

func registerScheduler(lc fx.Lifecycle, s *Scheduler) error {
	if _, err := s.cron.AddFunc(s.cfg.Publish.Cron, s.enqueueDueCycle); err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.cron.Start()
			zap.L().Info("publish scheduler started", zap.String("cron", s.cfg.Publish.Cron))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopCtx := s.cron.Stop()
			select {
			case <-stopCtx.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
	return nil
}
