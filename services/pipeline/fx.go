package pipeline

import (
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

var Module = fx.Module("pipeline.module",
	fx.Provide(
		NewHeartbeatStore,
		NewExecutor,
		NewOrchestrator,
		NewTaskHandler,
		NewScheduler,
	),
	fx.Invoke(
		registerTaskHandlers,
		registerScheduler,
	),
)

func registerTaskHandlers(mux *asynq.ServeMux, h *TaskHandler) {
	h.Register(mux)
}
