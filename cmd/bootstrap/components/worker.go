package components

import (
	"context"

	"marketlink/internal/infra/repository"
	"marketlink/internal/notifier"
	"marketlink/internal/pkg/config"
	"marketlink/internal/usecase/commands"

	"go.uber.org/fx"
)

var WorkerModule = fx.Module("worker",
	fx.Provide(
		NewNotificationWorker,
	),
	fx.Invoke(runNotificationWorker),
)

func NewNotificationWorker(jobs notifier.JobStore, orders commands.OrderCommands, db repository.DBTX, cfg config.Config) *notifier.Worker {
	return notifier.NewWorker(jobs, orders, db, cfg.Worker)
}

func runNotificationWorker(lc fx.Lifecycle, worker *notifier.Worker) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			worker.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			worker.Stop()
			return nil
		},
	})
}
