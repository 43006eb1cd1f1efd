package components

import (
	"marketlink/internal/infra/db"
	"marketlink/internal/infra/lock"
	"marketlink/internal/infra/readstore"
	"marketlink/internal/infra/repository"
	"marketlink/internal/notifier"
	"marketlink/internal/pkg/config"
	"marketlink/internal/usecase/commands"
	"marketlink/internal/usecase/queries"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var PersistenceModule = fx.Module("persistence",
	fx.Provide(
		NewDBTX,
		fx.Annotate(
			db.NewTxRunner,
			fx.As(new(commands.TxRunner)),
		),
		fx.Annotate(
			NewLockCoordinator,
			fx.As(new(commands.LockCoordinator)),
		),
		fx.Annotate(
			repository.NewStockRepository,
			fx.As(new(commands.StockRepository)),
		),
		fx.Annotate(
			repository.NewOrderRepository,
			fx.As(new(commands.OrderRepository)),
		),
		fx.Annotate(
			repository.NewPaymentEventRepository,
			fx.As(new(commands.PaymentEventRepository)),
		),
		fx.Annotate(
			repository.NewNotificationRepository,
			fx.As(new(commands.NotificationRepository)),
			fx.As(new(notifier.JobStore)),
		),
		fx.Annotate(
			readstore.NewOrderReadStore,
			fx.As(new(queries.OrderReadStore)),
		),
	),
)

func NewDBTX(pool *pgxpool.Pool) repository.DBTX {
	return pool
}

func NewLockCoordinator(client *redis.Client, cfg config.Config) *lock.Coordinator {
	return lock.NewCoordinator(client, cfg.Lock)
}
