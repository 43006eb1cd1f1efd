package components

import (
	"marketlink/internal/handler"
	"marketlink/internal/handler/api"

	"go.uber.org/fx"
)

var HandlerModule = fx.Module("handler",
	fx.Provide(
		api.NewOrderHandler,
		api.NewWebhookHandler,
	),
	fx.Invoke(handler.NewRouter),
)
