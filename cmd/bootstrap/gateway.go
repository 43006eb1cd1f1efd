package bootstrap

import (
	"marketlink/internal/gateway"
	infragateway "marketlink/internal/infra/gateway"
	"marketlink/internal/pkg/clock"
	"marketlink/internal/pkg/config"

	"go.uber.org/fx"
)

var GatewayModule = fx.Module("gateway",
	fx.Provide(
		fx.Annotate(
			NewPaymentGateway,
			fx.As(new(gateway.PaymentGateway)),
		),
	),
)

func NewPaymentGateway(cfg config.Config, clk clock.Clock) *infragateway.Client {
	return infragateway.NewClient(cfg.Gateway, clk)
}
