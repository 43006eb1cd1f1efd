//go:build unit

package commands_test

import (
	"context"
	"testing"
	"time"

	"marketlink/internal/domain/order"
	"marketlink/internal/gateway"
	"marketlink/internal/infra"
	"marketlink/internal/infra/lock"
	"marketlink/internal/infra/repository"
	"marketlink/internal/pkg/clock"
	"marketlink/internal/usecase/commands"
	"marketlink/tests/common/builder"
	commandsmock "marketlink/tests/mock/commands"
	gatewaymock "marketlink/tests/mock/gateway"
	queriesmock "marketlink/tests/mock/queries"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type ReservationTestSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	locks    *commandsmock.MockLockCoordinator
	variants *commandsmock.MockStockRepository
	orders   *commandsmock.MockOrderRepository
	tx       *commandsmock.MockTxRunner
	gateway  *gatewaymock.MockPaymentGateway
	queries  *queriesmock.MockOrderQueries
	sut      commands.ReservationCommands
}

func (s *ReservationTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.locks = commandsmock.NewMockLockCoordinator(s.ctrl)
	s.variants = commandsmock.NewMockStockRepository(s.ctrl)
	s.orders = commandsmock.NewMockOrderRepository(s.ctrl)
	s.tx = commandsmock.NewMockTxRunner(s.ctrl)
	s.gateway = gatewaymock.NewMockPaymentGateway(s.ctrl)
	s.queries = queriesmock.NewMockOrderQueries(s.ctrl)

	clk := clock.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s.sut = commands.NewReservationCommands(s.locks, s.variants, s.orders, s.tx, nil,
		s.gateway, s.queries, clk)
}

func (s *ReservationTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestReservationSuite(t *testing.T) {
	suite.Run(t, new(ReservationTestSuite))
}

func (s *ReservationTestSuite) expectLease(variantID uuid.UUID) {
	key := lock.StockKey(variantID)
	s.locks.EXPECT().Acquire(gomock.Any(), key).Return("token-1", nil)
	s.locks.EXPECT().Release(gomock.Any(), key, "token-1").Return(nil)
}

func (s *ReservationTestSuite) runInTx() *gomock.Call {
	return s.tx.EXPECT().WithinTx(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(repository.DBTX) error) error {
			return fn(nil)
		})
}

func (s *ReservationTestSuite) TestReserve_Success() {
	customerID := uuid.New()
	variant := builder.NewVariantBuilder().WithPrice(2000).Build()

	s.expectLease(variant.ID)
	s.variants.EXPECT().FindByID(gomock.Any(), gomock.Any(), variant.ID).Return(variant, nil)
	s.runInTx()
	s.variants.EXPECT().TryDecrement(gomock.Any(), gomock.Any(), variant.ID).Return(nil)

	var createdID uuid.UUID
	s.orders.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ repository.DBTX, o *order.Order) error {
			s.Equal(customerID, o.CustomerID())
			s.Equal(variant.ID, o.VariantID())
			s.Equal(int64(2000), o.TotalAmountCents())
			s.Equal(order.StatusPending, o.Status())
			createdID = o.ID()
			return nil
		})

	s.gateway.EXPECT().CreateIntent(gomock.Any(), gomock.Any(), int64(2000)).Return(
		&gateway.Intent{ID: "pi_123", ClientRef: "pi_123_secret"}, nil)
	s.orders.EXPECT().SetPaymentIntent(gomock.Any(), gomock.Any(), gomock.Any(), "pi_123").Return(nil)

	view := builder.NewOrderBuilder().WithCustomerID(customerID).BuildView()
	s.queries.EXPECT().GetByID(gomock.Any(), gomock.Any()).Return(view, nil)

	result, err := s.sut.Reserve(context.Background(), customerID, variant.ID)
	s.Require().NoError(err)
	s.Equal("pi_123_secret", result.CheckoutRef)
	s.Equal(view, result.Order)
	s.NotEqual(uuid.Nil, createdID)
}

func (s *ReservationTestSuite) TestReserve_LeaseBusy() {
	variantID := uuid.New()
	s.locks.EXPECT().Acquire(gomock.Any(), lock.StockKey(variantID)).Return("", lock.ErrLeaseBusy)

	_, err := s.sut.Reserve(context.Background(), uuid.New(), variantID)
	s.ErrorIs(err, commands.ErrVariantBusy)
}

func (s *ReservationTestSuite) TestReserve_VariantNotFound() {
	variantID := uuid.New()
	s.expectLease(variantID)
	s.variants.EXPECT().FindByID(gomock.Any(), gomock.Any(), variantID).Return(nil,
		infra.WrapRepoErr("service variant not found", nil, infra.KindNotFound))

	_, err := s.sut.Reserve(context.Background(), uuid.New(), variantID)
	s.ErrorIs(err, commands.ErrVariantNotFound)
}

func (s *ReservationTestSuite) TestReserve_StockExhausted() {
	variant := builder.NewVariantBuilder().WithStock(0).Build()

	s.expectLease(variant.ID)
	s.variants.EXPECT().FindByID(gomock.Any(), gomock.Any(), variant.ID).Return(variant, nil)
	s.runInTx()
	s.variants.EXPECT().TryDecrement(gomock.Any(), gomock.Any(), variant.ID).Return(
		infra.WrapRepoErr("stock exhausted", nil, infra.KindConflict))

	_, err := s.sut.Reserve(context.Background(), uuid.New(), variant.ID)
	s.ErrorIs(err, commands.ErrOutOfStock)
}

func (s *ReservationTestSuite) TestReserve_GatewayDownLeavesPendingOrder() {
	variant := builder.NewVariantBuilder().Build()

	s.expectLease(variant.ID)
	s.variants.EXPECT().FindByID(gomock.Any(), gomock.Any(), variant.ID).Return(variant, nil)
	s.runInTx()
	s.variants.EXPECT().TryDecrement(gomock.Any(), gomock.Any(), variant.ID).Return(nil)
	s.orders.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.gateway.EXPECT().CreateIntent(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, gateway.ErrUnavailable)
	// No SetPaymentIntent and no rollback of the committed reservation.

	_, err := s.sut.Reserve(context.Background(), uuid.New(), variant.ID)
	s.ErrorIs(err, commands.ErrGatewayUnavailable)
}

func (s *ReservationTestSuite) TestReserve_ReleaseFailureDoesNotFailBooking() {
	customerID := uuid.New()
	variant := builder.NewVariantBuilder().Build()
	key := lock.StockKey(variant.ID)

	s.locks.EXPECT().Acquire(gomock.Any(), key).Return("token-1", nil)
	s.locks.EXPECT().Release(gomock.Any(), key, "token-1").Return(lock.ErrNotHolder)
	s.variants.EXPECT().FindByID(gomock.Any(), gomock.Any(), variant.ID).Return(variant, nil)
	s.runInTx()
	s.variants.EXPECT().TryDecrement(gomock.Any(), gomock.Any(), variant.ID).Return(nil)
	s.orders.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.gateway.EXPECT().CreateIntent(gomock.Any(), gomock.Any(), gomock.Any()).Return(
		&gateway.Intent{ID: "pi_123", ClientRef: "ref"}, nil)
	s.orders.EXPECT().SetPaymentIntent(gomock.Any(), gomock.Any(), gomock.Any(), "pi_123").Return(nil)
	s.queries.EXPECT().GetByID(gomock.Any(), gomock.Any()).Return(
		builder.NewOrderBuilder().WithCustomerID(customerID).BuildView(), nil)

	result, err := s.sut.Reserve(context.Background(), customerID, variant.ID)
	s.Require().NoError(err)
	s.Equal("ref", result.CheckoutRef)
}
