//go:build unit

package commands_test

import (
	"context"
	"testing"
	"time"

	"marketlink/internal/domain/order"
	"marketlink/internal/domain/payment"
	"marketlink/internal/gateway"
	"marketlink/internal/infra"
	"marketlink/internal/infra/repository"
	"marketlink/internal/pkg/clock"
	"marketlink/internal/usecase/commands"
	"marketlink/tests/common/builder"
	commandsmock "marketlink/tests/mock/commands"
	gatewaymock "marketlink/tests/mock/gateway"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type SettlementTestSuite struct {
	suite.Suite
	ctrl          *gomock.Controller
	gateway       *gatewaymock.MockPaymentGateway
	orders        *commandsmock.MockOrderRepository
	events        *commandsmock.MockPaymentEventRepository
	notifications *commandsmock.MockNotificationRepository
	tx            *commandsmock.MockTxRunner
	sut           commands.SettlementCommands
}

func (s *SettlementTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.gateway = gatewaymock.NewMockPaymentGateway(s.ctrl)
	s.orders = commandsmock.NewMockOrderRepository(s.ctrl)
	s.events = commandsmock.NewMockPaymentEventRepository(s.ctrl)
	s.notifications = commandsmock.NewMockNotificationRepository(s.ctrl)
	s.tx = commandsmock.NewMockTxRunner(s.ctrl)

	clk := clock.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s.sut = commands.NewSettlementCommands(s.gateway, s.orders, s.events, s.notifications, s.tx, nil, clk)
}

func (s *SettlementTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestSettlementSuite(t *testing.T) {
	suite.Run(t, new(SettlementTestSuite))
}

func (s *SettlementTestSuite) runInTx() *gomock.Call {
	return s.tx.EXPECT().WithinTx(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(repository.DBTX) error) error {
			return fn(nil)
		})
}

func (s *SettlementTestSuite) notification(orderID uuid.UUID, eventType gateway.EventType, amount int64) *gateway.Notification {
	return &gateway.Notification{
		EventID:     "evt_001",
		Type:        eventType,
		OrderID:     orderID,
		AmountCents: amount,
		Raw:         []byte(`{"id":"evt_001"}`),
	}
}

func notFoundErr() error {
	return infra.WrapRepoErr("not found", nil, infra.KindNotFound)
}

func (s *SettlementTestSuite) TestSettle_Success() {
	ord, err := builder.NewOrderBuilder().WithAmount(2000).BuildDomain()
	s.Require().NoError(err)
	note := s.notification(ord.ID(), gateway.EventPaymentSucceeded, 2000)

	s.gateway.EXPECT().VerifyNotification(gomock.Any(), "sig").Return(note, nil)
	s.orders.EXPECT().FindByID(gomock.Any(), gomock.Any(), ord.ID()).Return(ord, nil)
	s.events.EXPECT().FindByEventID(gomock.Any(), gomock.Any(), "evt_001").Return(nil, notFoundErr())
	s.runInTx()
	s.events.EXPECT().Insert(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ repository.DBTX, ev *payment.Event) error {
			s.Equal("evt_001", ev.EventID())
			s.Equal(payment.StatusProcessed, ev.Status())
			s.Equal(int64(2000), ev.AmountCents())
			return nil
		})
	s.orders.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), ord.ID(),
		[]order.Status{order.StatusPending}, order.StatusPaid).Return(nil)
	s.notifications.EXPECT().CreateJob(gomock.Any(), gomock.Any(), "email", "invoice_requested",
		gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.sut.Settle(context.Background(), note.Raw, "sig")
	s.Require().NoError(err)
	s.Equal(commands.OutcomeProcessed, result.Outcome)
	s.Equal(ord.ID(), result.OrderID)
}

func (s *SettlementTestSuite) TestSettle_DuplicateEventIgnored() {
	ord, err := builder.NewOrderBuilder().BuildDomain()
	s.Require().NoError(err)
	note := s.notification(ord.ID(), gateway.EventPaymentSucceeded, 2000)

	existing, err := payment.NewProcessedEvent("evt_001", ord.ID(), payment.TypePaymentSucceeded,
		2000, note.Raw, time.Now())
	s.Require().NoError(err)

	s.gateway.EXPECT().VerifyNotification(gomock.Any(), "sig").Return(note, nil)
	s.orders.EXPECT().FindByID(gomock.Any(), gomock.Any(), ord.ID()).Return(ord, nil)
	s.events.EXPECT().FindByEventID(gomock.Any(), gomock.Any(), "evt_001").Return(existing, nil)
	// No transaction, no status update: the first delivery already settled.

	result, err := s.sut.Settle(context.Background(), note.Raw, "sig")
	s.Require().NoError(err)
	s.Equal(commands.OutcomeDuplicateIgnored, result.Outcome)
	s.Equal(ord.ID(), result.OrderID)
}

func (s *SettlementTestSuite) TestSettle_ConcurrentDuplicateAbsorbed() {
	ord, err := builder.NewOrderBuilder().BuildDomain()
	s.Require().NoError(err)
	note := s.notification(ord.ID(), gateway.EventPaymentSucceeded, 2000)

	s.gateway.EXPECT().VerifyNotification(gomock.Any(), "sig").Return(note, nil)
	s.orders.EXPECT().FindByID(gomock.Any(), gomock.Any(), ord.ID()).Return(ord, nil)
	s.events.EXPECT().FindByEventID(gomock.Any(), gomock.Any(), "evt_001").Return(nil, notFoundErr())
	// The racing delivery won the unique-key insert inside the transaction.
	s.tx.EXPECT().WithinTx(gomock.Any(), gomock.Any()).Return(
		infra.WrapRepoErr("payment event already recorded", nil, infra.KindDuplicateKey))

	result, err := s.sut.Settle(context.Background(), note.Raw, "sig")
	s.Require().NoError(err)
	s.Equal(commands.OutcomeDuplicateIgnored, result.Outcome)
}

func (s *SettlementTestSuite) TestSettle_AmountMismatchRejected() {
	ord, err := builder.NewOrderBuilder().WithAmount(2000).BuildDomain()
	s.Require().NoError(err)
	note := s.notification(ord.ID(), gateway.EventPaymentSucceeded, 1900)

	s.gateway.EXPECT().VerifyNotification(gomock.Any(), "sig").Return(note, nil)
	s.orders.EXPECT().FindByID(gomock.Any(), gomock.Any(), ord.ID()).Return(ord, nil)
	s.events.EXPECT().FindByEventID(gomock.Any(), gomock.Any(), "evt_001").Return(nil, notFoundErr())
	// The rejection is written outside any status transition.
	s.events.EXPECT().Insert(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ repository.DBTX, ev *payment.Event) error {
			s.Equal(payment.StatusRejected, ev.Status())
			s.Require().NotNil(ev.ErrorDetail())
			s.Equal("amount mismatch", *ev.ErrorDetail())
			return nil
		})

	_, err = s.sut.Settle(context.Background(), note.Raw, "sig")
	s.ErrorIs(err, commands.ErrAmountMismatch)
}

func (s *SettlementTestSuite) TestSettle_UnknownOrderRejected() {
	orderID := uuid.New()
	note := s.notification(orderID, gateway.EventPaymentSucceeded, 2000)

	s.gateway.EXPECT().VerifyNotification(gomock.Any(), "sig").Return(note, nil)
	s.orders.EXPECT().FindByID(gomock.Any(), gomock.Any(), orderID).Return(nil, notFoundErr())
	// No ledger row for a forged or premature notification.

	_, err := s.sut.Settle(context.Background(), note.Raw, "sig")
	s.ErrorIs(err, commands.ErrUnknownOrder)
}

func (s *SettlementTestSuite) TestSettle_MissingOrderIDRejected() {
	note := s.notification(uuid.Nil, gateway.EventPaymentSucceeded, 2000)

	s.gateway.EXPECT().VerifyNotification(gomock.Any(), "sig").Return(note, nil)

	_, err := s.sut.Settle(context.Background(), note.Raw, "sig")
	s.ErrorIs(err, commands.ErrUnknownOrder)
}

func (s *SettlementTestSuite) TestSettle_UnverifiableSignature() {
	s.gateway.EXPECT().VerifyNotification(gomock.Any(), "bad").Return(nil, gateway.ErrUnverifiable)

	_, err := s.sut.Settle(context.Background(), []byte(`{}`), "bad")
	s.ErrorIs(err, commands.ErrUnverifiableNotification)
}

func (s *SettlementTestSuite) TestSettle_LateEventAfterCancelAcknowledged() {
	ord, err := builder.NewOrderBuilder().WithAmount(2000).BuildDomain()
	s.Require().NoError(err)
	cancelled, err := builder.NewOrderBuilder().WithID(ord.ID()).WithAmount(2000).
		WithStatus(order.StatusCancelled).BuildDomain()
	s.Require().NoError(err)
	note := s.notification(ord.ID(), gateway.EventPaymentSucceeded, 2000)

	s.gateway.EXPECT().VerifyNotification(gomock.Any(), "sig").Return(note, nil)
	s.orders.EXPECT().FindByID(gomock.Any(), gomock.Any(), ord.ID()).Return(ord, nil)
	s.events.EXPECT().FindByEventID(gomock.Any(), gomock.Any(), "evt_001").Return(nil, notFoundErr())
	s.tx.EXPECT().WithinTx(gomock.Any(), gomock.Any()).Return(
		infra.WrapRepoErr("order status guard rejected transition", nil, infra.KindConflict))
	// The re-read shows the order was cancelled while the webhook was in
	// flight: ledger the late event and acknowledge instead of erroring, or
	// the source would redeliver forever.
	s.orders.EXPECT().FindByID(gomock.Any(), gomock.Any(), ord.ID()).Return(cancelled, nil)
	s.events.EXPECT().Insert(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ repository.DBTX, ev *payment.Event) error {
			s.Equal(payment.StatusRejected, ev.Status())
			s.Require().NotNil(ev.ErrorDetail())
			s.Equal("order already cancelled", *ev.ErrorDetail())
			return nil
		})

	result, err := s.sut.Settle(context.Background(), note.Raw, "sig")
	s.Require().NoError(err)
	s.Equal(commands.OutcomeIgnoredSettled, result.Outcome)
	s.Equal(ord.ID(), result.OrderID)
}

func (s *SettlementTestSuite) TestSettle_GuardConflictWhileStillPending() {
	ord, err := builder.NewOrderBuilder().WithAmount(2000).BuildDomain()
	s.Require().NoError(err)
	note := s.notification(ord.ID(), gateway.EventPaymentSucceeded, 2000)

	s.gateway.EXPECT().VerifyNotification(gomock.Any(), "sig").Return(note, nil)
	s.orders.EXPECT().FindByID(gomock.Any(), gomock.Any(), ord.ID()).Return(ord, nil)
	s.events.EXPECT().FindByEventID(gomock.Any(), gomock.Any(), "evt_001").Return(nil, notFoundErr())
	s.tx.EXPECT().WithinTx(gomock.Any(), gomock.Any()).Return(
		infra.WrapRepoErr("order status guard rejected transition", nil, infra.KindConflict))
	// Still pending on re-read: transient contention, surface the conflict
	// so the source retries.
	s.orders.EXPECT().FindByID(gomock.Any(), gomock.Any(), ord.ID()).Return(ord, nil)

	_, err = s.sut.Settle(context.Background(), note.Raw, "sig")
	s.ErrorIs(err, commands.ErrSettlementConflict)
}

func (s *SettlementTestSuite) TestSettle_PaymentFailedRecorded() {
	ord, err := builder.NewOrderBuilder().WithAmount(2000).BuildDomain()
	s.Require().NoError(err)
	note := s.notification(ord.ID(), gateway.EventPaymentFailed, 2000)

	s.gateway.EXPECT().VerifyNotification(gomock.Any(), "sig").Return(note, nil)
	s.orders.EXPECT().FindByID(gomock.Any(), gomock.Any(), ord.ID()).Return(ord, nil)
	s.events.EXPECT().FindByEventID(gomock.Any(), gomock.Any(), "evt_001").Return(nil, notFoundErr())
	s.runInTx()
	s.events.EXPECT().Insert(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.orders.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), ord.ID(),
		[]order.Status{order.StatusPending}, order.StatusFailed).Return(nil)

	result, err := s.sut.Settle(context.Background(), note.Raw, "sig")
	s.Require().NoError(err)
	s.Equal(commands.OutcomeFailureRecorded, result.Outcome)
}

func (s *SettlementTestSuite) TestSettle_UnknownEventTypeAcknowledged() {
	note := &gateway.Notification{
		EventID: "evt_002",
		Type:    gateway.EventType("charge.refunded"),
		OrderID: uuid.New(),
	}

	s.gateway.EXPECT().VerifyNotification(gomock.Any(), "sig").Return(note, nil)
	// Acknowledged without touching storage so the source stops redelivering.

	result, err := s.sut.Settle(context.Background(), []byte(`{}`), "sig")
	s.Require().NoError(err)
	s.Equal(commands.OutcomeIgnoredUnknown, result.Outcome)
}
