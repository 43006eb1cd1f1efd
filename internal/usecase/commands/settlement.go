package commands

import (
	"context"
	"encoding/json"
	"log/slog"

	"marketlink/internal/domain/order"
	"marketlink/internal/domain/payment"
	"marketlink/internal/gateway"
	"marketlink/internal/infra"
	"marketlink/internal/infra/repository"
	"marketlink/internal/pkg/clock"
	"marketlink/internal/pkg/errs"

	"github.com/google/uuid"
)

var (
	ErrUnverifiableNotification = errs.New("notification could not be verified")
	ErrUnknownOrder             = errs.New("notification references unknown order")
	ErrAmountMismatch           = errs.New("declared amount does not match order total")
	ErrSettlementConflict       = errs.New("order not in a settleable state")
)

type SettlementOutcome string

const (
	OutcomeProcessed        SettlementOutcome = "processed"
	OutcomeDuplicateIgnored SettlementOutcome = "duplicate_ignored"
	OutcomeFailureRecorded  SettlementOutcome = "failure_recorded"
	OutcomeIgnoredUnknown   SettlementOutcome = "ignored_unknown_type"
	OutcomeIgnoredSettled   SettlementOutcome = "ignored_already_settled"
)

const (
	topicInvoiceRequested = "invoice_requested"
)

type SettlementResult struct {
	Outcome SettlementOutcome
	OrderID uuid.UUID
}

type SettlementCommands interface {
	Settle(ctx context.Context, rawBody []byte, signatureHeader string) (*SettlementResult, error)
}

type settlementCommandsImpl struct {
	gateway       gateway.PaymentGateway
	orders        OrderRepository
	events        PaymentEventRepository
	notifications NotificationRepository
	tx            TxRunner
	db            repository.DBTX
	clock         clock.Clock
}

func NewSettlementCommands(
	gw gateway.PaymentGateway,
	orders OrderRepository,
	events PaymentEventRepository,
	notifications NotificationRepository,
	tx TxRunner,
	db repository.DBTX,
	clk clock.Clock,
) SettlementCommands {
	return &settlementCommandsImpl{
		gateway:       gw,
		orders:        orders,
		events:        events,
		notifications: notifications,
		tx:            tx,
		db:            db,
		clock:         clk,
	}
}

// Settle absorbs at-least-once webhook delivery. Verification fails closed;
// unknown event types are acknowledged without a ledger row so the source
// stops redelivering them.
func (s *settlementCommandsImpl) Settle(ctx context.Context, rawBody []byte, signatureHeader string) (*SettlementResult, error) {
	note, err := s.gateway.VerifyNotification(rawBody, signatureHeader)
	if err != nil {
		return nil, errs.Mark(err, ErrUnverifiableNotification)
	}

	switch note.Type {
	case gateway.EventPaymentSucceeded:
		return s.applyPaymentSucceeded(ctx, note)
	case gateway.EventPaymentFailed:
		return s.applyPaymentFailed(ctx, note)
	default:
		slog.Info("unhandled notification type acknowledged", "event_id", note.EventID, "type", string(note.Type))
		return &SettlementResult{Outcome: OutcomeIgnoredUnknown}, nil
	}
}

func (s *settlementCommandsImpl) applyPaymentSucceeded(ctx context.Context, note *gateway.Notification) (*SettlementResult, error) {
	ord, err := s.lookupOrder(ctx, note)
	if err != nil {
		return nil, err
	}

	// Fast path for redelivery: the source retries until it sees success, so
	// a known event id is success, not an error.
	existing, err := s.events.FindByEventID(ctx, s.db, note.EventID)
	if err != nil && !infra.IsKind(err, infra.KindNotFound) {
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	if existing != nil {
		slog.Warn("duplicate payment notification ignored", "event_id", note.EventID, "order_id", existing.OrderID())
		return &SettlementResult{Outcome: OutcomeDuplicateIgnored, OrderID: existing.OrderID()}, nil
	}

	if err := ord.VerifyDeclaredAmount(note.AmountCents); err != nil {
		return nil, s.recordRejection(ctx, note, ord)
	}

	return s.commitSettlement(ctx, note, ord)
}

// commitSettlement writes the processed ledger row, the pending→paid
// transition and the invoice job as one atomic unit: a crash between them
// cannot leave a processed event with no matching order state, or vice versa.
func (s *settlementCommandsImpl) commitSettlement(ctx context.Context, note *gateway.Notification, ord *order.Order) (*SettlementResult, error) {
	ev, err := payment.NewProcessedEvent(note.EventID, ord.ID(), payment.TypePaymentSucceeded,
		note.AmountCents, note.Raw, s.clock.Now())
	if err != nil {
		return nil, err
	}

	invoicePayload, err := json.Marshal(map[string]any{
		"order_id": ord.ID(),
		"type":     topicInvoiceRequested,
	})
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(tx repository.DBTX) error {
		if err := s.events.Insert(ctx, tx, ev); err != nil {
			return err
		}
		if err := s.orders.UpdateStatus(ctx, tx, ord.ID(), []order.Status{order.StatusPending}, order.StatusPaid); err != nil {
			return err
		}
		return s.notifications.CreateJob(ctx, tx, "email", topicInvoiceRequested, invoicePayload, s.clock.Now())
	})
	if err != nil {
		// A racing duplicate lost the unique-key race after our existence
		// check; its writer owns the transition, we report convergence.
		if infra.IsKind(err, infra.KindDuplicateKey) {
			slog.Warn("concurrent duplicate settlement absorbed", "event_id", note.EventID, "order_id", ord.ID())
			return &SettlementResult{Outcome: OutcomeDuplicateIgnored, OrderID: ord.ID()}, nil
		}
		if infra.IsKind(err, infra.KindConflict) {
			return s.resolveGuardConflict(ctx, note, ord, payment.TypePaymentSucceeded, err)
		}
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}

	slog.Info("order settled", "order_id", ord.ID(), "event_id", note.EventID)

	return &SettlementResult{Outcome: OutcomeProcessed, OrderID: ord.ID()}, nil
}

// recordRejection commits a rejected ledger row and leaves the order
// untouched; an amount mismatch is never silently accepted.
func (s *settlementCommandsImpl) recordRejection(ctx context.Context, note *gateway.Notification, ord *order.Order) error {
	slog.Error("settlement amount mismatch",
		"order_id", ord.ID(),
		"event_id", note.EventID,
		"expected_cents", ord.TotalAmountCents(),
		"declared_cents", note.AmountCents)

	ev, err := payment.NewRejectedEvent(note.EventID, ord.ID(), payment.TypePaymentSucceeded,
		note.AmountCents, note.Raw, "amount mismatch", s.clock.Now())
	if err != nil {
		return err
	}

	if err := s.events.Insert(ctx, s.db, ev); err != nil {
		if infra.IsKind(err, infra.KindDuplicateKey) {
			// Redelivered mismatch; the original rejected row stands.
			return ErrAmountMismatch
		}
		return errs.Mark(err, ErrDatabaseOperationFailed)
	}

	return ErrAmountMismatch
}

func (s *settlementCommandsImpl) applyPaymentFailed(ctx context.Context, note *gateway.Notification) (*SettlementResult, error) {
	ord, err := s.lookupOrder(ctx, note)
	if err != nil {
		return nil, err
	}

	existing, err := s.events.FindByEventID(ctx, s.db, note.EventID)
	if err != nil && !infra.IsKind(err, infra.KindNotFound) {
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}
	if existing != nil {
		return &SettlementResult{Outcome: OutcomeDuplicateIgnored, OrderID: existing.OrderID()}, nil
	}

	ev, err := payment.NewProcessedEvent(note.EventID, ord.ID(), payment.TypePaymentFailed,
		note.AmountCents, note.Raw, s.clock.Now())
	if err != nil {
		return nil, err
	}

	// Stock is deliberately not restored here; restitution is a scheduled
	// reconciliation concern outside this path.
	err = s.tx.WithinTx(ctx, func(tx repository.DBTX) error {
		if err := s.events.Insert(ctx, tx, ev); err != nil {
			return err
		}
		return s.orders.UpdateStatus(ctx, tx, ord.ID(), []order.Status{order.StatusPending}, order.StatusFailed)
	})
	if err != nil {
		if infra.IsKind(err, infra.KindDuplicateKey) {
			return &SettlementResult{Outcome: OutcomeDuplicateIgnored, OrderID: ord.ID()}, nil
		}
		if infra.IsKind(err, infra.KindConflict) {
			return s.resolveGuardConflict(ctx, note, ord, payment.TypePaymentFailed, err)
		}
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}

	slog.Warn("order marked failed from gateway notification", "order_id", ord.ID(), "event_id", note.EventID)

	return &SettlementResult{Outcome: OutcomeFailureRecorded, OrderID: ord.ID()}, nil
}

// resolveGuardConflict disambiguates a lost status guard the same way the
// order commands do: re-read for a definitive state. A terminal order means
// the settlement already happened under another event id, so the late
// notification gets a rejected ledger row and an acknowledgement; returning
// the conflict there would make the source redeliver forever.
func (s *settlementCommandsImpl) resolveGuardConflict(ctx context.Context, note *gateway.Notification, ord *order.Order, evType payment.EventType, guardErr error) (*SettlementResult, error) {
	reread, err := s.orders.FindByID(ctx, s.db, ord.ID())
	if err != nil {
		return nil, errs.Mark(guardErr, ErrSettlementConflict)
	}
	if reread.Status() == order.StatusPending {
		// Still pending yet the guard lost: transient contention, retryable.
		return nil, errs.Mark(guardErr, ErrSettlementConflict)
	}

	ev, err := payment.NewRejectedEvent(note.EventID, ord.ID(), evType,
		note.AmountCents, note.Raw, "order already "+reread.Status().String(), s.clock.Now())
	if err != nil {
		return nil, err
	}
	if insErr := s.events.Insert(ctx, s.db, ev); insErr != nil && !infra.IsKind(insErr, infra.KindDuplicateKey) {
		return nil, errs.Mark(insErr, ErrDatabaseOperationFailed)
	}

	slog.Warn("late notification for settled order acknowledged",
		"event_id", note.EventID, "order_id", ord.ID(), "status", reread.Status().String())

	return &SettlementResult{Outcome: OutcomeIgnoredSettled, OrderID: ord.ID()}, nil
}

// lookupOrder rejects forged or premature notifications before any ledger
// row exists for them.
func (s *settlementCommandsImpl) lookupOrder(ctx context.Context, note *gateway.Notification) (*order.Order, error) {
	if note.OrderID == uuid.Nil {
		return nil, ErrUnknownOrder
	}

	ord, err := s.orders.FindByID(ctx, s.db, note.OrderID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			slog.Error("notification references non-existent order", "event_id", note.EventID, "order_id", note.OrderID)
			return nil, ErrUnknownOrder
		}
		return nil, errs.Mark(err, ErrDatabaseOperationFailed)
	}

	return ord, nil
}
