package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/proticket/marketplace-core/internal/clock"
	kafka "github.com/proticket/marketplace-core/internal/delivery/kafka"
	"github.com/proticket/marketplace-core/internal/delivery/kafka/producer"
	"github.com/proticket/marketplace-core/internal/domain"
	repo "github.com/proticket/marketplace-core/internal/repository/kv"
	"github.com/proticket/marketplace-core/pkg/kvstore"
	"github.com/proticket/marketplace-core/pkg/logger"
)

// OrderService orchestrates a purchase: reserve capacity through the
// inventory ledger, persist the confirmed order, mint its tickets, and
// compensate by releasing the reservation when any step after the reserve
// fails. An order is never left confirmed with a partial ticket set.
type OrderService interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderOutput, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListBuyerOrders(ctx context.Context, buyerID string) ([]domain.Order, error)
	ListOrderTickets(ctx context.Context, orderID string) ([]domain.Ticket, error)
}

type orderService struct {
	orders  repo.OrderRepository
	tickets repo.TicketRepository
	events  repo.EventRepository
	inv     InventoryService
	prod    producer.Producer
	signer  *qrSigner
	clk     clock.Clock
	l       logger.Logger
}

func NewOrderService(
	orders repo.OrderRepository,
	tickets repo.TicketRepository,
	events repo.EventRepository,
	inv InventoryService,
	prod producer.Producer,
	qrSecret string,
	clk clock.Clock,
	l logger.Logger,
) OrderService {
	return &orderService{
		orders:  orders,
		tickets: tickets,
		events:  events,
		inv:     inv,
		prod:    prod,
		signer:  newQRSigner(qrSecret),
		clk:     clk,
		l:       l,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderOutput, error) {
	if in.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if in.EventID == "" || in.BuyerID == "" {
		return nil, ErrValidation
	}

	// Duplicate submissions (double click, retry after timeout) carrying
	// the same idempotency key resolve to the first order instead of a
	// second reservation.
	if in.IdempotencyKey != "" {
		if out, err := s.findExisting(ctx, in); err != nil || out != nil {
			return out, err
		}
	}

	// Fail fast before touching the ledger.
	ev, err := s.events.Get(ctx, in.EventID)
	if err != nil {
		if errors.Is(err, repo.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	if !ev.IsActive() {
		return nil, ErrEventNotActive
	}

	orderID := uuid.New().String()
	confirmation, err := newConfirmationCode()
	if err != nil {
		return nil, err
	}

	if in.IdempotencyKey != "" {
		if err := s.orders.ClaimIdempotencyKey(ctx, in.BuyerID, in.IdempotencyKey, orderID); err != nil {
			if errors.Is(err, repo.ErrIdemKeyClaimed) {
				if out, err := s.findExisting(ctx, in); err != nil || out != nil {
					return out, err
				}
				// The winning submission is still in flight; the caller
				// can retry the whole operation shortly.
				return nil, kvstore.ErrConflict
			}
			return nil, err
		}
	}

	snapshot, err := s.inv.Reserve(ctx, in.EventID, in.Quantity)
	if err != nil {
		s.releaseClaim(ctx, in)
		return nil, err
	}

	now := s.clk.Now()
	order := domain.Order{
		ID:               orderID,
		EventID:          in.EventID,
		BuyerID:          in.BuyerID,
		BuyerName:        in.BuyerName,
		Quantity:         in.Quantity,
		TotalPrice:       int64(in.Quantity) * snapshot.UnitPrice,
		ConfirmationCode: confirmation,
		IdempotencyKey:   in.IdempotencyKey,
		Status:           domain.OrderStatusConfirmed,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.orders.Create(ctx, &order); err != nil {
		return nil, s.compensate(ctx, &order, fmt.Errorf("failed to persist order: %w", err))
	}

	tickets, err := s.issueTickets(ctx, &order)
	if err != nil {
		return nil, s.compensate(ctx, &order, err)
	}

	if err := s.orders.AddToBuyerIndex(ctx, in.BuyerID, order.ID); err != nil {
		s.l.Errorf(ctx, "orderService.CreateOrder: failed to index order %s: %v", order.ID, err)
	}

	if err := s.prod.PublishOrderConfirmed(ctx, kafka.OrderConfirmedEvent{
		OrderID:          order.ID,
		EventID:          order.EventID,
		BuyerID:          order.BuyerID,
		Quantity:         order.Quantity,
		TotalPrice:       order.TotalPrice,
		ConfirmationCode: order.ConfirmationCode,
		ConfirmedAt:      order.CreatedAt,
	}); err != nil {
		s.l.Errorf(ctx, "orderService.CreateOrder: failed to publish confirmation for %s: %v", order.ID, err)
	}

	s.l.Info(ctx, "Order confirmed",
		"order_id", order.ID,
		"event_id", order.EventID,
		"quantity", order.Quantity,
	)

	return &CreateOrderOutput{Order: order, Tickets: tickets}, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, repo.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}

func (s *orderService) ListBuyerOrders(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return s.orders.ListByBuyer(ctx, buyerID)
}

func (s *orderService) ListOrderTickets(ctx context.Context, orderID string) ([]domain.Ticket, error) {
	if _, err := s.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.tickets.ListByOrder(ctx, orderID)
}

func (s *orderService) findExisting(ctx context.Context, in CreateOrderInput) (*CreateOrderOutput, error) {
	existing, err := s.orders.GetByIdempotencyKey(ctx, in.BuyerID, in.IdempotencyKey)
	if err != nil {
		if errors.Is(err, repo.ErrOrderNotFound) {
			return nil, nil
		}
		return nil, err
	}

	tickets, err := s.tickets.ListByOrder(ctx, existing.ID)
	if err != nil {
		return nil, err
	}

	s.l.Infof(ctx, "Duplicate submission for order %s deduplicated by idempotency key", existing.ID)

	return &CreateOrderOutput{Order: *existing, Tickets: tickets}, nil
}

func (s *orderService) issueTickets(ctx context.Context, order *domain.Order) ([]domain.Ticket, error) {
	tickets := make([]domain.Ticket, 0, order.Quantity)

	for seq := 1; seq <= order.Quantity; seq++ {
		code := ticketCode(order.ConfirmationCode, seq)
		issuedAt := s.clk.Now()

		payload, err := s.signer.Sign(order.ID, code, seq, issuedAt)
		if err != nil {
			return nil, err
		}

		t := domain.Ticket{
			ID:              uuid.New().String(),
			OrderID:         order.ID,
			SequenceInOrder: seq,
			Code:            code,
			QRPayload:       payload,
			IssuedAt:        issuedAt,
		}

		if err := s.tickets.Create(ctx, &t); err != nil {
			return nil, fmt.Errorf("failed to issue ticket %d of %d: %w", seq, order.Quantity, err)
		}

		tickets = append(tickets, t)
	}

	return tickets, nil
}

// compensate unwinds a partially issued order: the order record is marked
// failed, issued tickets are removed, and the reservation is returned to
// the ledger. The cleanup runs on a detached context so an abandoned
// request cannot strand reserved capacity. A release failure is escalated
// as CompensationError and alerted for out-of-band reconciliation.
func (s *orderService) compensate(ctx context.Context, order *domain.Order, cause error) error {
	cleanupCtx := context.WithoutCancel(ctx)

	s.l.Warnf(cleanupCtx, "orderService.compensate: unwinding order %s: %v", order.ID, cause)

	if _, err := s.orders.Mutate(cleanupCtx, order.ID, func(o *domain.Order) error {
		o.Status = domain.OrderStatusFailed
		o.UpdatedAt = s.clk.Now()
		return nil
	}); err != nil && !errors.Is(err, repo.ErrOrderNotFound) {
		s.l.Errorf(cleanupCtx, "orderService.compensate: failed to mark order %s failed: %v", order.ID, err)
	}

	if err := s.tickets.DeleteByOrder(cleanupCtx, order.ID); err != nil {
		s.l.Errorf(cleanupCtx, "orderService.compensate: failed to remove tickets of %s: %v", order.ID, err)
	}

	// Free the idempotency claim so a retry of the same intent is not
	// answered with the failed order.
	if order.IdempotencyKey != "" {
		if err := s.orders.ReleaseIdempotencyKey(cleanupCtx, order.BuyerID, order.IdempotencyKey); err != nil {
			s.l.Errorf(cleanupCtx, "orderService.compensate: failed to release idempotency claim: %v", err)
		}
	}

	if err := s.inv.Release(cleanupCtx, order.EventID, order.Quantity); err != nil {
		compErr := &CompensationError{
			OrderID:  order.ID,
			EventID:  order.EventID,
			Quantity: order.Quantity,
			Err:      err,
		}

		s.l.Error(cleanupCtx, "Inventory release failed after broken issuance, reconciliation required",
			"order_id", order.ID,
			"event_id", order.EventID,
			"quantity", order.Quantity,
			"error", err,
		)

		if pubErr := s.prod.PublishReconciliationAlert(cleanupCtx, kafka.ReconciliationAlertEvent{
			OrderID:  order.ID,
			EventID:  order.EventID,
			Quantity: order.Quantity,
			Error:    err.Error(),
		}); pubErr != nil {
			s.l.Errorf(cleanupCtx, "orderService.compensate: failed to publish reconciliation alert: %v", pubErr)
		}

		return compErr
	}

	if err := s.prod.PublishOrderFailed(cleanupCtx, kafka.OrderFailedEvent{
		OrderID:  order.ID,
		EventID:  order.EventID,
		BuyerID:  order.BuyerID,
		Quantity: order.Quantity,
		Reason:   cause.Error(),
	}); err != nil {
		s.l.Errorf(cleanupCtx, "orderService.compensate: failed to publish order failed event: %v", err)
	}

	return cause
}

// releaseClaim frees an idempotency claim whose reservation never
// happened.
func (s *orderService) releaseClaim(ctx context.Context, in CreateOrderInput) {
	if in.IdempotencyKey == "" {
		return
	}

	cleanupCtx := context.WithoutCancel(ctx)
	if err := s.orders.ReleaseIdempotencyKey(cleanupCtx, in.BuyerID, in.IdempotencyKey); err != nil {
		s.l.Errorf(cleanupCtx, "orderService.releaseClaim: %v", err)
	}
}
