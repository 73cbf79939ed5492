package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/rodolfodevapp/eventshop-messaging-go/core/primitives"
)

// Incoming payloads

// ProductCreated (catalog.events). Only the fields the pool needs.
type ProductCreatedPayload struct {
	ProductID     uuid.UUID `json:"productId"`
	Sku           string    `json:"sku"`
	Name          string    `json:"name"`
	StockQuantity int64     `json:"stockQuantity"`
}

// OrderPlaced (orders.events)
type OrderPlacedPayload struct {
	OrderID uuid.UUID  `json:"orderId"`
	UserID  uuid.UUID  `json:"userId"`
	Lines   []CartLine `json:"lines"`
}

// OrderCancelled / OrderRejected (orders.events)
type OrderCancelledPayload struct {
	OrderID uuid.UUID `json:"orderId"`
	UserID  uuid.UUID `json:"userId"`
}

// Outgoing events

type StockReservedEvent struct {
	primitives.BaseEvent
	OrderID       uuid.UUID  `json:"orderId"`
	UserID        uuid.UUID  `json:"userId"`
	ReservedAtUtc time.Time  `json:"reservedAtUtc"`
	Lines         []CartLine `json:"lines"`
}

func NewStockReservedEvent(orderID, userID uuid.UUID, lines []CartLine) *StockReservedEvent {
	ev := &StockReservedEvent{
		BaseEvent:     primitives.NewBaseEvent(),
		OrderID:       orderID,
		UserID:        userID,
		ReservedAtUtc: time.Now().UTC(),
		Lines:         lines,
	}
	ev.SetRoutingKey("StockReserved")
	return ev
}

// StockReservationFailedEvent carries the outcome so consumers can tell a
// sold-out cart from an unknown sku.
type StockReservationFailedEvent struct {
	primitives.BaseEvent
	OrderID     uuid.UUID `json:"orderId"`
	UserID      uuid.UUID `json:"userId"`
	Outcome     string    `json:"outcome"`
	Reason      string    `json:"reason"`
	FailedAtUtc time.Time `json:"failedAtUtc"`
}

func NewStockReservationFailedEvent(orderID, userID uuid.UUID, outcome, reason string) *StockReservationFailedEvent {
	ev := &StockReservationFailedEvent{
		BaseEvent:   primitives.NewBaseEvent(),
		OrderID:     orderID,
		UserID:      userID,
		Outcome:     outcome,
		Reason:      reason,
		FailedAtUtc: time.Now().UTC(),
	}
	ev.SetRoutingKey("StockReservationFailed")
	return ev
}

type CatalogStockAdjustedEvent struct {
	primitives.BaseEvent
	Sku               string    `json:"sku"`
	AvailableQuantity int64     `json:"availableQuantity"`
	Reason            string    `json:"reason"`
	OccurredAtUtc     time.Time `json:"occurredAtUtc"`
}

func NewCatalogStockAdjustedEvent(sku string, available int64, reason string) *CatalogStockAdjustedEvent {
	ev := &CatalogStockAdjustedEvent{
		BaseEvent:         primitives.NewBaseEvent(),
		Sku:               sku,
		AvailableQuantity: available,
		Reason:            reason,
		OccurredAtUtc:     time.Now().UTC(),
	}
	ev.SetRoutingKey("CatalogStockAdjusted")
	return ev
}
