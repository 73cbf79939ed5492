package messaging

import (
	"context"

	"github.com/pkg/errors"
	messaging "github.com/rodolfodevapp/eventshop-messaging-go/rabbitmq"

	"github.com/RodolfoDevApp/eventshop-stocklock-go/internal/application"
)

const (
	prefetch     = 32
	retryDelayMs = 30000
)

type Buses struct {
	Orders   *messaging.RabbitMqEventBus
	Catalog  *messaging.RabbitMqEventBus
	Producer *messaging.RabbitMqEventBus
}

// NewBuses builds the consumers for orders.events and catalog.events and
// the producer for inventory.events.
func NewBuses(rabbitUri, queuePrefix string) Buses {
	opts := func(exchange, prefix string) messaging.RabbitMqOptions {
		return messaging.RabbitMqOptions{
			URI:          rabbitUri,
			ExchangeName: exchange,
			QueuePrefix:  prefix,
			Prefetch:     prefetch,
			RetryDelayMs: retryDelayMs,
		}
	}
	return Buses{
		Orders:   messaging.NewRabbitMqEventBus(opts("orders.events", queuePrefix+".orders-events.v1"), nil, nil),
		Catalog:  messaging.NewRabbitMqEventBus(opts("catalog.events", queuePrefix+".catalog-events.v1"), nil, nil),
		Producer: messaging.NewRabbitMqEventBus(opts("inventory.events", queuePrefix+".dispatcher.v1"), nil, nil),
	}
}

func RegisterOrderSubscriptions(
	ctx context.Context,
	bus *messaging.RabbitMqEventBus,
	orderPlaced application.EventHandler,
	orderCancelled application.EventHandler,
) error {
	bus.Subscribe("OrderPlacedEvent", orderPlaced)
	bus.Subscribe("OrderCancelledEvent", orderCancelled)
	bus.Subscribe("OrderRejectedEvent", orderCancelled)

	return errors.Wrap(bus.StartConsumers(ctx), "start orders consumers")
}

func RegisterCatalogSubscriptions(
	ctx context.Context,
	bus *messaging.RabbitMqEventBus,
	productCreated application.EventHandler,
) error {
	bus.Subscribe("ProductCreated", productCreated)

	return errors.Wrap(bus.StartConsumers(ctx), "start catalog consumers")
}
