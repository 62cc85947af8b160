package worker

import (
	"context"
	"log"

	"freshmarket/internal/broker"
	"freshmarket/internal/models"
	"freshmarket/internal/redisclient"
	"freshmarket/internal/service"
)

// OrderEventsWorker consumes order lifecycle events and drops the cached
// dashboard stats so the next read recomputes them.
type OrderEventsWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewOrderEventsWorker creates a worker bound to the stats cache
func NewOrderEventsWorker(consumer *broker.Consumer, cache *redisclient.Client) *OrderEventsWorker {
	eventHandler := broker.NewEventHandler()

	invalidate := func(ctx context.Context) error {
		return cache.Invalidate(ctx, service.StatsSummaryCacheKey, service.StatsTrendCacheKey)
	}

	eventHandler.OnOrderPlaced(func(ctx context.Context, event *models.OrderPlacedEvent) error {
		log.Printf("Order placed, invalidating stats cache: order_id=%d", event.OrderID)
		return invalidate(ctx)
	})
	eventHandler.OnOrderConfirmed(func(ctx context.Context, event *models.OrderConfirmedEvent) error {
		log.Printf("Order confirmed, invalidating stats cache: order_id=%d", event.OrderID)
		return invalidate(ctx)
	})

	return &OrderEventsWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *OrderEventsWorker) Start(ctx context.Context) error {
	log.Println("Starting order events worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *OrderEventsWorker) Stop() error {
	log.Println("Stopping order events worker...")
	return w.consumer.Close()
}
