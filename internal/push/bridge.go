package push

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/denizrest/selforder/internal/observability"
)

// Bridge forwards broker events to the websocket hub. Routing keys map to
// the message types the browser code switches on.
type Bridge struct {
	hub    *Hub
	logger observability.Logger
}

func NewBridge(hub *Hub, logger observability.Logger) *Bridge {
	return &Bridge{hub: hub, logger: logger}
}

var messageTypes = map[string]string{
	"order.created":   "new_order",
	"order.updated":   "order_updated",
	"order.cancelled": "order_updated",
	"call.created":    "waiter_call",
	"call.updated":    "waiter_call",
	"content.updated": "content_updated",
}

// Run consumes deliveries until the channel closes or ctx is done. Unknown
// routing keys are acked and dropped so a new producer cannot wedge the
// queue.
func (b *Bridge) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			b.handle(d)
		}
	}
}

func (b *Bridge) handle(d amqp.Delivery) {
	msgType, ok := messageTypes[d.RoutingKey]
	if !ok {
		b.logger.WithField("routing_key", d.RoutingKey).Warn("unknown event, dropping")
		d.Ack(false)
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(d.Body, &payload); err != nil {
		b.logger.WithField("routing_key", d.RoutingKey).Error("malformed event payload", err)
		d.Nack(false, false)
		return
	}

	b.hub.Broadcast(msgType, payload)
	d.Ack(false)
}
