package orders

import (
	"context"

	kafkax "github.com/ariefcatur/go-storefront-checkout/internal/kafka"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

type MessageProducer interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

// KafkaPublisher writes order events to the order_created topic.
type KafkaPublisher struct {
	Producer    MessageProducer
	ServiceName string
}

func (p *KafkaPublisher) PublishOrderCreated(ctx context.Context, ev OrderCreatedEvent) error {
	return p.Producer.Publish(ctx,
		PartitionKey(ev.OrderID),
		kafkax.MustMarshal(ev),
		kafkago.Header{Key: HeaderEventID, Value: []byte(uuid.NewString())},
		kafkago.Header{Key: HeaderEventType, Value: []byte(EventOrderCreated)},
		kafkago.Header{Key: HeaderEventVersion, Value: []byte(EventVersion)},
		kafkago.Header{Key: HeaderProducer, Value: []byte(p.ServiceName)},
	)
}
