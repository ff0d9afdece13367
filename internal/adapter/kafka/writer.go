// Package kafka publishes issued products to the dissemination topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/hazard-services/internal/observability"
	"github.com/couchcryptid/hazard-services/internal/product"
)

// Writer produces issued products to a Kafka topic.
type Writer struct {
	writer  *kafkago.Writer
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewWriter creates a Kafka producer for the dissemination topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger, metrics *observability.Metrics) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger, metrics: metrics}
}

// Publish serializes and publishes a batch of issued products in a single
// WriteMessages call so a cycle's output lands together.
func (w *Writer) Publish(ctx context.Context, products []product.Issuance) error {
	if len(products) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(products))
	for i := range products {
		msg, err := serializeToMessage(products[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish products: %w", err)
	}
	if w.metrics != nil {
		for i := range products {
			w.metrics.ProductsIssued.WithLabelValues(products[i].ProductID).Inc()
		}
	}
	w.logger.Info("products disseminated", "count", len(products))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an issued product into a Kafka message keyed
// by product id and issuance so replays of the same issuance coalesce.
func serializeToMessage(p product.Issuance) (kafkago.Message, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize product %s: %w", p.ProductID, err)
	}
	return kafkago.Message{
		Key:   []byte(fmt.Sprintf("%s.%d", p.ProductID, p.IssueTime)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "product_id", Value: []byte(p.ProductID)},
			{Key: "site", Value: []byte(p.SiteID)},
			{Key: "mode", Value: []byte(p.Mode)},
		},
	}, nil
}
