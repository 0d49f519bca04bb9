// Package kafka builds Kafka clients from configuration.
package kafka

import (
	"crypto/tls"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"go.uber.org/zap"
)

// Options configures a writer
type Options struct {
	Brokers []string
	Topic   string
	// APIKey and APISecret enable SASL/PLAIN over TLS (Confluent Cloud).
	APIKey    string
	APISecret string
}

// NewWriter returns an async writer for opts.Topic. Delivery failures are
// reported to logger since WriteMessages does not wait for the broker.
func NewWriter(opts Options, logger *zap.Logger) *kafka.Writer {
	transport := &kafka.Transport{
		DialTimeout: 10 * time.Second,
	}

	// Only configure SASL/TLS if credentials are provided
	if opts.APIKey != "" && opts.APISecret != "" {
		transport.SASL = plain.Mechanism{
			Username: opts.APIKey,
			Password: opts.APISecret,
		}
		transport.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return &kafka.Writer{
		Addr:         kafka.TCP(opts.Brokers...),
		Topic:        opts.Topic,
		Balancer:     &kafka.Hash{},
		Transport:    transport,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("Kafka delivery failed", zap.String("topic", opts.Topic), zap.Int("messages", len(messages)), zap.Error(err))
			}
		},
	}
}
