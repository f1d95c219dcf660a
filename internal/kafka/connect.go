// Package kafka configures broker access for the audit event stream.
package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"go.uber.org/zap"
)

// Config holds the broker list and the optional SASL/PLAIN credentials.
type Config struct {
	Brokers  []string
	Username string
	Password string
}

// secure reports whether SASL and TLS should be used
func (c Config) secure() bool {
	return c.Username != "" && c.Password != ""
}

// NewDialer returns a dialer for broker connections. SASL/TLS is configured
// only when credentials are provided.
func NewDialer(cfg Config) *kafka.Dialer {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	if cfg.secure() {
		dialer.SASLMechanism = plain.Mechanism{Username: cfg.Username, Password: cfg.Password}
		dialer.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return dialer
}

// NewTransport returns the writer transport matching NewDialer.
func NewTransport(cfg Config) *kafka.Transport {
	transport := &kafka.Transport{
		DialTimeout: 10 * time.Second,
		ClientID:    "user-admin-backend",
	}
	if cfg.secure() {
		transport.SASL = plain.Mechanism{Username: cfg.Username, Password: cfg.Password}
		transport.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return transport
}

// WaitForBroker dials the first broker until it answers or attempts run out.
func WaitForBroker(ctx context.Context, cfg Config, attempts int, wait time.Duration, logger *zap.Logger) error {
	if len(cfg.Brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	if attempts < 1 {
		attempts = 1
	}

	dialer := NewDialer(cfg)
	var err error
	for i := 1; i <= attempts; i++ {
		logger.Info("Kafka connection attempt",
			zap.Int("attempt", i),
			zap.Int("of", attempts),
			zap.String("broker", cfg.Brokers[0]))

		var conn *kafka.Conn
		conn, err = dialer.DialContext(ctx, "tcp", cfg.Brokers[0])
		if err == nil {
			_ = conn.Close()
			return nil
		}

		if i < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return fmt.Errorf("kafka broker %s unreachable: %w", cfg.Brokers[0], err)
}
