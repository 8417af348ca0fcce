package kafka

import (
	"context"
	"errors"

	"github.com/segmentio/kafka-go"
)

// Ping succeeds when any broker accepts a connection.
func Ping(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	var errs error
	for _, b := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", b)
		if err == nil {
			return conn.Close()
		}
		errs = errors.Join(errs, err)
	}
	return errs
}
