package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/MrSnakeDoc/checkstore/internal/domain"
	"github.com/MrSnakeDoc/checkstore/internal/logger"
)

// NATSOptions configures the NATS subscription.
type NATSOptions struct {
	URL         string        // ex: "nats://127.0.0.1:4222"
	Subject     string        // ex: "checkstore.events"
	Buffer      int           // pending messages held by the client
	BatchSize   int           // max events per Next
	PollTimeout time.Duration // wait for the first event of a batch
}

// NATSSource receives events published on a subject.
type NATSSource struct {
	conn        *nats.Conn
	sub         *nats.Subscription
	msgs        chan *nats.Msg
	batchSize   int
	pollTimeout time.Duration
	logger      logger.Logger
}

// NewNATSSource connects and subscribes.
func NewNATSSource(opts NATSOptions, log logger.Logger) (*NATSSource, error) {
	if opts.Buffer <= 0 {
		opts.Buffer = 8192
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}

	nc, err := nats.Connect(opts.URL,
		nats.Name("checkstore"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", logger.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", logger.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	msgs := make(chan *nats.Msg, opts.Buffer)
	sub, err := nc.ChanSubscribe(opts.Subject, msgs)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe %s: %w", opts.Subject, err)
	}

	log.Info("subscribed to nats",
		logger.String("url", opts.URL),
		logger.String("subject", opts.Subject))

	return &NATSSource{
		conn:        nc,
		sub:         sub,
		msgs:        msgs,
		batchSize:   opts.BatchSize,
		pollTimeout: opts.PollTimeout,
		logger:      log,
	}, nil
}

// Next implements Source.
func (s *NATSSource) Next(ctx context.Context) ([]domain.Event, error) {
	return drain(ctx, s.msgs, s.batchSize, s.pollTimeout, s.logger)
}

// Close unsubscribes and drains the connection.
func (s *NATSSource) Close() error {
	if err := s.sub.Unsubscribe(); err != nil {
		s.logger.Warn("nats unsubscribe failed", logger.Error(err))
	}
	return s.conn.Drain()
}

// drain waits for one message, then takes what is already buffered up to batchSize.
func drain(ctx context.Context, msgs <-chan *nats.Msg, batchSize int, pollTimeout time.Duration, log logger.Logger) ([]domain.Event, error) {
	timer := time.NewTimer(pollTimeout)
	defer timer.Stop()

	var payloads [][]byte
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	case m := <-msgs:
		payloads = append(payloads, m.Data)
	}

	for len(payloads) < batchSize {
		select {
		case m := <-msgs:
			payloads = append(payloads, m.Data)
		default:
			return decodeAll(payloads, log), nil
		}
	}
	return decodeAll(payloads, log), nil
}
