// Package queue delivers batches of monitoring events to the host loop.
package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/MrSnakeDoc/checkstore/internal/domain"
	"github.com/MrSnakeDoc/checkstore/internal/logger"
	"github.com/MrSnakeDoc/checkstore/internal/metrics"
)

// Source yields event batches. Next blocks until at least one event is
// available or its poll timeout elapses, in which case it returns an empty batch.
type Source interface {
	Next(ctx context.Context) ([]domain.Event, error)
	Close() error
}

type wireEvent struct {
	Type string           `json:"type"`
	Data domain.EventData `json:"data"`
}

// Decode parses one JSON event. Unknown types fail with domain.ErrUnknownKind.
func Decode(payload []byte) (domain.Event, error) {
	var w wireEvent
	if err := json.Unmarshal(payload, &w); err != nil {
		return domain.Event{}, fmt.Errorf("decode event: %w", err)
	}
	kind, err := domain.ParseKind(w.Type)
	if err != nil {
		return domain.Event{}, err
	}
	return domain.Event{Kind: kind, Data: w.Data}, nil
}

// decodeAll keeps the events that decode, logging and counting the others.
func decodeAll(payloads [][]byte, log logger.Logger) []domain.Event {
	events := make([]domain.Event, 0, len(payloads))
	for _, p := range payloads {
		ev, err := Decode(p)
		if err != nil {
			reason := "decode"
			if errors.Is(err, domain.ErrUnknownKind) {
				reason = "unknown_kind"
			}
			metrics.EventsRejected.WithLabelValues(reason).Inc()
			log.Warn("dropping event", logger.String("reason", reason), logger.Error(err))
			continue
		}
		events = append(events, ev)
	}
	return events
}
