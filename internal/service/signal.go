package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/totegamma/diamond-portal/internal/domain"
)

type SignalService struct {
	rdb     *redis.Client
	channel string
}

func NewSignalService(redisClient *redis.Client, channel string) *SignalService {
	return &SignalService{
		rdb:     redisClient,
		channel: channel,
	}
}

func (s *SignalService) PublishRegistryEvent(ctx context.Context, event domain.RegistryEvent) error {
	ctx, span := tracer.Start(ctx, "Signal.Service.PublishRegistryEvent")
	defer span.End()

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, s.channel, jsonstr).Err()
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "failed to publish registry event")
	}

	return nil
}

// Realtime forwards registry events to output until ctx is done.
func (s *SignalService) Realtime(ctx context.Context, output chan<- domain.RegistryEvent) {
	pubsub := s.rdb.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			var event domain.RegistryEvent
			err := json.Unmarshal([]byte(msg.Payload), &event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Failed to decode registry event",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				continue
			}

			select {
			case output <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}
