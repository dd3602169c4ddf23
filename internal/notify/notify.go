// Package notify carries processing status events from worker processes to the
// API server over Redis pub/sub, where the WebSocket hub fans them out.
package notify

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/clearwave/api/internal/model"
)

const channel = "clearwave:file-events"

// Publisher emits status events. Publishing is best-effort: a lost event only
// delays a subscriber until their next poll, so failures are logged, not
// propagated into the job.
type Publisher struct {
	redis *redis.Client
	log   *logrus.Logger
}

func NewPublisher(redisClient *redis.Client, log *logrus.Logger) *Publisher {
	return &Publisher{redis: redisClient, log: log}
}

func (p *Publisher) Publish(ctx context.Context, event *model.StatusEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.log.WithError(err).Error("marshal status event")
		return
	}
	if err := p.redis.Publish(ctx, channel, data).Err(); err != nil {
		p.log.WithError(err).Warn("publish status event")
	}
}

// EventSink is where relayed events land; satisfied by the WebSocket hub.
type EventSink interface {
	BroadcastEvent(fileID string, event *model.StatusEvent)
}

// Relay subscribes to the event channel and forwards everything to the sink.
// Blocks until ctx is canceled; run it on its own goroutine.
func Relay(ctx context.Context, redisClient *redis.Client, sink EventSink, log *logrus.Logger) {
	sub := redisClient.Subscribe(ctx, channel)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			var event model.StatusEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.WithError(err).Warn("decode status event")
				continue
			}
			sink.BroadcastEvent(strconv.FormatInt(event.FileID, 10), &event)
		}
	}
}
