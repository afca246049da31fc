package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-activity-log/internal/dto"
	"github.com/noah-isme/gema-activity-log/internal/observability"
)

const activityStreamBufferSize = 32

// ActivityEventBus fans freshly recorded activities out to live subscribers,
// across nodes when Redis or NATS is configured.
type ActivityEventBus interface {
	Publish(ctx context.Context, activity dto.ActivityResponse)
	Subscribe() (<-chan dto.ActivityResponse, func())
	Start(ctx context.Context)
}

type activityEvent struct {
	Source   string               `json:"source"`
	Activity dto.ActivityResponse `json:"activity"`
	SentAt   time.Time            `json:"sent_at"`
}

type activityEventBus struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	nodeID       string

	mu          sync.RWMutex
	subscribers map[chan dto.ActivityResponse]struct{}
}

// NewActivityEventBus constructs the event bus. Both brokers are optional.
func NewActivityEventBus(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) ActivityEventBus {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":recorded"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".recorded"
	}
	// NATS takes precedence so remote nodes never see an event twice.
	if natsConn != nil {
		channel = ""
	}

	return &activityEventBus{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "activity_event_bus").Logger(),
		nodeID:       uuid.NewString(),
		subscribers:  make(map[chan dto.ActivityResponse]struct{}),
	}
}

func (b *activityEventBus) Start(ctx context.Context) {
	if b.redis != nil && b.redisChannel != "" {
		go b.consumeRedis(ctx)
	}
	if b.nats != nil && b.natsSubject != "" {
		b.consumeNATS(ctx)
	}
}

func (b *activityEventBus) Publish(ctx context.Context, activity dto.ActivityResponse) {
	b.broadcast(activity)

	if (b.redis == nil || b.redisChannel == "") && (b.nats == nil || b.natsSubject == "") {
		return
	}

	payload, err := json.Marshal(activityEvent{Source: b.nodeID, Activity: activity, SentAt: time.Now().UTC()})
	if err != nil {
		b.logger.Warn().Err(err).Msg("failed to encode activity event")
		return
	}

	if b.redis != nil && b.redisChannel != "" {
		if err := b.redis.Publish(ctx, b.redisChannel, payload).Err(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to publish activity event to redis")
		}
	}
	if b.nats != nil && b.natsSubject != "" {
		if err := b.nats.Publish(b.natsSubject, payload); err != nil {
			b.logger.Warn().Err(err).Msg("failed to publish activity event to nats")
		}
	}
}

func (b *activityEventBus) Subscribe() (<-chan dto.ActivityResponse, func()) {
	ch := make(chan dto.ActivityResponse, activityStreamBufferSize)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	observability.ActivityStreamClients().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, ch)
			close(ch)
			b.mu.Unlock()
			observability.ActivityStreamClients().Dec()
		})
	}
	return ch, cleanup
}

func (b *activityEventBus) broadcast(activity dto.ActivityResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- activity:
		default:
		}
	}
}

func (b *activityEventBus) consumeRedis(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, b.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			b.logger.Error().Err(err).Msg("activity redis subscription closed")
			return
		}
		b.handleEvent([]byte(msg.Payload))
	}
}

func (b *activityEventBus) consumeNATS(ctx context.Context) {
	sub, err := b.nats.Subscribe(b.natsSubject, func(msg *nats.Msg) {
		b.handleEvent(msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to nats activity subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain activity nats subscription")
		}
	}()
}

func (b *activityEventBus) handleEvent(payload []byte) {
	var event activityEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		b.logger.Warn().Err(err).Msg("invalid activity event payload")
		return
	}
	if event.Source == b.nodeID {
		return
	}
	b.broadcast(event.Activity)
}
