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

	"github.com/noah-isme/latemark-go-api/internal/dto"
	"github.com/noah-isme/latemark-go-api/internal/observability"
)

const feedBufferSize = 16

// FeedService broadcasts committed ledger mutations to connected faculty
// dashboards and fans them out across nodes via redis and NATS.
type FeedService interface {
	FeedPublisher
	Subscribe() (<-chan dto.LedgerEvent, func())
	Start(ctx context.Context)
}

type feedService struct {
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	broker      *feedBroker
	nodeID      string
}

type feedEnvelope struct {
	Source string          `json:"source"`
	Event  dto.LedgerEvent `json:"event"`
	SentAt time.Time       `json:"sent_at"`
}

type feedBroker struct {
	mu          sync.RWMutex
	subscribers map[chan dto.LedgerEvent]struct{}
}

// NewFeedService constructs the feed service. Both brokers are optional;
// with neither, events still reach subscribers on this node.
func NewFeedService(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) FeedService {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":feed"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".feed"
	}

	observability.RegisterMetrics()

	return &feedService{
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "feed_service").Logger(),
		broker: &feedBroker{
			subscribers: make(map[chan dto.LedgerEvent]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *feedService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// Publish delivers the event to local subscribers and forwards it to the
// cross-node brokers. Failures are logged and swallowed; the ledger
// mutation has already committed.
func (s *feedService) Publish(event dto.LedgerEvent) {
	observability.FeedEvents().WithLabelValues(event.Type).Inc()
	s.broker.broadcast(event)

	if s.redis == nil && s.nats == nil {
		return
	}

	envelope := feedEnvelope{
		Source: s.nodeID,
		Event:  event,
		SentAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode feed event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish feed event to redis")
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish feed event to nats")
		}
	}
}

func (s *feedService) Subscribe() (<-chan dto.LedgerEvent, func()) {
	channel := make(chan dto.LedgerEvent, feedBufferSize)

	s.broker.subscribe(channel)
	observability.FeedClients().Inc()

	cleanup := func() {
		s.broker.unsubscribe(channel)
		observability.FeedClients().Dec()
	}

	return channel, cleanup
}

func (s *feedService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("feed redis subscription closed")
			return
		}
		s.handleEnvelope([]byte(msg.Payload))
	}
}

func (s *feedService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "latemark-feed", func(msg *nats.Msg) {
		s.handleEnvelope(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats feed subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain feed nats subscription")
		}
	}()
}

func (s *feedService) handleEnvelope(payload []byte) {
	var envelope feedEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid feed event payload")
		return
	}

	if envelope.Source == s.nodeID {
		return
	}

	observability.FeedEvents().WithLabelValues(envelope.Event.Type).Inc()
	s.broker.broadcast(envelope.Event)
}

func (b *feedBroker) subscribe(ch chan dto.LedgerEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[ch] = struct{}{}
}

func (b *feedBroker) unsubscribe(ch chan dto.LedgerEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

func (b *feedBroker) broadcast(event dto.LedgerEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
