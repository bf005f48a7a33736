package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/mwangikariuki/shopkit-backend/pkg/config"
	"github.com/mwangikariuki/shopkit-backend/pkg/db/models"
	"github.com/mwangikariuki/shopkit-backend/pkg/enums"
	"github.com/mwangikariuki/shopkit-backend/pkg/logger"
	"github.com/mwangikariuki/shopkit-backend/pkg/metrics"
	"github.com/mwangikariuki/shopkit-backend/pkg/outbox/registry"
)

const (
	relayJobName    = "outbox-publish"
	publishTimeout  = 15 * time.Second
	errorBackoffCap = 10 * time.Second
	backoffJitter   = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubsubPinger interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

// outboxStore is the slice of outbox.Repository the relay loop needs.
type outboxStore interface {
	ClaimBatch(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedIn(tx *gorm.DB, id uuid.UUID) error
	MarkFailedIn(tx *gorm.DB, id uuid.UUID, cause error) error
	MarkExhaustedIn(tx *gorm.DB, id uuid.UUID, cause error, attempts int) error
}

type deadLetterStore interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) topicResult
}

type topicResult interface {
	Get(context.Context) (string, error)
}

type publisherFor func(topic string) topicPublisher

// ServiceParams collects the relay's dependencies.
type ServiceParams struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           txRunner
	PubSub       pubsubPinger
	Store        outboxStore
	DeadLetters  deadLetterStore
	Resolver     eventResolver
	PublisherFor publisherFor
	Metrics      *metrics.JobMetrics
}

// Service drains outbox_events into Pub/Sub. Each drain claims a locked
// batch, publishes row by row, and records the outcome in the same
// transaction, so a crash mid-batch re-delivers rather than loses.
type Service struct {
	logg         *logger.Logger
	db           txRunner
	pubsub       pubsubPinger
	store        outboxStore
	deadLetters  deadLetterStore
	resolver     eventResolver
	publisherFor publisherFor
	jobMetrics   *metrics.JobMetrics
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Store == nil {
		return nil, errors.New("outbox store is required")
	}
	if params.DeadLetters == nil {
		return nil, errors.New("dead letter store is required")
	}
	if params.Resolver == nil {
		return nil, errors.New("event resolver is required")
	}

	forTopic := params.PublisherFor
	if forTopic == nil {
		forTopic = func(topic string) topicPublisher {
			return wrapPublisher(params.PubSub.Publisher(topic))
		}
	}

	outboxCfg := params.Config.Outbox
	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		pubsub:       params.PubSub,
		store:        params.Store,
		deadLetters:  params.DeadLetters,
		resolver:     params.Resolver,
		publisherFor: forTopic,
		jobMetrics:   params.Metrics,
		batchSize:    max(outboxCfg.BatchSize, 1),
		maxAttempts:  max(outboxCfg.MaxAttempts, 1),
		pollInterval: max(time.Duration(outboxCfg.PollIntervalMS), 1) * time.Millisecond,
	}, nil
}

// Run polls until the context is canceled. An idle poll sleeps one
// interval; consecutive batch errors back off exponentially with jitter,
// resetting after the first clean drain.
func (s *Service) Run(ctx context.Context) error {
	if err := s.checkDependencies(ctx); err != nil {
		return err
	}

	backoff := s.errorBackoff()
	for {
		start := time.Now()
		drained, err := s.drain(ctx)
		s.jobMetrics.ObserveDuration(relayJobName, time.Since(start))

		var pause time.Duration
		switch {
		case err != nil:
			s.jobMetrics.IncFailure(relayJobName)
			s.logg.Error(ctx, "outbox drain failed", err)
			next, stop := backoff.Next()
			if stop {
				next = errorBackoffCap
			}
			pause = next
		case drained == 0:
			s.jobMetrics.IncSuccess(relayJobName)
			backoff = s.errorBackoff()
			pause = s.pollInterval
		default:
			s.jobMetrics.IncSuccess(relayJobName)
			backoff = s.errorBackoff()
		}

		if pause > 0 {
			timer := time.NewTimer(pause)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (s *Service) errorBackoff() retry.Backoff {
	b := retry.NewExponential(s.pollInterval)
	b = retry.WithCappedDuration(errorBackoffCap, b)
	b = retry.WithJitter(backoffJitter, b)
	return b
}

func (s *Service) checkDependencies(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if err := s.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping: %w", err)
	}
	return nil
}

// drain claims and publishes one batch, returning how many rows it
// handled. Row-level failures are recorded and skipped; only bookkeeping
// errors abort the transaction.
func (s *Service) drain(ctx context.Context) (int, error) {
	handled := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		batch, err := s.store.ClaimBatch(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim batch: %w", err)
		}
		for _, event := range batch {
			if err := s.relay(ctx, tx, event); err != nil {
				return err
			}
			handled++
		}
		return nil
	})
	return handled, err
}

func (s *Service) relay(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	resolved, err := s.resolver.Resolve(event)
	if err != nil {
		return s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err)
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"outbox_id":  event.ID.String(),
		"event_type": string(event.EventType),
		"topic":      resolved.Descriptor.Topic,
	})

	err = s.publish(ctx, event, resolved)
	if err == nil {
		if markErr := s.store.MarkPublishedIn(tx, event.ID); markErr != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, markErr)
		}
		s.logg.Info(logCtx, "outbox event published")
		return nil
	}

	var permanent registry.NonRetryableError
	if errors.As(err, &permanent) {
		return s.deadLetter(logCtx, tx, event, enums.OutboxDLQReasonNonRetryable, err)
	}
	if event.AttemptCount+1 >= s.maxAttempts {
		return s.deadLetter(logCtx, tx, event, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("max publish attempts reached: %w", err))
	}

	s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "outbox publish failed, will retry")
	if markErr := s.store.MarkFailedIn(tx, event.ID, err); markErr != nil {
		return fmt.Errorf("mark failed %s: %w", event.ID, markErr)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publisherFor(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	result := pub.Publish(publishCtx, &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("nil publish result for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"outbox_id":    event.ID.String(),
		"event_type":   string(event.EventType),
		"error_reason": string(reason),
		"error":        cause.Error(),
	})
	s.logg.Warn(logCtx, "outbox event dead-lettered")

	message := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &message,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := s.deadLetters.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dead letter %s: %w", event.ID, err)
	}
	if err := s.store.MarkExhaustedIn(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark exhausted %s: %w", event.ID, err)
	}
	return nil
}

func wrapPublisher(p *gcppubsub.Publisher) topicPublisher {
	if p == nil {
		return nil
	}
	return gcpTopic{p}
}

type gcpTopic struct {
	p *gcppubsub.Publisher
}

func (t gcpTopic) Publish(ctx context.Context, msg *gcppubsub.Message) topicResult {
	return t.p.Publish(ctx, msg)
}
