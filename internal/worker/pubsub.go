package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Trigger job types.
const (
	JobTypeProbe       = "probe"
	JobTypeHealthCheck = "health_check"
)

var (
	// ErrUnknownJobType is returned for trigger messages with an unrecognised job type.
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrMalformedTrigger is returned for trigger messages that are not valid JSON.
	ErrMalformedTrigger = errors.New("malformed trigger message")
)

// healthCheckPoint is probed by health check triggers.
var healthCheckPoint = Point{Lat: 40.7128, Lon: -74.0060}

// TriggerMessage asks the worker to run a probe outside the schedule.
type TriggerMessage struct {
	JobType string `json:"job_type"`

	// Points overrides the configured probe points when set.
	Points []Point `json:"points,omitempty"`
}

// PubSubHandler runs probe jobs on Pub/Sub trigger messages.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	job              *ProbeJob
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Job              *ProbeJob
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	// Each message runs a full probe, so only a few are worked on at once.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 2
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		job:              cfg.Job,
		logger:           cfg.Logger,
	}, nil
}

// Start receives trigger messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	if err := HandleTrigger(ctx, h.job, logger, msg.Data); err != nil {
		// Malformed and unknown messages would fail forever on redelivery.
		if errors.Is(err, ErrUnknownJobType) || errors.Is(err, ErrMalformedTrigger) {
			logger.Warn().Err(err).Msg("dropping trigger message")
			msg.Ack()
			return
		}
		logger.Error().Err(err).Msg("trigger failed")
		msg.Nack()
		return
	}
	msg.Ack()
}

// HandleTrigger decodes a trigger message and runs the requested job.
func HandleTrigger(ctx context.Context, job *ProbeJob, logger zerolog.Logger, data []byte) error {
	var trigger TriggerMessage
	if err := json.Unmarshal(data, &trigger); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedTrigger, err)
	}

	start := time.Now()
	var result *ProbeResult
	switch trigger.JobType {
	case JobTypeProbe:
		if len(trigger.Points) > 0 {
			result = job.RunPoints(ctx, trigger.Points)
		} else {
			result = job.Run(ctx)
		}
		// Half the points failing outright means the engine itself is broken.
		if result.Failed > result.Successful {
			return fmt.Errorf("too many probe failures: %d/%d", result.Failed, result.TotalPoints)
		}
	case JobTypeHealthCheck:
		result = job.RunPoints(ctx, []Point{healthCheckPoint})
		if result.Failed > 0 {
			return fmt.Errorf("health check failed: %s", result.Errors[0].Error)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJobType, trigger.JobType)
	}

	logger.Info().
		Str("job_type", trigger.JobType).
		Dur("duration", time.Since(start)).
		Int("points", result.TotalPoints).
		Msg("trigger completed")
	return nil
}
