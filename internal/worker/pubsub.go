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

// Job types carried by JobMessage.
const (
	JobSnapshotRebuild = "snapshot_rebuild"
	JobDeviationSweep  = "deviation_sweep"
	JobHealthCheck     = "health_check"
)

// ErrMalformedMessage is returned for payloads that are not a JobMessage.
var ErrMalformedMessage = errors.New("malformed job message")

// JobMessage is the payload published to the worker subscription.
type JobMessage struct {
	JobType string `json:"job_type"`
	Reason  string `json:"reason,omitempty"`
}

// Dispatcher runs the job named by a message payload.
type Dispatcher struct {
	rebuild *RebuildJob
	monitor *DeviationMonitor
	logger  zerolog.Logger
}

// NewDispatcher creates a dispatcher. monitor may be nil, in which case sweep jobs fail.
func NewDispatcher(rebuild *RebuildJob, monitor *DeviationMonitor, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{rebuild: rebuild, monitor: monitor, logger: logger}
}

// Handle parses data and runs the job. Unknown job types are logged and return nil
// so they are acknowledged.
func (d *Dispatcher) Handle(ctx context.Context, data []byte) (string, error) {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", fmt.Errorf("%w: %s", ErrMalformedMessage, err.Error())
	}

	switch msg.JobType {
	case JobSnapshotRebuild:
		return msg.JobType, d.handleRebuild(ctx, msg)
	case JobDeviationSweep:
		return msg.JobType, d.handleSweep(ctx)
	case JobHealthCheck:
		return msg.JobType, d.handleHealthCheck(ctx)
	default:
		d.logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return msg.JobType, nil
	}
}

func (d *Dispatcher) handleRebuild(ctx context.Context, msg JobMessage) error {
	reason := msg.Reason
	if reason == "" {
		reason = "pubsub"
	}
	return d.rebuild.Run(ctx, reason).Err
}

func (d *Dispatcher) handleSweep(ctx context.Context) error {
	if d.monitor == nil {
		return errors.New("deviation monitor not configured")
	}
	return d.monitor.Sweep(ctx).Err
}

// handleHealthCheck verifies a snapshot is in effect, loading one if the worker
// started without it.
func (d *Dispatcher) handleHealthCheck(ctx context.Context) error {
	d.logger.Debug().Msg("running health check")

	if d.rebuild.Ready() {
		d.logger.Debug().Msg("health check passed")
		return nil
	}

	if err := d.rebuild.Run(ctx, "health_check").Err; err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Rebuilds are heavy; keep few in flight.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 2
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
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
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	jobType, err := h.dispatcher.Handle(ctx, msg.Data)
	if err != nil {
		logger.Error().Err(err).Str("job_type", jobType).Msg("job failed")
		msg.Nack()
		return
	}

	logger.Info().
		Str("job_type", jobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")

	msg.Ack()
}
