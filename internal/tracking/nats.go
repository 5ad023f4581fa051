package tracking

import (
	"fmt"
	"sync/atomic"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSConfig holds configuration for the NATS subscriber.
type NATSConfig struct {
	URL     string
	Subject string
	Tracker *Tracker
	Logger  zerolog.Logger
}

// Ingestor decodes position messages into a Tracker.
type Ingestor struct {
	tracker *Tracker
	logger  zerolog.Logger

	received atomic.Int64
	rejected atomic.Int64
}

// NewIngestor creates an ingestor recording into tracker.
func NewIngestor(tracker *Tracker, logger zerolog.Logger) *Ingestor {
	return &Ingestor{tracker: tracker, logger: logger}
}

// Handle decodes one message and records its fixes.
func (in *Ingestor) Handle(msg *nats.Msg) {
	var contentType string
	if msg.Header != nil {
		contentType = msg.Header.Get("Content-Type")
	}

	fixes, err := Decode(contentType, msg.Data)
	if err != nil {
		in.rejected.Add(1)
		in.logger.Debug().Err(err).Str("subject", msg.Subject).Msg("dropping undecodable position")
		return
	}

	for _, fix := range fixes {
		if _, err := in.tracker.Record(fix); err != nil {
			in.rejected.Add(1)
			continue
		}
		in.received.Add(1)
	}
}

// Stats returns the number of accepted and rejected fixes. Accepted includes
// out-of-order fixes the tracker ignored.
func (in *Ingestor) Stats() (received, rejected int64) {
	return in.received.Load(), in.rejected.Load()
}

// NATSSubscriber feeds GPS fixes published on NATS into a Tracker.
type NATSSubscriber struct {
	conn     *nats.Conn
	sub      *nats.Subscription
	subject  string
	ingestor *Ingestor
	logger   zerolog.Logger
}

// NewNATSSubscriber connects to NATS. Call Start to begin consuming.
func NewNATSSubscriber(cfg NATSConfig) (*NATSSubscriber, error) {
	logger := cfg.Logger.With().Str("component", "nats_subscriber").Logger()

	conn, err := nats.Connect(cfg.URL,
		nats.Name("transitengine-tracking"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info().Msg("nats connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	return &NATSSubscriber{
		conn:     conn,
		subject:  cfg.Subject,
		ingestor: NewIngestor(cfg.Tracker, logger),
		logger:   logger,
	}, nil
}

// Start subscribes to the configured subject.
func (s *NATSSubscriber) Start() error {
	sub, err := s.conn.Subscribe(s.subject, s.ingestor.Handle)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", s.subject, err)
	}
	s.sub = sub

	s.logger.Info().Str("subject", s.subject).Msg("consuming vehicle positions")
	return nil
}

// Stats returns the ingest counters.
func (s *NATSSubscriber) Stats() (received, rejected int64) {
	return s.ingestor.Stats()
}

// Close drains the subscription and closes the connection.
func (s *NATSSubscriber) Close() error {
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
		return fmt.Errorf("draining nats: %w", err)
	}
	return nil
}
