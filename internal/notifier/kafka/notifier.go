// Package kafka dispatches notification jobs to the email worker's topic.
// ProduceSync is deliberate: the saga's ordering guarantee requires each
// step's effect to be durably visible before the next step starts, so
// fire-and-forget is not an option here.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"caretrip/internal/notifier"
	"caretrip/pkg/platform/circuit"
	"caretrip/pkg/platform/sentinel"
)

type envelope struct {
	Template string `json:"template"`
	SentAt   string `json:"sent_at"`
	Payload  any    `json:"payload"`
}

// Notifier publishes templated email jobs to Kafka. A circuit breaker keeps a
// dead broker from stalling every provisioning request for the full produce
// timeout; while open, sends fail immediately with ErrUnavailable.
type Notifier struct {
	client  *kgo.Client
	topic   string
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// New connects a producer for the notification topic and ensures the topic
// exists.
func New(brokers []string, topic string, logger *slog.Logger) (*Notifier, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequestTimeoutOverhead(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := adm.CreateTopics(ctx, 1, 1, nil, topic); err != nil {
		// Topic may already exist or the cluster may disallow admin calls;
		// produce errors will surface either way.
		logger.Warn("ensure notify topic", "topic", topic, "error", err)
	}

	return &Notifier{
		client:  client,
		topic:   topic,
		breaker: circuit.New("notifier", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2)),
		logger:  logger,
	}, nil
}

// SendInvite publishes a team onboarding invite job.
func (n *Notifier) SendInvite(ctx context.Context, invite notifier.Invite) error {
	return n.publish(ctx, notifier.TemplateInvite, invite.Email, invite)
}

// SendWelcome publishes a patient welcome-with-credentials job.
func (n *Notifier) SendWelcome(ctx context.Context, welcome notifier.Welcome) error {
	return n.publish(ctx, notifier.TemplateWelcome, welcome.Email, welcome)
}

func (n *Notifier) publish(ctx context.Context, template, key string, payload any) error {
	// While open, probe with a short deadline so a recovered broker can close
	// the circuit without a healthy-path request paying the full timeout.
	if n.breaker.IsOpen() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
	}

	value, err := json.Marshal(envelope{
		Template: template,
		SentAt:   time.Now().UTC().Format(time.RFC3339),
		Payload:  payload,
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	record := &kgo.Record{Topic: n.topic, Key: []byte(key), Value: value}
	if err := n.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		if _, change := n.breaker.RecordFailure(); change.Opened {
			n.logger.ErrorContext(ctx, "notifier circuit opened", "topic", n.topic, "error", err)
		}
		return fmt.Errorf("%w: produce notification: %v", sentinel.ErrUnavailable, err)
	}
	if _, change := n.breaker.RecordSuccess(); change.Closed {
		n.logger.InfoContext(ctx, "notifier circuit closed", "topic", n.topic)
	}
	return nil
}

// Close flushes and releases the producer.
func (n *Notifier) Close() {
	n.client.Close()
}
