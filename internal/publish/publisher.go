package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/DragonX2024888/DragonX/internal/core"
)

// Publisher forwards committed events to NATS for downstream
// consumers. Subjects follow the pattern dragonx.events.{event_type}.
// Publishing is best-effort: the event log is the source of truth and
// consumers catch up from it after any gap.
type Publisher struct {
	js        jetstream.JetStream
	inputChan <-chan core.Output
	log       zerolog.Logger
}

func NewPublisher(js jetstream.JetStream, inputChan <-chan core.Output, log zerolog.Logger) *Publisher {
	return &Publisher{js: js, inputChan: inputChan, log: log}
}

// Run drains the publish channel until ctx is cancelled or the
// channel closes.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-p.inputChan:
			if !ok {
				return nil
			}
			if err := p.publish(ctx, out); err != nil {
				p.log.Warn().
					Int64("sequence", out.Envelope.Sequence).
					Err(err).
					Msg("outbound publish failed")
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, out core.Output) error {
	data, err := json.Marshal(out.Envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	subject := fmt.Sprintf("dragonx.events.%s", out.Envelope.Type)
	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// EnsureStream creates the outbound events stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "DRAGONX_EVENTS",
		Subjects:  []string{"dragonx.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	return nil
}
