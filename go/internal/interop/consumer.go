package interop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// ConsumerConfig holds configuration for the pacing JetStream consumer
type ConsumerConfig struct {
	StreamName    string
	ConsumerName  string
	SubjectFilter string
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
}

// DefaultConsumerConfig returns the default pacing consumer configuration.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		StreamName:    "PACING",
		ConsumerName:  "improvscore-board",
		SubjectFilter: "pacing.>",
		MaxDeliver:    3,
		AckWait:       10 * time.Second,
		MaxAckPending: 50,
	}
}

// EventConsumer applies plans and events published by the pacing device.
// Subjects ending in ".plan" carry a plan; everything else is an event.
type EventConsumer struct {
	translator *Translator
	recorder   Recorder
	js         jetstream.JetStream
	consumer   jetstream.Consumer
	config     ConsumerConfig
}

// NewEventConsumer binds a durable consumer on the pacing stream.
func NewEventConsumer(ctx context.Context, js jetstream.JetStream, translator *Translator, recorder Recorder, config ConsumerConfig) (*EventConsumer, error) {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	ec := &EventConsumer{
		translator: translator,
		recorder:   recorder,
		js:         js,
		config:     config,
	}
	if err := ec.ensureConsumer(ctx); err != nil {
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}
	return ec, nil
}

func (ec *EventConsumer) ensureConsumer(ctx context.Context) error {
	stream, err := ec.js.Stream(ctx, ec.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumer, err := stream.Consumer(ctx, ec.config.ConsumerName)
	if err == nil {
		ec.consumer = consumer
		log.Info().
			Str("consumer", ec.config.ConsumerName).
			Str("stream", ec.config.StreamName).
			Msg("using existing pacing consumer")
		return nil
	}

	consumer, err = stream.CreateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          ec.config.ConsumerName,
		Durable:       ec.config.ConsumerName,
		Description:   "Scoreboard consumer for pacing plans and cues",
		FilterSubject: ec.config.SubjectFilter,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    ec.config.MaxDeliver,
		AckWait:       ec.config.AckWait,
		MaxAckPending: ec.config.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	ec.consumer = consumer
	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Str("stream", ec.config.StreamName).
		Msg("created pacing consumer")
	return nil
}

// Start consumes until ctx is done. Messages are applied one at a time in
// delivery order.
func (ec *EventConsumer) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Str("filter", ec.config.SubjectFilter).
		Msg("starting pacing consumer")

	messageCh := make(chan jetstream.Msg, ec.config.MaxAckPending)
	consumeCtx, err := ec.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			_ = msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("pacing consumer shutting down")
			return nil
		case msg := <-messageCh:
			ec.settle(msg, ec.process(msg.Subject(), msg.Data()))
		}
	}
}

// settle acks applied or refused messages and terminates malformed ones;
// redelivering a payload that failed validation cannot succeed.
func (ec *EventConsumer) settle(msg jetstream.Msg, res Result) {
	var err error
	if len(res.Errors) > 0 {
		log.Warn().
			Str("subject", msg.Subject()).
			Strs("errors", res.Errors).
			Msg("dropping invalid pacing message")
		err = msg.Term()
	} else {
		err = msg.Ack()
	}
	if err != nil {
		log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to settle pacing message")
	}
}

func (ec *EventConsumer) process(subject string, data []byte) Result {
	kind := "event"
	apply := ec.translator.ApplyEvent
	if strings.HasSuffix(subject, ".plan") {
		kind = "plan"
		apply = ec.translator.ApplyPlan
	}

	var body any
	if err := json.Unmarshal(data, &body); err != nil {
		ec.recorder.InteropHandled("jetstream", kind, false)
		return Result{Errors: []string{"message must be valid JSON"}}
	}

	res := apply(body)
	ec.recorder.InteropHandled("jetstream", kind, res.OK)
	log.Debug().
		Str("subject", subject).
		Str("kind", kind).
		Bool("ok", res.OK).
		Msg("pacing message applied")
	return res
}

// Info returns the consumer's server-side state.
func (ec *EventConsumer) Info(ctx context.Context) (*jetstream.ConsumerInfo, error) {
	return ec.consumer.Info(ctx)
}
