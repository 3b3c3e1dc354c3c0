package interop

import (
	"context"
	"testing"
	"time"

	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/mcdev12/improvscore/go/internal/testsupport"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumerAppliesJetStreamMessages(t *testing.T) {
	url := testsupport.NATS(t)
	b := newTestBoard(t)

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := DefaultConsumerConfig()
	_, err = js.CreateStream(ctx, jetstream.StreamConfig{Name: cfg.StreamName, Subjects: []string{cfg.SubjectFilter}})
	require.NoError(t, err)

	ec, err := NewEventConsumer(ctx, js, b.translator, nil, cfg)
	require.NoError(t, err)

	// a second binding reuses the durable consumer
	_, err = NewEventConsumer(ctx, js, b.translator, nil, cfg)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- ec.Start(ctx) }()

	_, err = js.Publish(ctx, "pacing.salle-1.plan", []byte(`{"matchId":"js-live","teams":[{"name":"Rouges"},{"name":"Bleus"}],"rounds":[{"type":"shortform"}]}`))
	require.NoError(t, err)
	_, err = js.Publish(ctx, "pacing.salle-1.event", []byte(`{"type":"bogus"}`))
	require.NoError(t, err)
	_, err = js.Publish(ctx, "pacing.salle-1.event", []byte(`{"type":"match.start","payload":{"matchId":"js-live"}}`))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		m := b.targets.Matches.GetMatch("js-live")
		return m != nil && m.Status == models.MatchStatusLive
	}, 10*time.Second, 50*time.Millisecond)

	st := b.store.Get()
	assert.Equal(t, "Rouges", st.Team1.Name)
	assert.Equal(t, models.GameStatusLive, st.Rounds.GameStatus)
	assert.Equal(t, models.ControlSourcePacing, st.RemoteControl.Source)

	require.Eventually(t, func() bool {
		info, err := ec.Info(ctx)
		return err == nil && info.NumAckPending == 0 && info.NumPending == 0
	}, 10*time.Second, 50*time.Millisecond, "every message is settled, including the invalid one")

	cancel()
	assert.NoError(t, <-done)
}
