package interop

import (
	"testing"

	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumerRoutesBySubject(t *testing.T) {
	b := newTestBoard(t)
	recorder := &countingRecorder{}
	ec := &EventConsumer{translator: b.translator, recorder: recorder, config: DefaultConsumerConfig()}

	res := ec.process("pacing.salle-1.plan", []byte(`{"matchId":"js-1","teams":[{"name":"Rouges"}]}`))
	require.True(t, res.OK)
	assert.Equal(t, "js-1", res.MatchID)
	assert.NotNil(t, b.targets.Matches.GetMatch("js-1"))

	res = ec.process("pacing.salle-1.event", []byte(`{"type":"control.lock"}`))
	require.True(t, res.OK)
	assert.True(t, b.store.Get().RemoteControl.Locked)

	assert.Equal(t, 1, recorder.calls["jetstream/plan"])
	assert.Equal(t, 1, recorder.calls["jetstream/event"])
}

func TestConsumerRejectsMalformedMessages(t *testing.T) {
	b := newTestBoard(t)
	recorder := &countingRecorder{}
	ec := &EventConsumer{translator: b.translator, recorder: recorder, config: DefaultConsumerConfig()}

	res := ec.process("pacing.salle-1.event", []byte(`not json`))
	assert.Equal(t, []string{"message must be valid JSON"}, res.Errors)

	res = ec.process("pacing.salle-1.event", []byte(`{"type":"warp"}`))
	assert.NotEmpty(t, res.Errors)

	assert.Equal(t, 2, recorder.calls["jetstream/event/failed"])
	assert.Equal(t, models.ControlSourceLocal, b.store.Get().RemoteControl.Source)
}

func TestDefaultConsumerConfig(t *testing.T) {
	cfg := DefaultConsumerConfig()
	assert.Equal(t, "pacing.>", cfg.SubjectFilter)
	assert.Equal(t, "PACING", cfg.StreamName)
	assert.Positive(t, cfg.MaxAckPending)
}
