package interop

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/known/structpb"
)

func newRPCServer(t *testing.T, b *testBoard, recorder Recorder) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	require.NoError(t, NewRPCService(b.translator, recorder).RegisterRoutes(mux))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func mustStruct(t *testing.T, v map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(v)
	require.NoError(t, err)
	return s
}

func TestRPCApplyPlanAndEvent(t *testing.T) {
	b := newTestBoard(t)
	recorder := &countingRecorder{}
	srv := newRPCServer(t, b, recorder)

	plans := connect.NewClient[structpb.Struct, structpb.Struct](srv.Client(), srv.URL+ApplyPlanProcedure)
	events := connect.NewClient[structpb.Struct, structpb.Struct](srv.Client(), srv.URL+ApplyEventProcedure)

	resp, err := plans.CallUnary(context.Background(), connect.NewRequest(mustStruct(t, map[string]any{
		"matchId": "rpc-1",
		"teams":   []any{map[string]any{"name": "Rouges"}, map[string]any{"name": "Bleus"}},
		"rounds":  []any{map[string]any{"type": "longform", "durationsInSeconds": []any{300}}},
	})))
	require.NoError(t, err)
	out := resp.Msg.AsMap()
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, "rpc-1", out["matchId"])
	assert.Equal(t, false, out["idSubstituted"])
	assert.Equal(t, "Bleus", b.store.Get().Team2.Name)

	resp, err = events.CallUnary(context.Background(), connect.NewRequest(mustStruct(t, map[string]any{
		"type":    "match.start",
		"payload": map[string]any{"matchId": "rpc-1"},
	})))
	require.NoError(t, err)
	assert.Equal(t, true, resp.Msg.AsMap()["ok"])
	st := b.store.Get()
	assert.Equal(t, models.GameStatusLive, st.Rounds.GameStatus)
	assert.Equal(t, models.RoundTypeLongform, st.Rounds.Current.Type)

	assert.Equal(t, 1, recorder.calls["connect/plan"])
	assert.Equal(t, 1, recorder.calls["connect/event"])
}

func TestRPCInvalidArgument(t *testing.T) {
	b := newTestBoard(t)
	srv := newRPCServer(t, b, nil)
	events := connect.NewClient[structpb.Struct, structpb.Struct](srv.Client(), srv.URL+ApplyEventProcedure)

	_, err := events.CallUnary(context.Background(), connect.NewRequest(mustStruct(t, map[string]any{
		"payload": "nope",
	})))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	var cerr *connect.Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "type must be a non-empty string; payload must be an object", cerr.Message())
	require.Len(t, cerr.Details(), 1)
	detail, err := cerr.Details()[0].Value()
	require.NoError(t, err)
	problems, ok := detail.(*structpb.Struct)
	require.True(t, ok)
	assert.Len(t, problems.AsMap()["errors"], 2)

	assert.Equal(t, models.ControlSourceLocal, b.store.Get().RemoteControl.Source)
}

func TestRPCRefusedEventIsNotAnError(t *testing.T) {
	b := newTestBoard(t)
	srv := newRPCServer(t, b, nil)
	events := connect.NewClient[structpb.Struct, structpb.Struct](srv.Client(), srv.URL+ApplyEventProcedure)

	resp, err := events.CallUnary(context.Background(), connect.NewRequest(mustStruct(t, map[string]any{
		"type": "round.end",
	})))
	require.NoError(t, err)
	assert.Equal(t, false, resp.Msg.AsMap()["ok"])
}

func TestServiceDescriptorRegistered(t *testing.T) {
	svc, err := describeService()
	require.NoError(t, err)
	assert.Equal(t, ServiceName, string(svc.FullName()))
	assert.Equal(t, 2, svc.Methods().Len())

	desc, err := protoregistry.GlobalFiles.FindDescriptorByName(ServiceName)
	require.NoError(t, err)
	assert.Equal(t, svc.FullName(), desc.FullName())
}
