package interop

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"connectrpc.com/connect"
	"connectrpc.com/grpcreflect"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully-qualified name of the interop service.
	ServiceName = "improvscore.interop.v1.InteropService"

	ApplyPlanProcedure  = "/" + ServiceName + "/ApplyPlan"
	ApplyEventProcedure = "/" + ServiceName + "/ApplyEvent"
)

var (
	describeOnce sync.Once
	serviceDesc  protoreflect.ServiceDescriptor
	describeErr  error
)

// describeService registers the interop service schema so reflection can
// serve it. Both methods take and return a google.protobuf.Struct.
func describeService() (protoreflect.ServiceDescriptor, error) {
	describeOnce.Do(func() {
		method := func(name string) *descriptorpb.MethodDescriptorProto {
			return &descriptorpb.MethodDescriptorProto{
				Name:       proto.String(name),
				InputType:  proto.String(".google.protobuf.Struct"),
				OutputType: proto.String(".google.protobuf.Struct"),
			}
		}
		file := &descriptorpb.FileDescriptorProto{
			Name:       proto.String("improvscore/interop/v1/interop.proto"),
			Package:    proto.String("improvscore.interop.v1"),
			Dependency: []string{"google/protobuf/struct.proto"},
			Syntax:     proto.String("proto3"),
			Service: []*descriptorpb.ServiceDescriptorProto{{
				Name:   proto.String("InteropService"),
				Method: []*descriptorpb.MethodDescriptorProto{method("ApplyPlan"), method("ApplyEvent")},
			}},
		}

		fd, err := protodesc.NewFile(file, protoregistry.GlobalFiles)
		if err != nil {
			describeErr = fmt.Errorf("build interop descriptor: %w", err)
			return
		}
		if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
			describeErr = fmt.Errorf("register interop descriptor: %w", err)
			return
		}
		serviceDesc = fd.Services().ByName("InteropService")
	})
	return serviceDesc, describeErr
}

// RPCService serves plans and events over Connect, gRPC and gRPC-Web
type RPCService struct {
	translator *Translator
	recorder   Recorder
}

// NewRPCService creates the Connect service.
func NewRPCService(translator *Translator, recorder Recorder) *RPCService {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &RPCService{translator: translator, recorder: recorder}
}

// RegisterRoutes mounts both procedures and gRPC reflection on mux.
func (s *RPCService) RegisterRoutes(mux *http.ServeMux, opts ...connect.HandlerOption) error {
	svc, err := describeService()
	if err != nil {
		return err
	}

	withSchema := func(method protoreflect.Name) []connect.HandlerOption {
		out := make([]connect.HandlerOption, 0, len(opts)+1)
		out = append(out, opts...)
		return append(out, connect.WithSchema(svc.Methods().ByName(method)))
	}

	mux.Handle(ApplyPlanProcedure, connect.NewUnaryHandler(
		ApplyPlanProcedure,
		s.unary("plan", s.translator.ApplyPlan),
		withSchema("ApplyPlan")...,
	))
	mux.Handle(ApplyEventProcedure, connect.NewUnaryHandler(
		ApplyEventProcedure,
		s.unary("event", s.translator.ApplyEvent),
		withSchema("ApplyEvent")...,
	))

	reflector := grpcreflect.NewStaticReflector(ServiceName)
	mux.Handle(grpcreflect.NewHandlerV1(reflector))
	mux.Handle(grpcreflect.NewHandlerV1Alpha(reflector))

	log.Info().Str("service", ServiceName).Msg("interop rpc service registered")
	return nil
}

func (s *RPCService) unary(kind string, apply func(any) Result) func(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	return func(_ context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
		res := apply(req.Msg.AsMap())
		s.recorder.InteropHandled("connect", kind, res.OK)

		if len(res.Errors) > 0 {
			return nil, invalidArgument(res.Errors)
		}
		out, err := structpb.NewStruct(map[string]any{
			"ok":            res.OK,
			"matchId":       res.MatchID,
			"idSubstituted": res.IDSubstituted,
		})
		if err != nil {
			return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("encode result: %w", err))
		}
		return connect.NewResponse(out), nil
	}
}

// invalidArgument carries the validation problems both in the message and
// as a Struct detail so clients can read them one by one.
func invalidArgument(problems []string) *connect.Error {
	cerr := connect.NewError(connect.CodeInvalidArgument, errors.New(strings.Join(problems, "; ")))

	list := make([]any, len(problems))
	for i, p := range problems {
		list[i] = p
	}
	detailMsg, err := structpb.NewStruct(map[string]any{"errors": list})
	if err != nil {
		return cerr
	}
	if detail, err := connect.NewErrorDetail(detailMsg); err == nil {
		cerr.AddDetail(detail)
	}
	return cerr
}
