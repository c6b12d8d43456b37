package server

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "forms.v1.FormService"

// healthMethod is exempt from authentication.
const healthMethod = "/" + ServiceName + "/Health"

// FormServiceServer is the gRPC surface of the forms service. Requests and
// responses are google.protobuf.Struct values carrying the same JSON
// documents as the HTTP API.
type FormServiceServer interface {
	CreateForm(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetForm(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListForms(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReplaceForm(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteForm(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateSubmission(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSubmissions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ValidateSubmission(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Health(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Compile-time check that FormsServer implements FormServiceServer.
var _ FormServiceServer = (*FormsServer)(nil)

type unaryCall func(FormServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(FormServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(FormServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// FormServiceDesc describes FormService for grpc.Server.RegisterService.
var FormServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FormServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("CreateForm", FormServiceServer.CreateForm),
		unaryMethod("GetForm", FormServiceServer.GetForm),
		unaryMethod("ListForms", FormServiceServer.ListForms),
		unaryMethod("ReplaceForm", FormServiceServer.ReplaceForm),
		unaryMethod("DeleteForm", FormServiceServer.DeleteForm),
		unaryMethod("CreateSubmission", FormServiceServer.CreateSubmission),
		unaryMethod("ListSubmissions", FormServiceServer.ListSubmissions),
		unaryMethod("ValidateSubmission", FormServiceServer.ValidateSubmission),
		unaryMethod("Health", FormServiceServer.Health),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "forms/v1/forms.proto",
}

// NewGRPCServer creates a gRPC server with standard interceptors,
// registers the FormService, and returns the server ready to serve.
func NewGRPCServer(formsServer *FormsServer, authToken string) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			LoggingInterceptor,
			AuthInterceptor(authToken),
		),
	)

	srv.RegisterService(&FormServiceDesc, formsServer)

	return srv
}

// idRequest is the request shape of the methods addressing a single form.
type idRequest struct {
	ID     string `json:"id"`
	FormID string `json:"form_id"`
}

func (r idRequest) formID() string {
	if r.FormID != "" {
		return r.FormID
	}
	return r.ID
}

type replaceRequest struct {
	ID string `json:"id"`
	formInput
}

type submissionRequest struct {
	idRequest
	submissionInput
}

// CreateForm builds and stores a form from {title, description, fields}.
func (s *FormsServer) CreateForm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in formInput
	if err := fromStruct(req, &in); err != nil {
		return nil, grpcError(err)
	}
	form, err := s.createForm(ctx, in)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(form)
}

// GetForm returns the form addressed by {id}.
func (s *FormsServer) GetForm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in idRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, grpcError(err)
	}
	form, err := s.getForm(ctx, in.formID())
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(form)
}

// ListForms returns {forms, total}.
func (s *FormsServer) ListForms(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	forms, err := s.listForms(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"forms": forms, "total": len(forms)})
}

// ReplaceForm swaps in a new schema from {id, title, description, fields}.
func (s *FormsServer) ReplaceForm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in replaceRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, grpcError(err)
	}
	form, err := s.replaceForm(ctx, in.ID, in.formInput)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(form)
}

// DeleteForm removes the form addressed by {id}.
func (s *FormsServer) DeleteForm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in idRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, grpcError(err)
	}
	if err := s.deleteForm(ctx, in.formID()); err != nil {
		return nil, grpcError(err)
	}
	return &structpb.Struct{}, nil
}

// CreateSubmission validates and stores {form_id, values}.
func (s *FormsServer) CreateSubmission(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in submissionRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, grpcError(err)
	}
	sub, err := s.createSubmission(ctx, in.formID(), in.Values)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(sub)
}

// ListSubmissions returns {submissions, total} for {form_id}.
func (s *FormsServer) ListSubmissions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in idRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, grpcError(err)
	}
	subs, err := s.listSubmissions(ctx, in.formID())
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(map[string]any{"submissions": subs, "total": len(subs)})
}

// ValidateSubmission dry-runs {form_id, values} and returns {valid, values, details}.
func (s *FormsServer) ValidateSubmission(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in submissionRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, grpcError(err)
	}
	res, err := s.validateSubmission(ctx, in.formID(), in.Values)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(res)
}

// Health returns the service health status.
func (s *FormsServer) Health(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(map[string]string{"status": "ok"})
}

// fromStruct decodes a Struct into v through its JSON form.
func fromStruct(in *structpb.Struct, v any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return inputError("invalid request: " + err.Error())
	}
	if err := json.Unmarshal(data, v); err != nil {
		return inputError("invalid request: " + err.Error())
	}
	return nil
}

// toStruct encodes v, which must marshal to a JSON object, as a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// grpcError converts err to a status carrying the HTTP error body as a
// Struct detail, so gRPC clients see the same code and field details.
func grpcError(err error) error {
	c := classify(err)
	st := status.New(c.grpcCode, c.body.Error)
	detail, derr := toStruct(c.body)
	if derr != nil {
		return st.Err()
	}
	if withDetail, derr := st.WithDetails(detail); derr == nil {
		st = withDetail
	}
	return st.Err()
}
