package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/forms/internal/model"
)

// serviceName is the fully qualified gRPC service exposed by fd serve.
const serviceName = "forms.v1.FormService"

// GRPCClient implements FormsClient using the gRPC transport. Messages are
// google.protobuf.Struct values holding the same JSON documents as the
// HTTP API.
type GRPCClient struct {
	conn  *grpc.ClientConn
	token string
}

// Compile-time check.
var _ FormsClient = (*GRPCClient)(nil)

// NewGRPCClient connects to the given gRPC address and returns a client.
func NewGRPCClient(addr, token string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{conn: conn, token: token}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// --- Forms ---

func (c *GRPCClient) CreateForm(ctx context.Context, req *FormRequest) (*model.FormSchema, error) {
	var form model.FormSchema
	if err := c.invoke(ctx, "CreateForm", req, &form); err != nil {
		return nil, err
	}
	return &form, nil
}

func (c *GRPCClient) GetForm(ctx context.Context, id string) (*model.FormSchema, error) {
	var form model.FormSchema
	if err := c.invoke(ctx, "GetForm", map[string]string{"id": id}, &form); err != nil {
		return nil, err
	}
	return &form, nil
}

func (c *GRPCClient) ListForms(ctx context.Context) ([]*model.FormSchema, error) {
	var resp listFormsResponse
	if err := c.invoke(ctx, "ListForms", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Forms, nil
}

func (c *GRPCClient) ReplaceForm(ctx context.Context, id string, req *FormRequest) (*model.FormSchema, error) {
	body := struct {
		ID string `json:"id"`
		*FormRequest
	}{id, req}
	var form model.FormSchema
	if err := c.invoke(ctx, "ReplaceForm", body, &form); err != nil {
		return nil, err
	}
	return &form, nil
}

func (c *GRPCClient) DeleteForm(ctx context.Context, id string) error {
	return c.invoke(ctx, "DeleteForm", map[string]string{"id": id}, nil)
}

// --- Submissions ---

func (c *GRPCClient) CreateSubmission(ctx context.Context, formID string, values map[string]any) (*model.Submission, error) {
	var sub model.Submission
	if err := c.invoke(ctx, "CreateSubmission", submissionRequest{FormID: formID, Values: values}, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (c *GRPCClient) ListSubmissions(ctx context.Context, formID string) ([]*model.Submission, error) {
	var resp listSubmissionsResponse
	if err := c.invoke(ctx, "ListSubmissions", map[string]string{"form_id": formID}, &resp); err != nil {
		return nil, err
	}
	return resp.Submissions, nil
}

func (c *GRPCClient) ValidateSubmission(ctx context.Context, formID string, values map[string]any) (*ValidationResult, error) {
	var res ValidationResult
	if err := c.invoke(ctx, "ValidateSubmission", submissionRequest{FormID: formID, Values: values}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// --- Health ---

func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.invoke(ctx, "Health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// invoke calls method with req encoded as a Struct and decodes the Struct
// response into result, when result is non-nil.
func (c *GRPCClient) invoke(ctx context.Context, method string, req, result any) error {
	in := &structpb.Struct{}
	if req != nil {
		data, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		if err := protojson.Unmarshal(data, in); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}

	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/"+method, in, out); err != nil {
		return fromStatus(err)
	}
	if result == nil {
		return nil
	}
	data, err := protojson.Marshal(out)
	if err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// fromStatus converts a gRPC status error into an *APIError, reading the
// error body the server attaches as a Struct detail.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	apiErr := &APIError{StatusCode: httpStatus(st.Code()), Message: st.Message()}
	for _, d := range st.Details() {
		body, ok := d.(*structpb.Struct)
		if !ok {
			continue
		}
		data, merr := protojson.Marshal(body)
		if merr != nil {
			continue
		}
		if decoded := decodeAPIError(apiErr.StatusCode, data); decoded.Message != "" {
			apiErr = decoded
		}
	}
	return apiErr
}

// httpStatus maps the codes the server emits to their HTTP equivalents so
// callers can treat both transports alike.
func httpStatus(code codes.Code) int {
	switch code {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.FailedPrecondition:
		return http.StatusConflict
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
