package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"path/filepath"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/forms/internal/model"
	"github.com/alfredjeanlab/forms/internal/server"
	"github.com/alfredjeanlab/forms/internal/store/bolt"
)

// newTestGRPCClient serves a bolt-backed forms server over an in-memory
// listener and returns a client connected to it.
func newTestGRPCClient(t *testing.T, token string) *GRPCClient {
	t.Helper()
	st, err := bolt.Open(filepath.Join(t.TempDir(), "forms.db"))
	if err != nil {
		t.Fatalf("bolt.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	srv := server.NewGRPCServer(server.NewFormsServer(st, nil, server.Options{}), token)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := NewGRPCClient("passthrough:///bufnet", token,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	if err != nil {
		t.Fatalf("NewGRPCClient: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGRPCClient_RoundTrip(t *testing.T) {
	c := newTestGRPCClient(t, "secret")
	ctx := context.Background()

	form, err := c.CreateForm(ctx, &FormRequest{
		Title: "Signup",
		Fields: []model.RawField{
			{Label: "name", Type: "text", Required: true},
			{Label: "age", Type: "number"},
		},
	})
	if err != nil {
		t.Fatalf("CreateForm: %v", err)
	}
	if form.ID == "" || form.Version != 1 || len(form.Fields) != 2 {
		t.Fatalf("form = %+v", form)
	}

	got, err := c.GetForm(ctx, form.ID)
	if err != nil {
		t.Fatalf("GetForm: %v", err)
	}
	if got.Title != "Signup" || got.Fields[1].Type != model.FieldTypeNumber {
		t.Errorf("got = %+v", got)
	}

	sub, err := c.CreateSubmission(ctx, form.ID, map[string]any{"name": "Ada", "age": "36"})
	if err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}
	if sub.Values["age"] != float64(36) {
		t.Errorf("age = %#v, want coerced number", sub.Values["age"])
	}

	subs, err := c.ListSubmissions(ctx, form.ID)
	if err != nil || len(subs) != 1 {
		t.Fatalf("ListSubmissions = %d, %v", len(subs), err)
	}

	res, err := c.ValidateSubmission(ctx, form.ID, map[string]any{"age": "old"})
	if err != nil {
		t.Fatalf("ValidateSubmission: %v", err)
	}
	if res.Valid || len(res.Details) != 2 {
		t.Errorf("result = %+v", res)
	}

	replaced, err := c.ReplaceForm(ctx, form.ID, &FormRequest{
		Title:  "Signup v2",
		Fields: []model.RawField{{Label: "email", Type: "email"}},
	})
	if err != nil {
		t.Fatalf("ReplaceForm: %v", err)
	}
	if replaced.Version != 2 || replaced.Title != "Signup v2" {
		t.Errorf("replaced = %+v", replaced)
	}

	forms, err := c.ListForms(ctx)
	if err != nil || len(forms) != 1 {
		t.Fatalf("ListForms = %d, %v", len(forms), err)
	}

	status, err := c.Health(ctx)
	if err != nil || status != "ok" {
		t.Errorf("Health = %q, %v", status, err)
	}
}

func TestGRPCClient_Errors(t *testing.T) {
	c := newTestGRPCClient(t, "")
	ctx := context.Background()

	_, err := c.GetForm(ctx, "fm-missing")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err = c.CreateForm(ctx, &FormRequest{Title: "x", Fields: []model.RawField{{Label: "c", Type: "multi_choice"}}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Code != string(model.CodeSchemaValidationFailed) {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if len(apiErr.Details) != 1 || apiErr.Details[0].Code != model.CodeMissingOptions {
		t.Errorf("details = %+v", apiErr.Details)
	}

	form, err := c.CreateForm(ctx, &FormRequest{Title: "x", Fields: []model.RawField{{Label: "a", Type: "text"}}})
	if err != nil {
		t.Fatalf("CreateForm: %v", err)
	}
	if _, err := c.CreateSubmission(ctx, form.ID, map[string]any{"a": "b"}); err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}
	err = c.DeleteForm(ctx, form.ID)
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict || apiErr.Code != "form_has_submissions" {
		t.Errorf("DeleteForm err = %v", err)
	}
}

func TestGRPCClient_WrongToken(t *testing.T) {
	c := newTestGRPCClient(t, "secret")
	c.token = "wrong"

	_, err := c.ListForms(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
}

func TestFromStatus_WithoutDetails(t *testing.T) {
	err := fromStatus(status.Error(codes.Unavailable, "connection refused"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable || apiErr.Message != "connection refused" {
		t.Errorf("apiErr = %+v", apiErr)
	}

	plain := errors.New("boom")
	if fromStatus(plain) != plain {
		t.Error("non-status errors must pass through")
	}
}

func TestFromStatus_StructDetail(t *testing.T) {
	detail, _ := structpb.NewStruct(map[string]any{
		"error": "form not found",
		"code":  "not_found",
	})
	st, _ := status.New(codes.NotFound, "form not found").WithDetails(detail)
	err := fromStatus(st.Err())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "not_found" || apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("apiErr = %+v", apiErr)
	}
}
