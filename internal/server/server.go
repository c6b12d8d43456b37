package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/forms/internal/events"
	"github.com/alfredjeanlab/forms/internal/model"
	"github.com/alfredjeanlab/forms/internal/store"
)

// maxSubmitAttempts bounds how often a submission is re-validated when its
// form is replaced between validation and insert.
const maxSubmitAttempts = 3

// defaultStoreTimeout applies when Options.StoreTimeout is zero.
const defaultStoreTimeout = 10 * time.Second

// Options configures a FormsServer.
type Options struct {
	DeletePolicy model.DeletePolicy
	Strict       bool          // reject submission keys that match no field
	StoreTimeout time.Duration // upper bound for each storage call
}

// FormsServer implements FormServiceServer and the HTTP API on top of a
// store.Store.
type FormsServer struct {
	store     store.Store
	publisher events.Publisher
	sseHub    *sseHub

	deletePolicy model.DeletePolicy
	strict       bool
	storeTimeout time.Duration
}

// NewFormsServer returns a new FormsServer backed by the given store and publisher.
func NewFormsServer(s store.Store, p events.Publisher, opts Options) *FormsServer {
	if p == nil {
		p = &events.NoopPublisher{}
	}
	if opts.DeletePolicy == "" {
		opts.DeletePolicy = model.DeleteReject
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	return &FormsServer{
		store:        s,
		publisher:    p,
		sseHub:       newSSEHub(),
		deletePolicy: opts.DeletePolicy,
		strict:       opts.Strict,
		storeTimeout: opts.StoreTimeout,
	}
}

// storeCtx derives the context for a single storage call.
func (s *FormsServer) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// publish sends the event to NATS and to connected SSE clients.
// Both are best-effort; failures are logged but do not block the caller.
func (s *FormsServer) publish(ctx context.Context, topic, formID string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "form_id", formID, "error", err)
	}
	s.broadcastEvent(topic, event)
}
