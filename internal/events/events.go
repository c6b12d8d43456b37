// Package events carries form lifecycle notifications to other processes.
// The server publishes one event per successful mutation; publishing is best
// effort and never fails the mutation.
package events

import (
	"context"

	"github.com/alfredjeanlab/forms/internal/model"
)

// Event topic constants
const (
	TopicFormCreated       = "forms.form.created"
	TopicFormReplaced      = "forms.form.replaced"
	TopicFormDeleted       = "forms.form.deleted"
	TopicSubmissionCreated = "forms.submission.created"

	// TopicAll matches every topic above.
	TopicAll = "forms.>"
)

// Event types

type FormCreated struct {
	Form *model.FormSchema `json:"form"`
}

type FormReplaced struct {
	Form            *model.FormSchema `json:"form"`
	PreviousVersion int               `json:"previous_version"`
}

type FormDeleted struct {
	FormID string             `json:"form_id"`
	Policy model.DeletePolicy `json:"policy"`
}

type SubmissionCreated struct {
	Submission *model.Submission `json:"submission"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Message is one delivered event: the concrete topic it was published on and
// its JSON payload.
type Message struct {
	Topic string
	Data  []byte
}

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers messages matching topic (wildcards allowed) on the
	// returned channel. The cancel function unsubscribes and closes it.
	Subscribe(topic string) (<-chan Message, func(), error)
	Close() error
}

// NoopPublisher discards every event. It is used when no bus is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, _ string, _ any) error { return ctx.Err() }

func (NoopPublisher) Close() error { return nil }
