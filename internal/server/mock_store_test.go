package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alfredjeanlab/forms/internal/model"
	"github.com/alfredjeanlab/forms/internal/store"
)

// mockStore is an in-memory store.Store for transport tests.
type mockStore struct {
	mu          sync.Mutex
	forms       map[string]*model.FormSchema
	order       []string
	submissions map[string][]*model.Submission
	nextID      int

	// conflicts makes the next n CreateSubmission calls fail with
	// ErrVersionConflict after bumping the form's version, as if a replace
	// had landed in between.
	conflicts int
	// err, when set, is returned by every call as a storage failure.
	err error
}

var _ store.Store = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{
		forms:       make(map[string]*model.FormSchema),
		submissions: make(map[string][]*model.Submission),
	}
}

func (m *mockStore) fail(op string) error {
	if m.err != nil {
		return store.Wrap(op, m.err)
	}
	return nil
}

func (m *mockStore) CreateForm(_ context.Context, form *model.FormSchema) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("create form"); err != nil {
		return "", err
	}
	m.nextID++
	if form.ID == "" {
		form.ID = fmt.Sprintf("fm-%d", m.nextID)
	}
	now := time.Now().UTC()
	form.Version = 1
	form.CreatedAt = now
	form.UpdatedAt = now
	m.forms[form.ID] = form.Clone()
	m.order = append(m.order, form.ID)
	return form.ID, nil
}

func (m *mockStore) GetForm(_ context.Context, id string) (*model.FormSchema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("get form"); err != nil {
		return nil, err
	}
	f, ok := m.forms[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return f.Clone(), nil
}

func (m *mockStore) ListForms(_ context.Context) ([]*model.FormSchema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("list forms"); err != nil {
		return nil, err
	}
	var out []*model.FormSchema
	for _, id := range m.order {
		if f, ok := m.forms[id]; ok {
			out = append(out, f.Clone())
		}
	}
	return out, nil
}

func (m *mockStore) ReplaceForm(_ context.Context, id string, form *model.FormSchema) (*model.FormSchema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("replace form"); err != nil {
		return nil, err
	}
	cur, ok := m.forms[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	next := form.Clone()
	next.ID = id
	next.Version = cur.Version + 1
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	m.forms[id] = next
	return next.Clone(), nil
}

func (m *mockStore) DeleteForm(_ context.Context, id string, policy model.DeletePolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("delete form"); err != nil {
		return err
	}
	if _, ok := m.forms[id]; !ok {
		return store.ErrNotFound
	}
	if policy != model.DeleteCascade && len(m.submissions[id]) > 0 {
		return fmt.Errorf("%w: %d submission(s)", store.ErrFormHasSubmissions, len(m.submissions[id]))
	}
	delete(m.forms, id)
	delete(m.submissions, id)
	return nil
}

func (m *mockStore) CreateSubmission(_ context.Context, sub *model.Submission) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("create submission"); err != nil {
		return "", err
	}
	f, ok := m.forms[sub.FormID]
	if !ok {
		return "", store.ErrNotFound
	}
	if m.conflicts > 0 {
		m.conflicts--
		f.Version++
	}
	if f.Version != sub.FormVersion {
		return "", fmt.Errorf("%w: validated against %d, current %d", store.ErrVersionConflict, sub.FormVersion, f.Version)
	}
	m.nextID++
	sub.ID = fmt.Sprintf("sb-%d", m.nextID)
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}
	m.submissions[sub.FormID] = append(m.submissions[sub.FormID], sub)
	return sub.ID, nil
}

func (m *mockStore) Snapshot(_ context.Context) (*store.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("snapshot"); err != nil {
		return nil, err
	}
	snap := &store.Snapshot{Submissions: map[string][]*model.Submission{}}
	for _, id := range m.order {
		if f, ok := m.forms[id]; ok {
			snap.Forms = append(snap.Forms, f.Clone())
			snap.Submissions[id] = append([]*model.Submission{}, m.submissions[id]...)
		}
	}
	return snap, nil
}

func (m *mockStore) ListSubmissions(_ context.Context, formID string) ([]*model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("list submissions"); err != nil {
		return nil, err
	}
	if _, ok := m.forms[formID]; !ok {
		return nil, store.ErrNotFound
	}
	return append([]*model.Submission(nil), m.submissions[formID]...), nil
}

func (m *mockStore) CountSubmissions(_ context.Context, formID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.submissions[formID]), m.fail("count submissions")
}

func (m *mockStore) Close() error { return nil }

// recordingPublisher captures published topics.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ any) error {
	p.mu.Lock()
	p.topics = append(p.topics, topic)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}
