// Package bolt implements the store.Store interface on an embedded bbolt file,
// for single-node deployments that do not run PostgreSQL.
package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/alfredjeanlab/forms/internal/idgen"
	"github.com/alfredjeanlab/forms/internal/model"
	"github.com/alfredjeanlab/forms/internal/store"
)

// Bucket layout:
//
//	forms/<form id>/header          form header JSON
//	forms/<form id>/fields/<pos>    FieldSpec JSON, key is big-endian position
//	form_order/<seq>                form id, seq is the creation sequence
//	submissions/<form id>/<seq>     Submission JSON
var (
	bucketForms       = []byte("forms")
	bucketFormOrder   = []byte("form_order")
	bucketSubmissions = []byte("submissions")
	bucketFields      = []byte("fields")
	keyHeader         = []byte("header")
)

var errCorrupt = errors.New("corrupt form record")

// header is the stored form record without its fields.
type header struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Version     int       `json:"version"`
	Seq         uint64    `json:"seq"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BoltStore implements store.Store on a bbolt database file.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time check that BoltStore implements store.Store.
var _ store.Store = (*BoltStore)(nil)

// utcNow is the clock used for timestamps the store assigns itself.
var utcNow = func() time.Time { return time.Now().UTC() }

// Open opens (creating if needed) the bbolt file at path and ensures the
// top-level buckets exist.
func Open(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt file %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketForms, bucketFormOrder, bucketSubmissions} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Close closes the bbolt file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// update and view run fn unless ctx is already done. bbolt transactions
// cannot be interrupted once started.
func (s *BoltStore) update(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(fn)
}

func (s *BoltStore) view(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

// CreateForm stores the header, every field and the creation-order entry in
// one transaction.
func (s *BoltStore) CreateForm(ctx context.Context, form *model.FormSchema) (string, error) {
	if form.ID == "" {
		id, err := idgen.NewFormID()
		if err != nil {
			return "", store.Wrap("create form", err)
		}
		form.ID = id
	}
	now := utcNow()
	form.Version = 1
	form.CreatedAt = now
	form.UpdatedAt = now

	err := s.update(ctx, func(tx *bbolt.Tx) error {
		forms := tx.Bucket(bucketForms)
		if forms.Bucket([]byte(form.ID)) != nil {
			return fmt.Errorf("form %s already exists", form.ID)
		}
		fb, err := forms.CreateBucket([]byte(form.ID))
		if err != nil {
			return err
		}

		order := tx.Bucket(bucketFormOrder)
		seq, err := order.NextSequence()
		if err != nil {
			return err
		}
		if err := order.Put(itob(seq), []byte(form.ID)); err != nil {
			return err
		}

		h := headerOf(form)
		h.Seq = seq
		if err := putHeader(fb, h); err != nil {
			return err
		}
		if err := putFields(fb, form.Fields); err != nil {
			return err
		}
		_, err = tx.Bucket(bucketSubmissions).CreateBucketIfNotExists([]byte(form.ID))
		return err
	})
	if err != nil {
		return "", store.Wrap("create form", err)
	}
	return form.ID, nil
}

// GetForm reads the form from a single read snapshot.
func (s *BoltStore) GetForm(ctx context.Context, id string) (*model.FormSchema, error) {
	var f *model.FormSchema
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		fb := tx.Bucket(bucketForms).Bucket([]byte(id))
		if fb == nil {
			return store.ErrNotFound
		}
		var err error
		f, err = readForm(fb)
		return err
	})
	if err != nil {
		return nil, store.Wrap("get form", err)
	}
	return f, nil
}

// ListForms returns every form in creation order.
func (s *BoltStore) ListForms(ctx context.Context) ([]*model.FormSchema, error) {
	var forms []*model.FormSchema
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		var err error
		forms, err = listForms(tx)
		return err
	})
	if err != nil {
		return nil, store.Wrap("list forms", err)
	}
	return forms, nil
}

func listForms(tx *bbolt.Tx) ([]*model.FormSchema, error) {
	forms := []*model.FormSchema{}
	fbs := tx.Bucket(bucketForms)
	err := tx.Bucket(bucketFormOrder).ForEach(func(_, id []byte) error {
		fb := fbs.Bucket(id)
		if fb == nil {
			return fmt.Errorf("%w: %s listed but missing", errCorrupt, id)
		}
		f, err := readForm(fb)
		if err != nil {
			return err
		}
		forms = append(forms, f)
		return nil
	})
	return forms, err
}

// ReplaceForm swaps the title, description and whole field set of an
// existing form and bumps its version.
func (s *BoltStore) ReplaceForm(ctx context.Context, id string, form *model.FormSchema) (*model.FormSchema, error) {
	f := form.Clone()
	f.ID = id
	err := s.update(ctx, func(tx *bbolt.Tx) error {
		fb := tx.Bucket(bucketForms).Bucket([]byte(id))
		if fb == nil {
			return store.ErrNotFound
		}
		h, err := getHeader(fb)
		if err != nil {
			return err
		}
		h.Title = f.Title
		h.Description = f.Description
		h.Version++
		h.UpdatedAt = utcNow()

		if fb.Bucket(bucketFields) != nil {
			if err := fb.DeleteBucket(bucketFields); err != nil {
				return err
			}
		}
		if err := putFields(fb, f.Fields); err != nil {
			return err
		}
		if err := putHeader(fb, h); err != nil {
			return err
		}
		f.Version = h.Version
		f.CreatedAt = h.CreatedAt
		f.UpdatedAt = h.UpdatedAt
		return nil
	})
	if err != nil {
		return nil, store.Wrap("replace form", err)
	}
	return f, nil
}

// DeleteForm removes the form and its fields, applying policy to its submissions.
func (s *BoltStore) DeleteForm(ctx context.Context, id string, policy model.DeletePolicy) error {
	err := s.update(ctx, func(tx *bbolt.Tx) error {
		forms := tx.Bucket(bucketForms)
		fb := forms.Bucket([]byte(id))
		if fb == nil {
			return store.ErrNotFound
		}
		h, err := getHeader(fb)
		if err != nil {
			return err
		}

		subs := tx.Bucket(bucketSubmissions)
		if policy != model.DeleteCascade {
			if n := countKeys(subs.Bucket([]byte(id))); n > 0 {
				return fmt.Errorf("%w: %d submission(s) reference %s", store.ErrFormHasSubmissions, n, id)
			}
		}
		if subs.Bucket([]byte(id)) != nil {
			if err := subs.DeleteBucket([]byte(id)); err != nil {
				return err
			}
		}
		if err := tx.Bucket(bucketFormOrder).Delete(itob(h.Seq)); err != nil {
			return err
		}
		return forms.DeleteBucket([]byte(id))
	})
	return store.Wrap("delete form", err)
}

// CreateSubmission stores sub if its form still has the version sub was
// validated against.
func (s *BoltStore) CreateSubmission(ctx context.Context, sub *model.Submission) (string, error) {
	if sub.ID == "" {
		id, err := idgen.NewSubmissionID()
		if err != nil {
			return "", store.Wrap("create submission", err)
		}
		sub.ID = id
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = utcNow()
	}
	data, err := json.Marshal(sub)
	if err != nil {
		return "", store.Wrap("create submission", fmt.Errorf("marshal submission: %w", err))
	}

	err = s.update(ctx, func(tx *bbolt.Tx) error {
		fb := tx.Bucket(bucketForms).Bucket([]byte(sub.FormID))
		if fb == nil {
			return store.ErrNotFound
		}
		h, err := getHeader(fb)
		if err != nil {
			return err
		}
		if h.Version != sub.FormVersion {
			return fmt.Errorf("%w: validated against %d, current %d", store.ErrVersionConflict, sub.FormVersion, h.Version)
		}
		sb, err := tx.Bucket(bucketSubmissions).CreateBucketIfNotExists([]byte(sub.FormID))
		if err != nil {
			return err
		}
		seq, err := sb.NextSequence()
		if err != nil {
			return err
		}
		return sb.Put(itob(seq), data)
	})
	if err != nil {
		return "", store.Wrap("create submission", err)
	}
	return sub.ID, nil
}

// ListSubmissions returns the form's submissions in submission order.
func (s *BoltStore) ListSubmissions(ctx context.Context, formID string) ([]*model.Submission, error) {
	var subs []*model.Submission
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketForms).Bucket([]byte(formID)) == nil {
			return store.ErrNotFound
		}
		var err error
		subs, err = listSubmissions(tx, formID)
		return err
	})
	if err != nil {
		return nil, store.Wrap("list submissions", err)
	}
	return subs, nil
}

func listSubmissions(tx *bbolt.Tx, formID string) ([]*model.Submission, error) {
	subs := []*model.Submission{}
	sb := tx.Bucket(bucketSubmissions).Bucket([]byte(formID))
	if sb == nil {
		return subs, nil
	}
	err := sb.ForEach(func(_, v []byte) error {
		var sub model.Submission
		if err := json.Unmarshal(v, &sub); err != nil {
			return fmt.Errorf("decode submission: %w", err)
		}
		if sub.Values == nil {
			sub.Values = map[string]any{}
		}
		subs = append(subs, &sub)
		return nil
	})
	return subs, err
}

// Snapshot reads all forms and submissions inside one View transaction.
func (s *BoltStore) Snapshot(ctx context.Context) (*store.Snapshot, error) {
	snap := &store.Snapshot{Submissions: map[string][]*model.Submission{}}
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		forms, err := listForms(tx)
		if err != nil {
			return err
		}
		snap.Forms = forms
		for _, f := range forms {
			subs, err := listSubmissions(tx, f.ID)
			if err != nil {
				return err
			}
			snap.Submissions[f.ID] = subs
		}
		return nil
	})
	if err != nil {
		return nil, store.Wrap("snapshot", err)
	}
	return snap, nil
}

// CountSubmissions returns how many submissions reference formID.
func (s *BoltStore) CountSubmissions(ctx context.Context, formID string) (int, error) {
	var n int
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		n = countKeys(tx.Bucket(bucketSubmissions).Bucket([]byte(formID)))
		return nil
	})
	if err != nil {
		return 0, store.Wrap("count submissions", err)
	}
	return n, nil
}

func headerOf(f *model.FormSchema) header {
	return header{
		ID:          f.ID,
		Title:       f.Title,
		Description: f.Description,
		Version:     f.Version,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func putHeader(fb *bbolt.Bucket, h header) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}
	return fb.Put(keyHeader, data)
}

func getHeader(fb *bbolt.Bucket) (header, error) {
	var h header
	data := fb.Get(keyHeader)
	if data == nil {
		return h, fmt.Errorf("%w: missing header", errCorrupt)
	}
	if err := json.Unmarshal(data, &h); err != nil {
		return h, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	return h, nil
}

func putFields(fb *bbolt.Bucket, fields []model.FieldSpec) error {
	b, err := fb.CreateBucket(bucketFields)
	if err != nil {
		return err
	}
	for _, f := range fields {
		data, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("marshal field %d: %w", f.Position, err)
		}
		if err := b.Put(itob(uint64(f.Position)), data); err != nil {
			return err
		}
	}
	return nil
}

// readForm decodes a form bucket. Big-endian keys make the cursor walk the
// fields in position order.
func readForm(fb *bbolt.Bucket) (*model.FormSchema, error) {
	h, err := getHeader(fb)
	if err != nil {
		return nil, err
	}
	f := &model.FormSchema{
		ID:          h.ID,
		Title:       h.Title,
		Description: h.Description,
		Version:     h.Version,
		CreatedAt:   h.CreatedAt,
		UpdatedAt:   h.UpdatedAt,
		Fields:      []model.FieldSpec{},
	}
	b := fb.Bucket(bucketFields)
	if b == nil {
		return f, nil
	}
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var fs model.FieldSpec
		if err := json.Unmarshal(v, &fs); err != nil {
			return nil, fmt.Errorf("%w: field %x: %v", errCorrupt, k, err)
		}
		if !bytes.Equal(k, itob(uint64(fs.Position))) {
			return nil, fmt.Errorf("%w: field key %x holds position %d", errCorrupt, k, fs.Position)
		}
		f.Fields = append(f.Fields, fs)
	}
	return f, nil
}

func countKeys(b *bbolt.Bucket) int {
	if b == nil {
		return 0
	}
	n := 0
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}

// itob returns an 8-byte big-endian representation of v.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
