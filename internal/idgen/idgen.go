// Package idgen mints the record IDs used by forms and submissions: a kind
// prefix followed by a nanoid.
package idgen

import (
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Kind is the record type an ID belongs to.
type Kind int

const (
	Unknown Kind = iota
	Form
	Submission
)

// Prefix returns the ID prefix for k.
func (k Kind) Prefix() string {
	switch k {
	case Form:
		return "fm-"
	case Submission:
		return "sb-"
	}
	return ""
}

func (k Kind) String() string {
	switch k {
	case Form:
		return "form"
	case Submission:
		return "submission"
	}
	return "unknown"
}

const (
	alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// Length is the number of random characters after the prefix.
	Length = 10
)

// New returns a fresh ID of the given kind.
func New(k Kind) (string, error) {
	prefix := k.Prefix()
	if prefix == "" {
		return "", fmt.Errorf("idgen: no prefix for kind %d", int(k))
	}
	id, err := nanoid.Generate(alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// NewFormID returns a new form ID.
func NewFormID() (string, error) { return New(Form) }

// NewSubmissionID returns a new submission ID.
func NewSubmissionID() (string, error) { return New(Submission) }

// KindOf reports which kind of record id names, judged by its prefix.
func KindOf(id string) Kind {
	for _, k := range []Kind{Form, Submission} {
		if strings.HasPrefix(id, k.Prefix()) && len(id) > len(k.Prefix()) {
			return k
		}
	}
	return Unknown
}
