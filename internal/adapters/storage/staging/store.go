package staging

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no blob exists for a preview reference.
var ErrNotFound = errors.New("staged image not found")

// Blob is one staged image's bytes, keyed by its preview reference.
type Blob struct {
	Ref         string
	Owner       string // console session that staged it
	Filename    string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

// Store persists staged image bytes between requests.
type Store interface {
	Save(ctx context.Context, b Blob) error
	Get(ctx context.Context, ref string) (Blob, error)
	Delete(ctx context.Context, ref string) error
	DeleteByOwner(ctx context.Context, owner string) (int64, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Count(ctx context.Context, owner string) (int, error)
}
