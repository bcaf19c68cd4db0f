package match

import (
	"context"

	"rps_arena/internal/domain"
)

// UpdateFunc mutates m in place. exists is false when the record was
// absent and m is a fresh zero-value record. Returning changed=false or a
// non-nil error leaves the stored record untouched.
type UpdateFunc func(m *domain.Match, exists bool) (changed bool, err error)

// Backend is the key-value storage behind the Store.
type Backend interface {
	// Load returns a copy of the record, or exists=false if absent.
	Load(ctx context.Context, id int64) (m *domain.Match, exists bool, err error)
	// Update runs fn as an atomic read-modify-write and returns the resulting record.
	Update(ctx context.Context, id int64, fn UpdateFunc) (*domain.Match, error)
}
