package session

import (
	"context"
	"time"
)

// Store persists sessions. Concurrent writers to the same session are not
// coordinated; the last Update wins.
type Store interface {
	Create(ctx context.Context, s *Session) error
	GetByCode(ctx context.Context, code string) (*Session, error)
	List(ctx context.Context, filter Filter) ([]*Session, error)
	Update(ctx context.Context, s *Session) error

	// ListUnfinalized returns completed sessions whose results have not been
	// finalized yet, oldest completion first, skipping the first offset.
	ListUnfinalized(ctx context.Context, limit, offset int) ([]*Session, error)
	MarkFinalized(ctx context.Context, code string, at time.Time) error

	Close() error
}
