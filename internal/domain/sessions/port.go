package sessions

import "context"

// Directory port, read-only access to sessions scoped to their owner.
// A session owned by another user is reported exactly like a missing one.
type Directory interface {
	// FindOwned returns nil, nil when the session is missing or not owned by userID.
	FindOwned(ctx context.Context, userID, sessionID string) (*Session, error)
	ListOwned(ctx context.Context, userID string, sessionIDs []string) ([]Session, error)
	ListIDsByOwner(ctx context.Context, userID string) ([]string, error)
}
