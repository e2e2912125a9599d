package outbound

import "context"

type UserInfo struct {
	ID       string
	Email    string
	RealName string
}

// UserDirectory resolves messaging-platform user IDs to identities.
type UserDirectory interface {
	LookupUser(ctx context.Context, userID string) (UserInfo, error)
}
