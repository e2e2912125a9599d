package slack

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/v-yash/jarvis/internal/domain/port/outbound"
)

const defaultUserCacheTTL = time.Hour

var userIDPattern = regexp.MustCompile(`^[UW][A-Z0-9]{2,}$`)

type userAPI interface {
	GetUserInfoContext(ctx context.Context, user string) (*slackapi.User, error)
}

type cachedUser struct {
	info    outbound.UserInfo
	expires time.Time
}

// Directory resolves Slack user IDs to profile info, caching lookups.
type Directory struct {
	client userAPI
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	users map[string]cachedUser
}

var _ outbound.UserDirectory = (*Directory)(nil)

// NewDirectory creates a Directory. A zero ttl uses one hour.
func NewDirectory(botToken string, ttl time.Duration) *Directory {
	return newDirectory(slackapi.New(botToken), ttl)
}

func newDirectory(client userAPI, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = defaultUserCacheTTL
	}
	return &Directory{
		client: client,
		ttl:    ttl,
		now:    time.Now,
		users:  make(map[string]cachedUser),
	}
}

func (d *Directory) LookupUser(ctx context.Context, userID string) (outbound.UserInfo, error) {
	if !userIDPattern.MatchString(userID) {
		return outbound.UserInfo{}, fmt.Errorf("invalid slack user id %q", userID)
	}

	now := d.now()
	d.mu.Lock()
	c, ok := d.users[userID]
	d.mu.Unlock()
	if ok && now.Before(c.expires) {
		return c.info, nil
	}

	u, err := d.client.GetUserInfoContext(ctx, userID)
	if err != nil {
		return outbound.UserInfo{}, fmt.Errorf("slack users.info %s: %w", userID, err)
	}
	info := outbound.UserInfo{ID: u.ID, Email: u.Profile.Email, RealName: u.RealName}
	if info.RealName == "" {
		info.RealName = u.Profile.RealName
	}
	if info.Email == "" {
		return outbound.UserInfo{}, fmt.Errorf("slack user %s has no email (is users:read.email granted?)", userID)
	}

	d.mu.Lock()
	d.users[userID] = cachedUser{info: info, expires: now.Add(d.ttl)}
	d.mu.Unlock()
	return info, nil
}
