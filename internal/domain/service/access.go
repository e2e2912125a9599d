package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/v-yash/jarvis/internal/domain/model"
	"github.com/v-yash/jarvis/internal/domain/port/outbound"
	"github.com/v-yash/jarvis/pkg/apierror"
)

const (
	msgNotAuthorized = "You are not authorized to use this bot."
	msgAdminOnly     = "Only administrators can run %s commands."
)

type AccessConfig struct {
	AllowedUsers []string
	AdminUsers   []string
}

// AccessPolicy decides who may issue which verbs. Users are identified by
// email so the lists survive Slack workspace migrations.
type AccessPolicy struct {
	directory outbound.UserDirectory
	allowed   map[string]bool
	admins    map[string]bool
}

func NewAccessPolicy(directory outbound.UserDirectory, cfg AccessConfig) *AccessPolicy {
	allowed := toSet(cfg.AllowedUsers)
	admins := toSet(cfg.AdminUsers)
	for a := range admins {
		allowed[a] = true
	}
	return &AccessPolicy{directory: directory, allowed: allowed, admins: admins}
}

// Authorize resolves userID and checks it against the allow and admin lists.
func (p *AccessPolicy) Authorize(ctx context.Context, userID string, verb model.Verb) (outbound.UserInfo, error) {
	user, err := p.directory.LookupUser(ctx, userID)
	if err != nil {
		return outbound.UserInfo{}, apierror.Wrap(apierror.KindForbidden, "Could not verify your identity", err)
	}
	email := strings.ToLower(user.Email)
	if email == "" || !p.allowed[email] {
		return user, apierror.Forbidden(msgNotAuthorized)
	}
	if verb.RequiresAdmin() && !p.admins[email] {
		return user, apierror.Forbidden(fmt.Sprintf(msgAdminOnly, verb))
	}
	return user, nil
}

// IsAdmin reports whether userID resolves to an administrator. Lookup
// failures count as not admin.
func (p *AccessPolicy) IsAdmin(ctx context.Context, userID string) bool {
	user, err := p.directory.LookupUser(ctx, userID)
	if err != nil {
		return false
	}
	return p.admins[strings.ToLower(user.Email)]
}
