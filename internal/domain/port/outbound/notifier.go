package outbound

import "context"

type NotificationLevel string

const (
	NotificationInfo    NotificationLevel = "info"
	NotificationSuccess NotificationLevel = "success"
	NotificationWarning NotificationLevel = "warning"
	NotificationError   NotificationLevel = "error"
)

// Notifier delivers text to a user or channel on the messaging platform.
// Target is a user ID for direct messages or a channel ID.
type Notifier interface {
	SendMessage(ctx context.Context, target string, message string, level NotificationLevel) error
}
