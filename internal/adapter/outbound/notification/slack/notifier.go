package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/v-yash/jarvis/internal/domain/port/outbound"
)

const defaultUploadThreshold = 3500

// Config holds Slack notifier configuration.
type Config struct {
	BotToken string
	// UploadThreshold is the message length above which the text is sent as
	// a file snippet instead of a chat message.
	UploadThreshold int
}

// api is the subset of the Slack Web API the notifier uses.
type api interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
	OpenConversationContext(ctx context.Context, params *slackapi.OpenConversationParameters) (*slackapi.Channel, bool, bool, error)
	UploadFileContext(ctx context.Context, params slackapi.UploadFileParameters) (*slackapi.FileSummary, error)
}

// Notifier implements outbound.Notifier via the Slack API.
type Notifier struct {
	client api
	config Config
	logger *slog.Logger

	mu  sync.Mutex
	dms map[string]string // user ID -> DM channel ID
}

var (
	_ outbound.Notifier = (*Notifier)(nil)
	_ api               = (*slackapi.Client)(nil)
)

// NewNotifier creates a new Slack Notifier.
func NewNotifier(cfg Config, logger *slog.Logger) *Notifier {
	return newNotifier(slackapi.New(cfg.BotToken), cfg, logger)
}

func newNotifier(client api, cfg Config, logger *slog.Logger) *Notifier {
	if cfg.UploadThreshold <= 0 {
		cfg.UploadThreshold = defaultUploadThreshold
	}
	return &Notifier{
		client: client,
		config: cfg,
		logger: logger,
		dms:    make(map[string]string),
	}
}

// SendMessage posts message to target, which is a user ID (delivered as a
// direct message) or a channel ID. Long messages are uploaded as a snippet.
func (n *Notifier) SendMessage(ctx context.Context, target string, message string, level outbound.NotificationLevel) error {
	channel, err := n.resolveChannel(ctx, target)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("%s %s", levelEmoji(level), message)
	if len(text) > n.config.UploadThreshold {
		return n.upload(ctx, channel, message, level)
	}

	_, _, err = n.client.PostMessageContext(ctx, channel, slackapi.MsgOptionText(text, false))
	if err != nil {
		if isSlackError(err, "not_in_channel", "channel_not_found") {
			n.logger.Warn("bot cannot post to channel, skipping", "channel", channel, "error", err)
			return nil
		}
		return fmt.Errorf("slack SendMessage: %w", err)
	}
	return nil
}

func (n *Notifier) upload(ctx context.Context, channel, message string, level outbound.NotificationLevel) error {
	comment, body, _ := strings.Cut(message, "\n")
	body = strings.TrimSpace(strings.Trim(strings.TrimSpace(body), "`"))
	if body == "" {
		body = message
	}
	_, err := n.client.UploadFileContext(ctx, slackapi.UploadFileParameters{
		Channel:        channel,
		Content:        body,
		FileSize:       len(body),
		Filename:       fmt.Sprintf("output-%s.txt", time.Now().UTC().Format("20060102-150405")),
		Title:          "Command output",
		InitialComment: fmt.Sprintf("%s %s", levelEmoji(level), comment),
	})
	if err != nil {
		return fmt.Errorf("slack upload: %w", err)
	}
	return nil
}

// resolveChannel opens (and remembers) a DM channel for user IDs.
func (n *Notifier) resolveChannel(ctx context.Context, target string) (string, error) {
	if !isUserID(target) {
		return target, nil
	}

	n.mu.Lock()
	ch, ok := n.dms[target]
	n.mu.Unlock()
	if ok {
		return ch, nil
	}

	channel, _, _, err := n.client.OpenConversationContext(ctx, &slackapi.OpenConversationParameters{
		Users: []string{target},
	})
	if err != nil {
		return "", fmt.Errorf("slack open DM with %s: %w", target, err)
	}

	n.mu.Lock()
	n.dms[target] = channel.ID
	n.mu.Unlock()
	return channel.ID, nil
}

func isUserID(id string) bool {
	return len(id) > 1 && (id[0] == 'U' || id[0] == 'W')
}

func isSlackError(err error, codes ...string) bool {
	var resp slackapi.SlackErrorResponse
	if !errors.As(err, &resp) {
		return false
	}
	for _, c := range codes {
		if resp.Err == c {
			return true
		}
	}
	return false
}

// levelEmoji maps a notification level to an emoji.
func levelEmoji(level outbound.NotificationLevel) string {
	switch level {
	case outbound.NotificationSuccess:
		return ":white_check_mark:"
	case outbound.NotificationWarning:
		return ":warning:"
	case outbound.NotificationError:
		return ":x:"
	default:
		return ":information_source:"
	}
}
