package slackbot

import (
	"context"
	"log/slog"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

// Config holds Slack bot configuration.
type Config struct {
	BotToken string
	AppToken string
}

// Bot handles incoming Slack events via Socket Mode.
type Bot struct {
	socketMode *socketmode.Client
	router     *Router
	logger     *slog.Logger
}

// NewBot creates a Socket Mode client and a Router over the same Web API client.
func NewBot(cfg Config, router func(views ViewAPI) *Router, logger *slog.Logger) *Bot {
	client := slackapi.New(cfg.BotToken, slackapi.OptionAppLevelToken(cfg.AppToken))
	return &Bot{
		socketMode: socketmode.New(client),
		router:     router(client),
		logger:     logger,
	}
}

// Start begins processing Slack events. It blocks until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	go b.handleEvents(ctx)
	return b.socketMode.RunContext(ctx)
}

// handleEvents dispatches incoming Socket Mode events to the router.
func (b *Bot) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-b.socketMode.Events:
			if !ok {
				return
			}
			b.handleEvent(ctx, evt)
		}
	}
}

func (b *Bot) handleEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnected:
		b.logger.Info("slack socket mode connected")
		return
	case socketmode.EventTypeConnectionError, socketmode.EventTypeInvalidAuth:
		b.logger.Error("slack socket mode error", "type", evt.Type, "data", evt.Data)
		return
	}
	if evt.Request == nil {
		return
	}

	switch evt.Type {
	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slackapi.SlashCommand)
		if !ok {
			b.socketMode.Ack(*evt.Request)
			return
		}
		// The trigger ID expires after three seconds, so the modal is opened
		// before acknowledging.
		if text := b.router.SlashCommand(ctx, cmd); text != "" {
			b.socketMode.Ack(*evt.Request, map[string]string{"text": text})
			return
		}
		b.socketMode.Ack(*evt.Request)

	case socketmode.EventTypeInteractive:
		ic, ok := evt.Data.(slackapi.InteractionCallback)
		if !ok {
			b.socketMode.Ack(*evt.Request)
			return
		}
		if resp := b.router.Interaction(ctx, ic); resp != nil {
			b.socketMode.Ack(*evt.Request, resp)
			return
		}
		b.socketMode.Ack(*evt.Request)

	default:
		b.socketMode.Ack(*evt.Request)
	}
}
