package webhook

import (
	"context"
	"encoding/json"
	"net/http"

	slackapi "github.com/slack-go/slack"
)

// SlackRouter is implemented by slackbot.Router.
type SlackRouter interface {
	SlashCommand(ctx context.Context, cmd slackapi.SlashCommand) string
	Interaction(ctx context.Context, ic slackapi.InteractionCallback) any
}

// Handler serves the Slack HTTP endpoints used when Socket Mode is off.
type Handler struct {
	router SlackRouter
}

func NewHandler(router SlackRouter) *Handler {
	return &Handler{router: router}
}

// Commands handles POST /slack/commands.
func (h *Handler) Commands(w http.ResponseWriter, r *http.Request) {
	cmd, err := slackapi.SlashCommandParse(r)
	if err != nil {
		http.Error(w, "invalid slash command payload", http.StatusBadRequest)
		return
	}

	text := h.router.SlashCommand(r.Context(), cmd)
	if text == "" {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"response_type": "ephemeral",
		"text":          text,
	})
}

// Interactions handles POST /slack/interactions and POST /slack/options. Both
// carry a form-encoded "payload" field.
func (h *Handler) Interactions(w http.ResponseWriter, r *http.Request) {
	ic, err := slackapi.InteractionCallbackParse(r)
	if err != nil {
		http.Error(w, "invalid interaction payload", http.StatusBadRequest)
		return
	}

	resp := h.router.Interaction(r.Context(), ic)
	if resp == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthHandler returns an http.HandlerFunc for the /health endpoint.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
