package slackbot

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	slackapi "github.com/slack-go/slack"

	"github.com/v-yash/jarvis/internal/adapter/inbound/slackbot/template"
	"github.com/v-yash/jarvis/internal/domain/port/inbound"
)

const msgSubmitFailed = "Something went wrong while queueing your command. Please try again."

// ViewAPI is the subset of the Slack Web API used to show the command modal.
type ViewAPI interface {
	OpenViewContext(ctx context.Context, triggerID string, view slackapi.ModalViewRequest) (*slackapi.ViewResponse, error)
	UpdateViewContext(ctx context.Context, view slackapi.ModalViewRequest, externalID, hash, viewID string) (*slackapi.ViewResponse, error)
}

// Router translates Slack slash commands and interaction payloads into
// CommandPort calls. It is shared by the Socket Mode bot and the HTTP handlers.
type Router struct {
	views      ViewAPI
	port       inbound.CommandPort
	namespaces []string
	logger     *slog.Logger
}

func NewRouter(views ViewAPI, port inbound.CommandPort, namespaces []string, logger *slog.Logger) *Router {
	return &Router{views: views, port: port, namespaces: namespaces, logger: logger}
}

// SlashCommand opens the command modal. The returned text, if any, is shown
// to the invoking user as the command response.
func (r *Router) SlashCommand(ctx context.Context, cmd slackapi.SlashCommand) string {
	arg := strings.TrimSpace(strings.ToLower(cmd.Text))
	if arg == "help" {
		return helpText(cmd.Command)
	}

	state := template.ModalState{ChannelID: cmd.ChannelID}
	switch {
	case arg != "" && slices.Contains(r.namespaces, arg):
		state.Namespace = arg
	case len(r.namespaces) > 0:
		state.Namespace = r.namespaces[0]
	}

	view := template.BuildCommandModal(state, r.namespaces, r.port.IsAdmin(ctx, cmd.UserID))
	if _, err := r.views.OpenViewContext(ctx, cmd.TriggerID, view); err != nil {
		r.logger.Error("failed to open command modal", "user", cmd.UserID, "error", err)
		return ":x: Could not open the command form. Please try again."
	}
	return ""
}

// Interaction handles an interactive payload and returns the body to
// acknowledge it with, or nil for an empty acknowledgement.
func (r *Router) Interaction(ctx context.Context, ic slackapi.InteractionCallback) any {
	switch ic.Type {
	case slackapi.InteractionTypeBlockActions:
		r.blockActions(ctx, ic)
		return nil
	case slackapi.InteractionTypeBlockSuggestion:
		return r.suggest(ctx, ic)
	case slackapi.InteractionTypeViewSubmission:
		if ic.View.CallbackID != template.CallbackID {
			return nil
		}
		return r.submit(ctx, ic)
	default:
		return nil
	}
}

// currentValues merges the form state with what private_metadata remembers.
func currentValues(view slackapi.View) (template.ModalState, template.Values) {
	state := template.DecodeModalState(view.PrivateMetadata)
	values := template.ReadValues(view)
	if values.Namespace == "" {
		values.Namespace = state.Namespace
	}
	if values.Verb == "" {
		values.Verb = state.Verb
	}
	return state, values
}

func (r *Router) blockActions(ctx context.Context, ic slackapi.InteractionCallback) {
	state, values := currentValues(ic.View)
	changed := false
	for _, a := range ic.ActionCallback.BlockActions {
		switch a.ActionID {
		case template.ActionCommand:
			values.Verb = a.SelectedOption.Value
			changed = true
		case template.ActionNamespace:
			values.Namespace = a.SelectedOption.Value
			changed = true
		}
	}
	if !changed || ic.View.ID == "" {
		return
	}

	state.Namespace = values.Namespace
	state.Verb = values.Verb
	view := template.BuildCommandModal(state, r.namespaces, r.port.IsAdmin(ctx, ic.User.ID))
	if _, err := r.views.UpdateViewContext(ctx, view, "", ic.View.Hash, ic.View.ID); err != nil {
		r.logger.Warn("failed to update command modal", "user", ic.User.ID, "view", ic.View.ID, "error", err)
	}
}

func (r *Router) suggest(ctx context.Context, ic slackapi.InteractionCallback) *slackapi.OptionsResponse {
	if ic.ActionID != template.ActionResource {
		return &slackapi.OptionsResponse{}
	}
	query := strings.TrimSpace(ic.Value)
	if len(query) < template.MinSearchLength {
		return &slackapi.OptionsResponse{}
	}

	_, values := currentValues(ic.View)
	opts, err := r.port.SearchOptions(ctx, inbound.OptionsQuery{
		UserID:    ic.User.ID,
		Verb:      values.Verb,
		Namespace: values.Namespace,
		Query:     query,
	})
	if err != nil {
		r.logger.Warn("resource search failed", "query", query, "error", err)
		return &slackapi.OptionsResponse{}
	}
	return template.BuildOptions(opts)
}

func (r *Router) submit(ctx context.Context, ic slackapi.InteractionCallback) *slackapi.ViewSubmissionResponse {
	state, values := currentValues(ic.View)
	if errs := template.CheckValues(values); len(errs) > 0 {
		return slackapi.NewErrorsViewSubmissionResponse(errs)
	}

	ack, err := r.port.HandleSubmission(ctx, inbound.Submission{
		UserID:    ic.User.ID,
		UserName:  ic.User.Name,
		ChannelID: state.ChannelID,
		Namespace: values.Namespace,
		Verb:      values.Verb,
		Resource:  values.Resource,
		Replicas:  values.Replicas,
		ExecLine:  values.ExecLine,
	})
	if err != nil {
		r.logger.Error("submission failed", "user", ic.User.ID, "error", err)
		return slackapi.NewErrorsViewSubmissionResponse(map[string]string{template.BlockCommand: msgSubmitFailed})
	}
	if !ack.Accepted {
		return slackapi.NewErrorsViewSubmissionResponse(map[string]string{template.BlockCommand: ack.Text})
	}
	return slackapi.NewClearViewSubmissionResponse()
}

func helpText(command string) string {
	if command == "" {
		command = "/k8s"
	}
	return strings.Join([]string{
		":robot_face: *Kubernetes Commander*",
		"",
		"• `" + command + "` opens the command form",
		"• `" + command + " <namespace>` opens it with the namespace preselected",
		"• `" + command + " help` shows this message",
		"",
		"Results arrive as a direct message. Scale and exec are limited to administrators.",
	}, "\n")
}
