package slackbot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	slackapi "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v-yash/jarvis/internal/adapter/inbound/slackbot/template"
	"github.com/v-yash/jarvis/internal/domain/port/inbound"
)

type fakeViews struct {
	opened    []slackapi.ModalViewRequest
	updated   []slackapi.ModalViewRequest
	updatedID string
	trigger   string
	openErr   error
}

func (f *fakeViews) OpenViewContext(_ context.Context, triggerID string, view slackapi.ModalViewRequest) (*slackapi.ViewResponse, error) {
	f.trigger = triggerID
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened = append(f.opened, view)
	return &slackapi.ViewResponse{}, nil
}

func (f *fakeViews) UpdateViewContext(_ context.Context, view slackapi.ModalViewRequest, _, _, viewID string) (*slackapi.ViewResponse, error) {
	f.updated = append(f.updated, view)
	f.updatedID = viewID
	return &slackapi.ViewResponse{}, nil
}

type fakePort struct {
	admins      map[string]bool
	submissions []inbound.Submission
	queries     []inbound.OptionsQuery
	ack         inbound.Ack
	submitErr   error
	options     []inbound.Option
}

func (f *fakePort) HandleSubmission(_ context.Context, sub inbound.Submission) (inbound.Ack, error) {
	f.submissions = append(f.submissions, sub)
	return f.ack, f.submitErr
}

func (f *fakePort) SearchOptions(_ context.Context, q inbound.OptionsQuery) ([]inbound.Option, error) {
	f.queries = append(f.queries, q)
	return f.options, nil
}

func (f *fakePort) IsAdmin(_ context.Context, userID string) bool { return f.admins[userID] }

func newTestRouter() (*Router, *fakeViews, *fakePort) {
	views := &fakeViews{}
	port := &fakePort{admins: map[string]bool{"UADMIN": true}, ack: inbound.Ack{Accepted: true, Text: "queued"}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(views, port, []string{"default", "payments"}, logger), views, port
}

func modalView(t *testing.T, meta template.ModalState, values map[string]map[string]slackapi.BlockAction) slackapi.View {
	t.Helper()
	return slackapi.View{
		ID:              "V1",
		Hash:            "h1",
		CallbackID:      template.CallbackID,
		PrivateMetadata: meta.Encode(),
		State:           &slackapi.ViewState{Values: values},
	}
}

func selected(v string) slackapi.BlockAction {
	return slackapi.BlockAction{SelectedOption: slackapi.OptionBlockObject{Value: v}}
}

func TestSlashCommand_OpensModal(t *testing.T) {
	r, views, _ := newTestRouter()

	text := r.SlashCommand(context.Background(), slackapi.SlashCommand{
		UserID: "UADMIN", ChannelID: "C1", TriggerID: "T1", Text: "payments",
	})
	assert.Empty(t, text)
	require.Len(t, views.opened, 1)
	assert.Equal(t, "T1", views.trigger)

	state := template.DecodeModalState(views.opened[0].PrivateMetadata)
	assert.Equal(t, "C1", state.ChannelID)
	assert.Equal(t, "payments", state.Namespace)
}

func TestSlashCommand_UnknownNamespaceFallsBackToFirst(t *testing.T) {
	r, views, _ := newTestRouter()
	r.SlashCommand(context.Background(), slackapi.SlashCommand{UserID: "U1", TriggerID: "T1", Text: "kube-system"})

	require.Len(t, views.opened, 1)
	assert.Equal(t, "default", template.DecodeModalState(views.opened[0].PrivateMetadata).Namespace)
}

func TestSlashCommand_Help(t *testing.T) {
	r, views, _ := newTestRouter()
	text := r.SlashCommand(context.Background(), slackapi.SlashCommand{Command: "/jarvis", Text: "help"})
	assert.Contains(t, text, "/jarvis")
	assert.Empty(t, views.opened, "help does not open a modal")
}

func TestSlashCommand_OpenFails(t *testing.T) {
	r, views, _ := newTestRouter()
	views.openErr = errors.New("expired_trigger_id")
	text := r.SlashCommand(context.Background(), slackapi.SlashCommand{TriggerID: "T1"})
	assert.NotEmpty(t, text, "the user is told the modal could not open")
}

func TestInteraction_VerbChangeUpdatesModal(t *testing.T) {
	r, views, _ := newTestRouter()
	ic := slackapi.InteractionCallback{
		Type: slackapi.InteractionTypeBlockActions,
		User: slackapi.User{ID: "UADMIN"},
		View: modalView(t, template.ModalState{ChannelID: "C1", Namespace: "default"}, nil),
		ActionCallback: slackapi.ActionCallbacks{BlockActions: []*slackapi.BlockAction{
			{ActionID: template.ActionCommand, SelectedOption: slackapi.OptionBlockObject{Value: "scale"}},
		}},
	}

	assert.Nil(t, r.Interaction(context.Background(), ic), "block actions ack empty")
	require.Len(t, views.updated, 1)
	assert.Equal(t, "V1", views.updatedID)

	state := template.DecodeModalState(views.updated[0].PrivateMetadata)
	assert.Equal(t, "scale", state.Verb)
	assert.Equal(t, "default", state.Namespace)
	assert.Equal(t, "C1", state.ChannelID)
}

func TestInteraction_Suggestion(t *testing.T) {
	r, _, port := newTestRouter()
	port.options = []inbound.Option{{Label: "web-1", Value: "web-1"}}

	view := modalView(t, template.ModalState{Namespace: "payments", Verb: "restart"}, nil)
	resp := r.Interaction(context.Background(), slackapi.InteractionCallback{
		Type:     slackapi.InteractionTypeBlockSuggestion,
		ActionID: template.ActionResource,
		Value:    "web",
		User:     slackapi.User{ID: "U1"},
		View:     view,
	})

	require.IsType(t, &slackapi.OptionsResponse{}, resp)
	assert.Len(t, resp.(*slackapi.OptionsResponse).Options, 1)
	require.Len(t, port.queries, 1)
	assert.Equal(t, inbound.OptionsQuery{UserID: "U1", Namespace: "payments", Verb: "restart", Query: "web"}, port.queries[0])
}

func TestInteraction_SuggestionShortQuery(t *testing.T) {
	r, _, port := newTestRouter()
	resp := r.Interaction(context.Background(), slackapi.InteractionCallback{
		Type:     slackapi.InteractionTypeBlockSuggestion,
		ActionID: template.ActionResource,
		Value:    "we",
	})
	require.IsType(t, &slackapi.OptionsResponse{}, resp)
	assert.Empty(t, resp.(*slackapi.OptionsResponse).Options)
	assert.Empty(t, port.queries, "short queries do not search")
}

func TestInteraction_Submission(t *testing.T) {
	values := map[string]map[string]slackapi.BlockAction{
		template.BlockNamespace: {template.ActionNamespace: selected("payments")},
		template.BlockCommand:   {template.ActionCommand: selected("scale")},
		template.BlockResource:  {template.ActionResource: selected("api")},
		template.BlockReplicas:  {template.ActionReplicas: {Value: "4"}},
	}

	tests := []struct {
		name       string
		ack        inbound.Ack
		submitErr  error
		wantAction slackapi.ViewResponseAction
	}{
		{"accepted", inbound.Ack{Accepted: true}, nil, slackapi.RAClear},
		{"busy", inbound.Ack{Accepted: false, Text: "busy"}, nil, slackapi.RAErrors},
		{"error", inbound.Ack{}, errors.New("boom"), slackapi.RAErrors},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, port := newTestRouter()
			port.ack, port.submitErr = tt.ack, tt.submitErr

			resp := r.Interaction(context.Background(), slackapi.InteractionCallback{
				Type: slackapi.InteractionTypeViewSubmission,
				User: slackapi.User{ID: "UADMIN", Name: "admin"},
				View: modalView(t, template.ModalState{ChannelID: "C9"}, values),
			})
			require.IsType(t, &slackapi.ViewSubmissionResponse{}, resp)
			assert.Equal(t, tt.wantAction, resp.(*slackapi.ViewSubmissionResponse).ResponseAction)
			require.Len(t, port.submissions, 1)
			assert.Equal(t, inbound.Submission{
				UserID: "UADMIN", UserName: "admin", ChannelID: "C9",
				Namespace: "payments", Verb: "scale", Resource: "api", Replicas: "4",
			}, port.submissions[0])
		})
	}
}

func TestInteraction_IncompleteSubmission(t *testing.T) {
	r, _, port := newTestRouter()
	values := map[string]map[string]slackapi.BlockAction{
		template.BlockNamespace: {template.ActionNamespace: selected("default")},
		template.BlockCommand:   {template.ActionCommand: selected("describe")},
	}
	resp := r.Interaction(context.Background(), slackapi.InteractionCallback{
		Type: slackapi.InteractionTypeViewSubmission,
		View: modalView(t, template.ModalState{}, values),
	})
	require.IsType(t, &slackapi.ViewSubmissionResponse{}, resp)
	vr := resp.(*slackapi.ViewSubmissionResponse)
	assert.Equal(t, slackapi.RAErrors, vr.ResponseAction)
	assert.NotEmpty(t, vr.Errors[template.BlockResource])
	assert.Empty(t, port.submissions, "an incomplete form is not submitted")
}

func TestInteraction_OtherCallbackIgnored(t *testing.T) {
	r, _, port := newTestRouter()
	view := modalView(t, template.ModalState{}, nil)
	view.CallbackID = "something_else"
	resp := r.Interaction(context.Background(), slackapi.InteractionCallback{
		Type: slackapi.InteractionTypeViewSubmission,
		View: view,
	})
	assert.Nil(t, resp)
	assert.Empty(t, port.submissions, "foreign callbacks do not submit")
}
