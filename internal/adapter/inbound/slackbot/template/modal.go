package template

import (
	"encoding/json"
	"strings"

	slackapi "github.com/slack-go/slack"

	"github.com/v-yash/jarvis/internal/domain/model"
	"github.com/v-yash/jarvis/internal/domain/port/inbound"
)

// Block and action IDs of the command modal.
const (
	CallbackID = "k8s_command"

	BlockNamespace  = "namespace"
	ActionNamespace = "namespace_select"
	BlockCommand    = "command_type"
	ActionCommand   = "command_select"
	BlockResource   = "resource_name"
	ActionResource  = "resource_search"
	BlockReplicas   = "replica_input"
	ActionReplicas  = "replica_count"
	BlockExec       = "exec_input"
	ActionExec      = "exec_command"
	BlockWarning    = "restart_warning"
)

// MinSearchLength is the number of characters Slack waits for before asking
// for resource suggestions.
const MinSearchLength = 3

// ModalState travels in the modal's private_metadata between interactions.
type ModalState struct {
	ChannelID string `json:"channel_id"`
	Namespace string `json:"namespace,omitempty"`
	Verb      string `json:"verb,omitempty"`
}

// Encode renders the state as private_metadata.
func (s ModalState) Encode() string {
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(b)
}

// DecodeModalState parses private_metadata. Malformed input yields a zero state.
func DecodeModalState(raw string) ModalState {
	var s ModalState
	if raw == "" {
		return s
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return ModalState{}
	}
	return s
}

var verbLabels = []struct {
	verb  model.Verb
	label string
}{
	{model.VerbGet, "Get pods"},
	{model.VerbDescribe, "Describe pod"},
	{model.VerbRestart, "Restart deployment"},
	{model.VerbScale, "Scale deployment"},
	{model.VerbExec, "Exec into pod"},
}

func plain(text string) *slackapi.TextBlockObject {
	return slackapi.NewTextBlockObject(slackapi.PlainTextType, text, false, false)
}

func option(value, label string) *slackapi.OptionBlockObject {
	return slackapi.NewOptionBlockObject(value, plain(label), nil)
}

// BuildCommandModal renders the command form for the given state. Admin-only
// verbs are offered to admins only.
func BuildCommandModal(state ModalState, namespaces []string, admin bool) slackapi.ModalViewRequest {
	blocks := []slackapi.Block{namespaceBlock(state.Namespace, namespaces), verbBlock(state.Verb, admin)}

	verb, _ := model.ParseVerb(state.Verb)
	if verb != "" {
		blocks = append(blocks, resourceBlock(verb))
	}
	switch verb {
	case model.VerbRestart:
		blocks = append(blocks, slackapi.NewSectionBlock(
			slackapi.NewTextBlockObject(slackapi.MarkdownType,
				":warning: Restarting replaces every pod of the deployment.", false, false),
			nil, nil, slackapi.SectionBlockOptionBlockID(BlockWarning)))
	case model.VerbScale:
		input := slackapi.NewPlainTextInputBlockElement(plain("1-10"), ActionReplicas)
		blocks = append(blocks, slackapi.NewInputBlock(BlockReplicas, plain("Replicas"), nil, input))
	case model.VerbExec:
		input := slackapi.NewPlainTextInputBlockElement(plain("ls -la /app"), ActionExec)
		blocks = append(blocks, slackapi.NewInputBlock(BlockExec, plain("Command"),
			plain("Runs without a shell unless it needs pipes or redirects."), input))
	}

	return slackapi.ModalViewRequest{
		Type:            slackapi.VTModal,
		CallbackID:      CallbackID,
		Title:           plain("Kubernetes Commander"),
		Submit:          plain("Run"),
		Close:           plain("Cancel"),
		PrivateMetadata: state.Encode(),
		Blocks:          slackapi.Blocks{BlockSet: blocks},
	}
}

func namespaceBlock(selected string, namespaces []string) slackapi.Block {
	opts := make([]*slackapi.OptionBlockObject, 0, len(namespaces))
	var initial *slackapi.OptionBlockObject
	for _, ns := range namespaces {
		o := option(ns, ns)
		if ns == selected {
			initial = o
		}
		opts = append(opts, o)
	}
	sel := slackapi.NewOptionsSelectBlockElement(slackapi.OptTypeStatic, plain("Namespace"), ActionNamespace, opts...)
	sel.InitialOption = initial
	return slackapi.NewInputBlock(BlockNamespace, plain("Namespace"), nil, sel).WithDispatchAction(true)
}

func verbBlock(selected string, admin bool) slackapi.Block {
	var opts []*slackapi.OptionBlockObject
	var initial *slackapi.OptionBlockObject
	for _, v := range verbLabels {
		if v.verb.RequiresAdmin() && !admin {
			continue
		}
		o := option(string(v.verb), v.label)
		if string(v.verb) == selected {
			initial = o
		}
		opts = append(opts, o)
	}
	radio := slackapi.NewRadioButtonsBlockElement(ActionCommand, opts...)
	radio.InitialOption = initial
	return slackapi.NewInputBlock(BlockCommand, plain("Command"), nil, radio).WithDispatchAction(true)
}

func resourceBlock(verb model.Verb) slackapi.Block {
	label := "Pod"
	if verb == model.VerbRestart || verb == model.VerbScale {
		label = "Deployment"
	}
	minLen := MinSearchLength
	sel := slackapi.NewOptionsSelectBlockElement(slackapi.OptTypeExternal,
		plain("Type at least 3 characters"), ActionResource)
	sel.MinQueryLength = &minLen

	block := slackapi.NewInputBlock(BlockResource, plain(label), nil, sel)
	if verb == model.VerbGet {
		block.Hint = plain("Leave empty to list every pod in the namespace.")
		block = block.WithOptional(true)
	}
	return block
}

// Values are the fields read from a submitted modal.
type Values struct {
	Namespace string
	Verb      string
	Resource  string
	Replicas  string
	ExecLine  string
}

// ReadValues extracts the form values from a view's state.
func ReadValues(view slackapi.View) Values {
	var v Values
	if view.State == nil {
		return v
	}
	get := func(block, action string) slackapi.BlockAction {
		return view.State.Values[block][action]
	}
	v.Namespace = get(BlockNamespace, ActionNamespace).SelectedOption.Value
	v.Verb = get(BlockCommand, ActionCommand).SelectedOption.Value
	v.Resource = get(BlockResource, ActionResource).SelectedOption.Value
	v.Replicas = strings.TrimSpace(get(BlockReplicas, ActionReplicas).Value)
	v.ExecLine = strings.TrimSpace(get(BlockExec, ActionExec).Value)
	return v
}

// CheckValues returns per-block error messages for a structurally incomplete form.
func CheckValues(v Values) map[string]string {
	errs := make(map[string]string)
	if v.Namespace == "" {
		errs[BlockNamespace] = "Select a namespace."
	}
	verb, ok := model.ParseVerb(v.Verb)
	if !ok {
		errs[BlockCommand] = "Select a command."
		return errs
	}
	if verb != model.VerbGet && v.Resource == "" {
		errs[BlockResource] = "Select a resource."
	}
	if verb == model.VerbScale && v.Replicas == "" {
		errs[BlockReplicas] = "Enter a replica count."
	}
	if verb == model.VerbExec && v.ExecLine == "" {
		errs[BlockExec] = "Enter a command to run."
	}
	return errs
}

// BuildOptions converts search results into an external select response.
func BuildOptions(opts []inbound.Option) *slackapi.OptionsResponse {
	out := make([]*slackapi.OptionBlockObject, 0, len(opts))
	for _, o := range opts {
		out = append(out, option(o.Value, truncateLabel(o.Label)))
	}
	return &slackapi.OptionsResponse{Options: out}
}

// Slack rejects option labels longer than 75 characters.
func truncateLabel(s string) string {
	const max = 75
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
