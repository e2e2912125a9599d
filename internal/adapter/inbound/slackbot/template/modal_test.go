package template_test

import (
	"strings"
	"testing"

	slackapi "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v-yash/jarvis/internal/adapter/inbound/slackbot/template"
	"github.com/v-yash/jarvis/internal/domain/port/inbound"
)

func findInput(t *testing.T, view slackapi.ModalViewRequest, blockID string) *slackapi.InputBlock {
	t.Helper()
	for _, b := range view.Blocks.BlockSet {
		if in, ok := b.(*slackapi.InputBlock); ok && in.BlockID == blockID {
			return in
		}
	}
	return nil
}

func verbValues(t *testing.T, view slackapi.ModalViewRequest) []string {
	t.Helper()
	in := findInput(t, view, template.BlockCommand)
	require.NotNil(t, in, "command block missing")
	require.IsType(t, &slackapi.RadioButtonsBlockElement{}, in.Element)

	var out []string
	for _, o := range in.Element.(*slackapi.RadioButtonsBlockElement).Options {
		out = append(out, o.Value)
	}
	return out
}

func TestBuildCommandModal_Initial(t *testing.T) {
	state := template.ModalState{ChannelID: "C1", Namespace: "default"}
	view := template.BuildCommandModal(state, []string{"default", "payments"}, false)

	assert.Equal(t, template.CallbackID, view.CallbackID)
	assert.Len(t, view.Blocks.BlockSet, 2, "namespace and command blocks only")
	assert.Equal(t, state, template.DecodeModalState(view.PrivateMetadata))

	ns := findInput(t, view, template.BlockNamespace)
	require.NotNil(t, ns)
	assert.True(t, ns.DispatchAction, "namespace block dispatches actions")
	require.IsType(t, &slackapi.SelectBlockElement{}, ns.Element)
	sel := ns.Element.(*slackapi.SelectBlockElement)
	require.NotNil(t, sel.InitialOption)
	assert.Equal(t, "default", sel.InitialOption.Value)
}

func TestBuildCommandModal_AdminVerbs(t *testing.T) {
	user := verbValues(t, template.BuildCommandModal(template.ModalState{}, nil, false))
	admin := verbValues(t, template.BuildCommandModal(template.ModalState{}, nil, true))

	assert.Equal(t, []string{"get", "describe", "restart"}, user)
	assert.Equal(t, []string{"get", "describe", "restart", "scale", "exec"}, admin)
}

func TestBuildCommandModal_PerVerbBlocks(t *testing.T) {
	tests := []struct {
		verb          string
		wantBlock     string
		wantOptional  bool
		resourceLabel string
	}{
		{"get", "", true, "Pod"},
		{"describe", "", false, "Pod"},
		{"restart", template.BlockWarning, false, "Deployment"},
		{"scale", template.BlockReplicas, false, "Deployment"},
		{"exec", template.BlockExec, false, "Pod"},
	}
	for _, tt := range tests {
		t.Run(tt.verb, func(t *testing.T) {
			view := template.BuildCommandModal(template.ModalState{Verb: tt.verb}, []string{"default"}, true)

			res := findInput(t, view, template.BlockResource)
			require.NotNil(t, res, "resource block missing")
			assert.Equal(t, tt.wantOptional, res.Optional)
			assert.Equal(t, tt.resourceLabel, res.Label.Text)

			require.IsType(t, &slackapi.SelectBlockElement{}, res.Element)
			sel := res.Element.(*slackapi.SelectBlockElement)
			assert.Equal(t, slackapi.OptTypeExternal, sel.Type)
			require.NotNil(t, sel.MinQueryLength)
			assert.Equal(t, 3, *sel.MinQueryLength)

			if tt.wantBlock == "" {
				return
			}
			var ids []string
			for _, b := range view.Blocks.BlockSet {
				switch blk := b.(type) {
				case *slackapi.InputBlock:
					ids = append(ids, blk.BlockID)
				case *slackapi.SectionBlock:
					ids = append(ids, blk.BlockID)
				}
			}
			assert.Contains(t, ids, tt.wantBlock)
		})
	}
}

func TestDecodeModalState_Malformed(t *testing.T) {
	assert.Equal(t, template.ModalState{}, template.DecodeModalState("{not json"))
}

func stateView(values map[string]map[string]slackapi.BlockAction) slackapi.View {
	return slackapi.View{State: &slackapi.ViewState{Values: values}}
}

func TestReadValues(t *testing.T) {
	view := stateView(map[string]map[string]slackapi.BlockAction{
		template.BlockNamespace: {template.ActionNamespace: {SelectedOption: slackapi.OptionBlockObject{Value: "payments"}}},
		template.BlockCommand:   {template.ActionCommand: {SelectedOption: slackapi.OptionBlockObject{Value: "exec"}}},
		template.BlockResource:  {template.ActionResource: {SelectedOption: slackapi.OptionBlockObject{Value: "api-7d9f"}}},
		template.BlockExec:      {template.ActionExec: {Value: "  ls -la /tmp "}},
	})

	want := template.Values{Namespace: "payments", Verb: "exec", Resource: "api-7d9f", ExecLine: "ls -la /tmp"}
	assert.Equal(t, want, template.ReadValues(view))
	assert.Equal(t, template.Values{}, template.ReadValues(slackapi.View{}), "nil state gives empty values")
}

func TestCheckValues(t *testing.T) {
	tests := []struct {
		name   string
		values template.Values
		want   []string
	}{
		{"complete get", template.Values{Namespace: "default", Verb: "get"}, nil},
		{"missing namespace and verb", template.Values{}, []string{template.BlockNamespace, template.BlockCommand}},
		{"describe needs resource", template.Values{Namespace: "default", Verb: "describe"}, []string{template.BlockResource}},
		{"scale needs replicas", template.Values{Namespace: "default", Verb: "scale", Resource: "web"}, []string{template.BlockReplicas}},
		{"exec needs command", template.Values{Namespace: "default", Verb: "exec", Resource: "web-1"}, []string{template.BlockExec}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := template.CheckValues(tt.values)
			require.Len(t, errs, len(tt.want))
			for _, k := range tt.want {
				assert.NotEmpty(t, errs[k], "missing error for %s", k)
			}
		})
	}
}

func TestBuildOptions(t *testing.T) {
	long := strings.Repeat("a", 90)
	resp := template.BuildOptions([]inbound.Option{
		{Label: "web-1", Value: "web-1"},
		{Label: long, Value: long},
	})
	require.Len(t, resp.Options, 2)
	assert.Equal(t, "web-1", resp.Options[0].Value)
	assert.Equal(t, "web-1", resp.Options[0].Text.Text)
	assert.Len(t, resp.Options[1].Text.Text, 75, "long labels are truncated")
	assert.Equal(t, long, resp.Options[1].Value, "values are kept whole")
}
