package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v-yash/jarvis/internal/domain/model"
	"github.com/v-yash/jarvis/pkg/apierror"
)

func TestValidate_Accepts(t *testing.T) {
	cases := []struct {
		name   string
		tokens []string
		want   model.Command
	}{
		{
			name:   "get pod by name with kubectl prefix",
			tokens: []string{"kubectl", "get", "pods/web-1"},
			want:   model.Command{Verb: model.VerbGet, ResourceType: model.ResourcePod, ResourceName: "web-1"},
		},
		{
			name:   "get pods without name",
			tokens: []string{"get", "pods", "-n", "prod"},
			want:   model.Command{Verb: model.VerbGet, ResourceType: model.ResourcePod, Namespace: "prod"},
		},
		{
			name:   "get namespaces",
			tokens: []string{"get", "ns"},
			want:   model.Command{Verb: model.VerbGet, ResourceType: model.ResourceNamespace},
		},
		{
			name:   "describe with type name form",
			tokens: []string{"describe", "pod", "api-7d9f", "--namespace=staging"},
			want:   model.Command{Verb: model.VerbDescribe, ResourceType: model.ResourcePod, ResourceName: "api-7d9f", Namespace: "staging"},
		},
		{
			name:   "rollout restart",
			tokens: []string{"kubectl", "rollout", "restart", "deployment/api", "--namespace", "prod"},
			want:   model.Command{Verb: model.VerbRestart, ResourceType: model.ResourceDeployment, ResourceName: "api", Namespace: "prod"},
		},
		{
			name:   "plain restart",
			tokens: []string{"restart", "deploy/api"},
			want:   model.Command{Verb: model.VerbRestart, ResourceType: model.ResourceDeployment, ResourceName: "api"},
		},
		{
			name:   "scale with flag",
			tokens: []string{"scale", "deployment/api", "--replicas=3", "-n", "prod"},
			want:   model.Command{Verb: model.VerbScale, ResourceType: model.ResourceDeployment, ResourceName: "api", Namespace: "prod", Args: []string{"--replicas=3"}},
		},
		{
			name:   "scale with literal count",
			tokens: []string{"scale", "deployment", "api", "4"},
			want:   model.Command{Verb: model.VerbScale, ResourceType: model.ResourceDeployment, ResourceName: "api", Args: []string{"4"}},
		},
		{
			name:   "exec keeps tokens after separator",
			tokens: []string{"exec", "pod/web-1", "-n", "prod", "--", "ls", "-n", "/tmp"},
			want:   model.Command{Verb: model.VerbExec, ResourceType: model.ResourcePod, ResourceName: "web-1", Namespace: "prod", Args: []string{"--", "ls", "-n", "/tmp"}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Validate(tc.tokens)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		tokens []string
		reason string
	}{
		{"empty", nil, apierror.ReasonTooFewArguments},
		{"only kubectl", []string{"kubectl"}, apierror.ReasonTooFewArguments},
		{"verb only", []string{"get"}, apierror.ReasonTooFewArguments},
		{"rollout restart without target", []string{"rollout", "restart"}, apierror.ReasonTooFewArguments},
		{"unknown verb", []string{"delete", "pod/x"}, apierror.ReasonUnsupportedCombination},
		{"unknown type", []string{"get", "secrets"}, apierror.ReasonUnsupportedCombination},
		{"restart pod", []string{"restart", "pod/web-1"}, apierror.ReasonUnsupportedCombination},
		{"exec deployment", []string{"exec", "deployment/api", "--", "ls"}, apierror.ReasonUnsupportedCombination},
		{"describe namespace", []string{"describe", "namespace/default"}, apierror.ReasonUnsupportedCombination},
		{"underscore in name", []string{"get", "pods/bad_name"}, apierror.ReasonInvalidName},
		{"dot in name", []string{"describe", "pod/web.1"}, apierror.ReasonInvalidName},
		{"empty name after slash", []string{"get", "pods/"}, apierror.ReasonInvalidName},
		{"injection in name", []string{"get", "pods/x;rm"}, apierror.ReasonInvalidName},
		{"bad namespace", []string{"get", "pods", "-n", "kube_system"}, apierror.ReasonInvalidNamespace},
		{"namespace flag without value", []string{"get", "pods", "-n"}, apierror.ReasonInvalidNamespace},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate(tc.tokens)
			require.Error(t, err)
			apiErr, ok := apierror.As(err)
			require.True(t, ok, "expected *apierror.Error, got %T", err)
			assert.Equal(t, apierror.KindValidation, apiErr.Kind)
			assert.Equal(t, tc.reason, apiErr.Message)
		})
	}
}

func TestValidate_ExecFlagsAfterSeparatorUntouched(t *testing.T) {
	cmd, err := Validate([]string{"exec", "pod/web-1", "--", "grep", "--namespace=x", "file"})
	require.NoError(t, err)
	assert.Empty(t, cmd.Namespace)
	assert.Equal(t, []string{"grep", "--namespace=x", "file"}, cmd.ExecTokens())
}
