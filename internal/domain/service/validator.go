package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/v-yash/jarvis/internal/domain/model"
	"github.com/v-yash/jarvis/pkg/apierror"
)

// namePattern matches resource and namespace names accepted from chat input.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// Validate parses a kubectl-style token list into a Command. Only the verb and
// resource type pairs in the static allow-list pass.
func Validate(tokens []string) (model.Command, error) {
	if len(tokens) > 0 && strings.EqualFold(tokens[0], "kubectl") {
		tokens = tokens[1:]
	}

	var verb model.Verb
	var rest []string
	switch {
	case len(tokens) >= 2 && strings.EqualFold(tokens[0], "rollout") && strings.EqualFold(tokens[1], "restart"):
		verb = model.VerbRestart
		rest = tokens[2:]
		if len(rest) < 1 {
			return model.Command{}, apierror.Validation(apierror.ReasonTooFewArguments, "")
		}
	default:
		if len(tokens) < 2 {
			return model.Command{}, apierror.Validation(apierror.ReasonTooFewArguments, "")
		}
		v, ok := model.ParseVerb(tokens[0])
		if !ok {
			return model.Command{}, apierror.Validation(apierror.ReasonUnsupportedCombination, tokens[0])
		}
		verb = v
		rest = tokens[1:]
	}

	typeToken, name, hasSlash := strings.Cut(rest[0], "/")
	rest = rest[1:]
	if hasSlash && name == "" {
		return model.Command{}, apierror.Validation(apierror.ReasonInvalidName, typeToken+"/")
	}

	rt, ok := model.ParseResourceType(typeToken)
	if !ok || !model.Allowed(verb, rt) {
		return model.Command{}, apierror.Validation(apierror.ReasonUnsupportedCombination, fmt.Sprintf("%s %s", verb, typeToken))
	}

	// "type name" form.
	if !hasSlash && len(rest) > 0 && rest[0] != "--" && !strings.HasPrefix(rest[0], "-") && !isReplicaLiteral(verb, rest[0]) {
		name = rest[0]
		rest = rest[1:]
	}

	if name != "" && !namePattern.MatchString(name) {
		return model.Command{}, apierror.Validation(apierror.ReasonInvalidName, name)
	}

	namespace, args, err := extractNamespace(rest)
	if err != nil {
		return model.Command{}, err
	}

	return model.Command{
		Verb:         verb,
		ResourceType: rt,
		ResourceName: name,
		Namespace:    namespace,
		Args:         args,
	}, nil
}

// isReplicaLiteral keeps "scale deployment 3" from treating the count as a name.
func isReplicaLiteral(verb model.Verb, tok string) bool {
	if verb != model.VerbScale {
		return false
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return false
		}
	}
	return tok != ""
}

// extractNamespace lifts -n/--namespace out of args. Tokens after "--" belong to
// the exec command and are never inspected.
func extractNamespace(args []string) (string, []string, error) {
	var namespace string
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			out = append(out, args[i:]...)
			break
		}
		switch {
		case a == "-n" || a == "--namespace":
			if i+1 >= len(args) || args[i+1] == "--" {
				return "", nil, apierror.Validation(apierror.ReasonInvalidNamespace, "missing value for "+a)
			}
			namespace = args[i+1]
			i++
		case strings.HasPrefix(a, "--namespace="):
			namespace = strings.TrimPrefix(a, "--namespace=")
		default:
			out = append(out, a)
			continue
		}
		if !namePattern.MatchString(namespace) {
			return "", nil, apierror.Validation(apierror.ReasonInvalidNamespace, namespace)
		}
	}
	if len(out) == 0 {
		out = nil
	}
	return namespace, out, nil
}
