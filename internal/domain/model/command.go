package model

import (
	"strings"
)

type Verb string

const (
	VerbGet      Verb = "get"
	VerbDescribe Verb = "describe"
	VerbRestart  Verb = "restart"
	VerbScale    Verb = "scale"
	VerbExec     Verb = "exec"
)

type ResourceType string

const (
	ResourcePod        ResourceType = "pod"
	ResourceDeployment ResourceType = "deployment"
	ResourceNamespace  ResourceType = "namespace"
)

// allowedCommands is the static verb x resource type table. Anything not
// listed here is rejected before it reaches the cluster.
var allowedCommands = map[Verb]map[ResourceType]bool{
	VerbGet:      {ResourcePod: true, ResourceDeployment: true, ResourceNamespace: true},
	VerbDescribe: {ResourcePod: true, ResourceDeployment: true},
	VerbRestart:  {ResourceDeployment: true},
	VerbScale:    {ResourceDeployment: true},
	VerbExec:     {ResourcePod: true},
}

var resourceAliases = map[string]ResourceType{
	"pod":         ResourcePod,
	"pods":        ResourcePod,
	"po":          ResourcePod,
	"deployment":  ResourceDeployment,
	"deployments": ResourceDeployment,
	"deploy":      ResourceDeployment,
	"namespace":   ResourceNamespace,
	"namespaces":  ResourceNamespace,
	"ns":          ResourceNamespace,
}

func ParseVerb(s string) (Verb, bool) {
	v := Verb(strings.ToLower(s))
	_, ok := allowedCommands[v]
	return v, ok
}

func ParseResourceType(s string) (ResourceType, bool) {
	rt, ok := resourceAliases[strings.ToLower(s)]
	return rt, ok
}

// Allowed reports whether the verb may be applied to the resource type.
func Allowed(verb Verb, rt ResourceType) bool {
	return allowedCommands[verb][rt]
}

// Mutating reports whether the verb changes cluster state or runs code in a pod.
func (v Verb) Mutating() bool {
	switch v {
	case VerbRestart, VerbScale, VerbExec:
		return true
	default:
		return false
	}
}

// RequiresAdmin reports whether only administrators may issue the verb.
func (v Verb) RequiresAdmin() bool {
	return v == VerbScale || v == VerbExec
}

// Namespaced reports whether resources of this type live in a namespace.
func (rt ResourceType) Namespaced() bool {
	return rt != ResourceNamespace
}

// Command is a validated kubectl-style request.
type Command struct {
	Verb         Verb         `json:"verb"`
	ResourceType ResourceType `json:"resource_type"`
	ResourceName string       `json:"resource_name,omitempty"`
	Namespace    string       `json:"namespace,omitempty"`
	Args         []string     `json:"args,omitempty"`
}

// ExecTokens returns the arguments following the "--" separator.
func (c Command) ExecTokens() []string {
	for i, a := range c.Args {
		if a == "--" {
			return append([]string(nil), c.Args[i+1:]...)
		}
	}
	return nil
}

// Flag returns the value of --name=value or --name value, ignoring anything after "--".
func (c Command) Flag(name string) (string, bool) {
	long := "--" + name
	for i := 0; i < len(c.Args); i++ {
		a := c.Args[i]
		if a == "--" {
			break
		}
		if v, ok := strings.CutPrefix(a, long+"="); ok {
			return v, true
		}
		if a == long && i+1 < len(c.Args) && c.Args[i+1] != "--" {
			return c.Args[i+1], true
		}
	}
	return "", false
}

// Positional returns args that are neither flags nor flag values, stopping at "--".
func (c Command) Positional() []string {
	var out []string
	for i := 0; i < len(c.Args); i++ {
		a := c.Args[i]
		if a == "--" {
			break
		}
		if strings.HasPrefix(a, "-") {
			if !strings.Contains(a, "=") && i+1 < len(c.Args) && !strings.HasPrefix(c.Args[i+1], "-") {
				i++
			}
			continue
		}
		out = append(out, a)
	}
	return out
}

// Target is the "type/name" form used in replies.
func (c Command) Target() string {
	if c.ResourceName == "" {
		return string(c.ResourceType)
	}
	return string(c.ResourceType) + "/" + c.ResourceName
}

func (c Command) String() string {
	parts := []string{"kubectl"}
	if c.Verb == VerbRestart {
		parts = append(parts, "rollout", "restart")
	} else {
		parts = append(parts, string(c.Verb))
	}
	parts = append(parts, c.Target())
	if c.Namespace != "" {
		parts = append(parts, "-n", c.Namespace)
	}
	parts = append(parts, c.Args...)
	return strings.Join(parts, " ")
}
