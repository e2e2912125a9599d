package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/v-yash/jarvis/internal/domain/model"
	"github.com/v-yash/jarvis/internal/domain/port/outbound"
	"github.com/v-yash/jarvis/pkg/apierror"
)

const notAvailable = "not available"

// ReplicaCeiling is the most replicas a scale command may ever request.
const ReplicaCeiling = 10

type DispatcherConfig struct {
	BlockedNamespaces []string
	MinReplicas       int32
	MaxReplicas       int32
	ExecTimeout       time.Duration
	MaxOutputLines    int
	MaxOutputChars    int
	EventLimit        int
}

// Dispatcher turns validated commands into cluster calls and renders the
// result as text.
type Dispatcher struct {
	cluster   outbound.Cluster
	sanitizer *Sanitizer
	search    NameSearcher
	cfg       DispatcherConfig
	blocked   map[string]bool
	logger    *slog.Logger
	now       func() time.Time
}

// NewDispatcher creates a Dispatcher. search may be nil, which disables
// "did you mean" suggestions.
func NewDispatcher(cluster outbound.Cluster, sanitizer *Sanitizer, search NameSearcher, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.MinReplicas <= 0 {
		cfg.MinReplicas = 1
	}
	if cfg.MaxReplicas <= 0 || cfg.MaxReplicas > ReplicaCeiling {
		cfg.MaxReplicas = ReplicaCeiling
	}
	if cfg.ExecTimeout <= 0 {
		cfg.ExecTimeout = 30 * time.Second
	}
	if cfg.MaxOutputChars <= 0 {
		cfg.MaxOutputChars = 3000
	}
	if cfg.EventLimit <= 0 {
		cfg.EventLimit = 3
	}
	blocked := make(map[string]bool, len(cfg.BlockedNamespaces))
	for _, ns := range cfg.BlockedNamespaces {
		blocked[ns] = true
	}
	return &Dispatcher{
		cluster:   cluster,
		sanitizer: sanitizer,
		search:    search,
		cfg:       cfg,
		blocked:   blocked,
		logger:    logger,
		now:       time.Now,
	}
}

// Dispatch executes cmd and returns the user-facing result text.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd model.Command) (string, error) {
	if cmd.ResourceType.Namespaced() && cmd.Namespace == "" {
		return "", apierror.Dispatch("namespace is required")
	}
	if cmd.Verb.Mutating() && d.blocked[cmd.Namespace] {
		return "", apierror.Dispatchf("%s is not allowed in protected namespace %s", cmd.Verb, cmd.Namespace)
	}

	switch cmd.Verb {
	case model.VerbGet:
		return d.get(ctx, cmd)
	case model.VerbDescribe:
		return d.describe(ctx, cmd)
	case model.VerbRestart:
		return d.restart(ctx, cmd)
	case model.VerbScale:
		return d.scale(ctx, cmd)
	case model.VerbExec:
		return d.exec(ctx, cmd)
	default:
		return "", apierror.Dispatchf("unsupported verb %q", cmd.Verb)
	}
}

func (d *Dispatcher) get(ctx context.Context, cmd model.Command) (string, error) {
	opts := outbound.ListOptions{}
	if fs, ok := cmd.Flag("field-selector"); ok {
		opts.FieldSelector = fs
	} else if cmd.ResourceName != "" {
		opts.FieldSelector = "metadata.name=" + cmd.ResourceName
	}

	var lines []string
	switch cmd.ResourceType {
	case model.ResourcePod:
		pods, err := d.cluster.ListPods(ctx, cmd.Namespace, opts)
		if err != nil {
			return "", apierror.Wrap(apierror.KindDispatch, "failed to list pods", err)
		}
		now := d.now()
		for _, p := range pods {
			lines = append(lines, fmt.Sprintf("%s  %s  restarts=%d  age=%dm", p.Name, p.Phase, p.Restarts, p.AgeMinutes(now)))
		}
	case model.ResourceDeployment:
		names, err := d.cluster.ListDeploymentNames(ctx, cmd.Namespace, opts)
		if err != nil {
			return "", apierror.Wrap(apierror.KindDispatch, "failed to list deployments", err)
		}
		lines = names
	case model.ResourceNamespace:
		names, err := d.cluster.ListNamespaceNames(ctx, opts)
		if err != nil {
			return "", apierror.Wrap(apierror.KindDispatch, "failed to list namespaces", err)
		}
		lines = names
	default:
		return "", apierror.Dispatchf("cannot get %s", cmd.ResourceType)
	}

	if len(lines) == 0 {
		if cmd.ResourceName != "" && cmd.ResourceType != model.ResourceNamespace {
			return "", d.notFound(ctx, cmd.ResourceType, cmd.Namespace, cmd.ResourceName)
		}
		if cmd.ResourceType == model.ResourceNamespace {
			return "No resources found.", nil
		}
		return fmt.Sprintf("No resources found in %s namespace.", cmd.Namespace), nil
	}
	return strings.Join(lines, "\n"), nil
}

func (d *Dispatcher) describe(ctx context.Context, cmd model.Command) (string, error) {
	if cmd.ResourceName == "" {
		return "", apierror.Dispatchf("%s name is required", cmd.ResourceType)
	}
	switch cmd.ResourceType {
	case model.ResourcePod:
		return d.describePod(ctx, cmd.Namespace, cmd.ResourceName)
	case model.ResourceDeployment:
		return d.describeDeployment(ctx, cmd.Namespace, cmd.ResourceName)
	default:
		return "", apierror.Dispatchf("cannot describe %s", cmd.ResourceType)
	}
}

func (d *Dispatcher) describePod(ctx context.Context, ns, name string) (string, error) {
	pod, err := d.cluster.GetPod(ctx, ns, name)
	if err != nil {
		if errors.Is(err, outbound.ErrNotFound) {
			return "", d.notFound(ctx, model.ResourcePod, ns, name)
		}
		return "", apierror.Wrap(apierror.KindDispatch, "failed to get pod", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nNamespace: %s\nStatus: %s\nRestarts: %d\nAge: %dm\n",
		pod.Name, pod.Namespace, pod.Phase, pod.Restarts, pod.AgeMinutes(d.now()))
	if pod.NodeName != "" {
		fmt.Fprintf(&b, "Node: %s\n", pod.NodeName)
	}
	if pod.PodIP != "" {
		fmt.Fprintf(&b, "IP: %s\n", pod.PodIP)
	}
	if len(pod.Containers) > 0 {
		b.WriteString("Containers:\n")
		for _, c := range pod.Containers {
			fmt.Fprintf(&b, "  %s: image=%s ready=%t restarts=%d state=%s\n", c.Name, c.Image, c.Ready, c.Restarts, c.State)
		}
	}

	// Enrichments run one after another and each degrades on its own.
	owner, autoscaler := d.ownerAndAutoscaler(ctx, ns, pod.ReplicaSet)
	usage := d.usageSection(ctx, ns, name)
	events := d.eventsSection(ctx, ns, "Pod", name)

	fmt.Fprintf(&b, "Deployment: %s\n", owner)
	fmt.Fprintf(&b, "Autoscaler: %s\n", autoscaler)
	fmt.Fprintf(&b, "Metrics: %s\n", usage)
	fmt.Fprintf(&b, "Events: %s", events)
	return b.String(), nil
}

func (d *Dispatcher) describeDeployment(ctx context.Context, ns, name string) (string, error) {
	dep, err := d.cluster.GetDeployment(ctx, ns, name)
	if err != nil {
		if errors.Is(err, outbound.ErrNotFound) {
			return "", d.notFound(ctx, model.ResourceDeployment, ns, name)
		}
		return "", apierror.Wrap(apierror.KindDispatch, "failed to get deployment", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nNamespace: %s\nReplicas: %d desired | %d updated | %d ready | %d available\n",
		dep.Name, dep.Namespace, dep.DesiredReplicas, dep.UpdatedReplicas, dep.ReadyReplicas, dep.AvailableReplicas)
	if dep.Strategy != "" {
		fmt.Fprintf(&b, "Strategy: %s\n", dep.Strategy)
	}
	if len(dep.Images) > 0 {
		fmt.Fprintf(&b, "Images: %s\n", strings.Join(dep.Images, ", "))
	}
	if len(dep.Conditions) > 0 {
		fmt.Fprintf(&b, "Conditions: %s\n", strings.Join(dep.Conditions, "; "))
	}
	fmt.Fprintf(&b, "Autoscaler: %s\n", d.autoscalerSection(ctx, ns, name))
	fmt.Fprintf(&b, "Events: %s", d.eventsSection(ctx, ns, "Deployment", name))
	return b.String(), nil
}

func (d *Dispatcher) ownerAndAutoscaler(ctx context.Context, ns, replicaSet string) (string, string) {
	if replicaSet == "" {
		return notAvailable, notAvailable
	}
	dep, err := d.cluster.OwningDeployment(ctx, ns, replicaSet)
	if err != nil || dep == "" {
		if err != nil && !errors.Is(err, outbound.ErrNotFound) {
			d.logger.Debug("owner lookup failed", "namespace", ns, "replicaset", replicaSet, "error", err)
		}
		return notAvailable, notAvailable
	}
	return dep, d.autoscalerSection(ctx, ns, dep)
}

func (d *Dispatcher) autoscalerSection(ctx context.Context, ns, deployment string) string {
	hpa, err := d.cluster.Autoscaler(ctx, ns, deployment)
	if err != nil {
		if !errors.Is(err, outbound.ErrNotFound) {
			d.logger.Debug("autoscaler lookup failed", "namespace", ns, "deployment", deployment, "error", err)
		}
		return notAvailable
	}
	s := fmt.Sprintf("%s min=%d max=%d current=%d", hpa.Name, hpa.MinReplicas, hpa.MaxReplicas, hpa.CurrentReplicas)
	if hpa.CurrentCPUPercent != nil || hpa.TargetCPUPercent != nil {
		s += fmt.Sprintf(" cpu=%s/%s", percent(hpa.CurrentCPUPercent), percent(hpa.TargetCPUPercent))
	}
	return s
}

func (d *Dispatcher) usageSection(ctx context.Context, ns, pod string) string {
	usage, err := d.cluster.PodUsage(ctx, ns, pod)
	if err != nil || len(usage) == 0 {
		return notAvailable
	}
	parts := make([]string, 0, len(usage))
	for _, u := range usage {
		parts = append(parts, fmt.Sprintf("%s cpu=%dm memory=%dMi", u.Name, u.CPUMilli, u.MemoryBytes/(1024*1024)))
	}
	return strings.Join(parts, "; ")
}

func (d *Dispatcher) eventsSection(ctx context.Context, ns, kind, name string) string {
	events, err := d.cluster.RecentEvents(ctx, ns, kind, name, d.cfg.EventLimit)
	if err != nil || len(events) == 0 {
		return notAvailable
	}
	var b strings.Builder
	for _, e := range events {
		fmt.Fprintf(&b, "\n  %s %s: %s", e.Type, e.Reason, e.Message)
		if e.Count > 1 {
			fmt.Fprintf(&b, " (x%d)", e.Count)
		}
	}
	return b.String()
}

func (d *Dispatcher) restart(ctx context.Context, cmd model.Command) (string, error) {
	if cmd.ResourceName == "" {
		return "", apierror.Dispatch("deployment name is required")
	}
	if err := d.cluster.RestartDeployment(ctx, cmd.Namespace, cmd.ResourceName); err != nil {
		if errors.Is(err, outbound.ErrNotFound) {
			return "", d.notFound(ctx, model.ResourceDeployment, cmd.Namespace, cmd.ResourceName)
		}
		return "", apierror.Wrap(apierror.KindDispatch, "failed to restart deployment", err)
	}
	return fmt.Sprintf("Restarted deployment/%s in namespace %s. Pods will be replaced gradually.", cmd.ResourceName, cmd.Namespace), nil
}

func (d *Dispatcher) scale(ctx context.Context, cmd model.Command) (string, error) {
	if cmd.ResourceName == "" {
		return "", apierror.Dispatch("deployment name is required")
	}
	raw, ok := cmd.Flag("replicas")
	if !ok {
		if pos := cmd.Positional(); len(pos) > 0 {
			raw, ok = pos[0], true
		}
	}
	if !ok || raw == "" {
		return "", apierror.Dispatch("Missing replica count")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return "", apierror.Dispatch("Replica count must be a whole number")
	}

	// The hard ceiling applies before anything is asked of the cluster.
	if n < int(d.cfg.MinReplicas) || n > int(d.cfg.MaxReplicas) {
		return "", apierror.Dispatchf("Replicas must be %d-%d", d.cfg.MinReplicas, d.cfg.MaxReplicas)
	}
	replicas := int32(n)

	hpa, err := d.cluster.Autoscaler(ctx, cmd.Namespace, cmd.ResourceName)
	switch {
	case errors.Is(err, outbound.ErrNotFound):
	case err != nil:
		return "", apierror.Wrap(apierror.KindDispatch, "autoscaler verification failed", err)
	case replicas > hpa.MaxReplicas:
		return "", apierror.Dispatchf("Cannot exceed HPA max (%d replicas)", hpa.MaxReplicas)
	case replicas < hpa.MinReplicas:
		return "", apierror.Dispatchf("Cannot go below HPA min (%d replicas)", hpa.MinReplicas)
	}

	if err := d.cluster.ScaleDeployment(ctx, cmd.Namespace, cmd.ResourceName, replicas); err != nil {
		if errors.Is(err, outbound.ErrNotFound) {
			return "", d.notFound(ctx, model.ResourceDeployment, cmd.Namespace, cmd.ResourceName)
		}
		return "", apierror.Wrap(apierror.KindDispatch, "failed to scale deployment", err)
	}
	return fmt.Sprintf("Scaled deployment/%s in namespace %s to %d replicas.", cmd.ResourceName, cmd.Namespace, replicas), nil
}

func (d *Dispatcher) exec(ctx context.Context, cmd model.Command) (string, error) {
	if cmd.ResourceName == "" {
		return "", apierror.Dispatch("pod name is required")
	}
	tokens := cmd.ExecTokens()
	if len(tokens) == 0 {
		return "", apierror.Dispatch("Missing command to execute")
	}
	sanitized, err := d.sanitizer.Sanitize(tokens)
	if err != nil {
		return "", err
	}
	container, _ := cmd.Flag("container")

	execCtx, cancel := context.WithTimeout(ctx, d.cfg.ExecTimeout)
	defer cancel()

	buf := newOutputBuffer(d.cfg.MaxOutputLines)
	req := model.ExecRequest{
		Namespace: cmd.Namespace,
		Pod:       cmd.ResourceName,
		Container: container,
		Command:   sanitized.Argv,
	}
	err = d.cluster.Exec(execCtx, req, buf, buf)
	output := buf.Text(d.cfg.MaxOutputChars)
	if err != nil {
		switch {
		case errors.Is(err, outbound.ErrNotFound):
			return "", d.notFound(ctx, model.ResourcePod, cmd.Namespace, cmd.ResourceName)
		case errors.Is(execCtx.Err(), context.DeadlineExceeded):
			return "", apierror.Dispatchf("Command timed out after %s\n%s", d.cfg.ExecTimeout, output)
		default:
			return "", apierror.Dispatchf("Command failed: %v\n%s", err, output)
		}
	}
	if strings.TrimSpace(output) == "" {
		return "(no output)", nil
	}
	return output, nil
}

// notFound builds the error for a missing resource, with suggestions when
// similar names are known.
func (d *Dispatcher) notFound(ctx context.Context, kind model.ResourceType, ns, name string) error {
	msg := fmt.Sprintf("%s %q not found in namespace %s", kind, name, ns)
	if s := d.suggest(ctx, kind, ns, name); len(s) > 0 {
		msg += ". Did you mean: " + strings.Join(s, ", ") + "?"
	}
	return apierror.Dispatch(msg)
}

func (d *Dispatcher) suggest(ctx context.Context, kind model.ResourceType, ns, name string) []string {
	if d.search == nil {
		return nil
	}
	const maxSuggestions = 3
	var out []string
	for _, s := range d.search.Search(ctx, kind, name, ns) {
		if s != name {
			out = append(out, s)
		}
		if len(out) == maxSuggestions {
			return out
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, m := range fuzzy.Find(name, d.search.Names(ctx, kind, ns)) {
		if m.Str == name {
			continue
		}
		out = append(out, m.Str)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

func percent(v *int32) string {
	if v == nil {
		return "?"
	}
	return strconv.Itoa(int(*v)) + "%"
}
