package service

import (
	"context"
	"io"
	"sync"

	"github.com/v-yash/jarvis/internal/domain/model"
	"github.com/v-yash/jarvis/internal/domain/port/outbound"
)

// fakeCluster is an in-memory outbound.Cluster. Unset fields behave as
// "not found" or "not available".
type fakeCluster struct {
	mu sync.Mutex

	pods        []model.PodSummary
	deployments []string
	namespaces  []string
	podDetail   map[string]model.PodDetail
	deployment  map[string]model.DeploymentDetail
	owners      map[string]string
	hpa         map[string]model.AutoscalerBounds
	hpaErr      error
	usage       map[string][]model.ContainerUsage
	events      []model.EventSummary
	listErr     error

	execOutput string
	execErr    error
	execBlock  bool

	lastList   outbound.ListOptions
	restarted  []string
	scaled     map[string]int32
	execCalls  []model.ExecRequest
}

var _ outbound.Cluster = (*fakeCluster)(nil)

func (f *fakeCluster) ListPods(_ context.Context, _ string, opts outbound.ListOptions) ([]model.PodSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = opts
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]model.PodSummary(nil), f.pods...), nil
}

func (f *fakeCluster) ListDeploymentNames(_ context.Context, _ string, opts outbound.ListOptions) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = opts
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]string(nil), f.deployments...), nil
}

func (f *fakeCluster) ListNamespaceNames(_ context.Context, opts outbound.ListOptions) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = opts
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]string(nil), f.namespaces...), nil
}

func (f *fakeCluster) GetPod(_ context.Context, _, name string) (model.PodDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.podDetail[name]
	if !ok {
		return model.PodDetail{}, outbound.ErrNotFound
	}
	return p, nil
}

func (f *fakeCluster) GetDeployment(_ context.Context, _, name string) (model.DeploymentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deployment[name]
	if !ok {
		return model.DeploymentDetail{}, outbound.ErrNotFound
	}
	return d, nil
}

func (f *fakeCluster) OwningDeployment(_ context.Context, _, rs string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.owners[rs]
	if !ok {
		return "", outbound.ErrNotFound
	}
	return d, nil
}

func (f *fakeCluster) Autoscaler(_ context.Context, _, deployment string) (model.AutoscalerBounds, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hpaErr != nil {
		return model.AutoscalerBounds{}, f.hpaErr
	}
	h, ok := f.hpa[deployment]
	if !ok {
		return model.AutoscalerBounds{}, outbound.ErrNotFound
	}
	return h, nil
}

func (f *fakeCluster) PodUsage(_ context.Context, _, pod string) ([]model.ContainerUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.usage[pod]
	if !ok {
		return nil, outbound.ErrNotAvailable
	}
	return u, nil
}

func (f *fakeCluster) RecentEvents(_ context.Context, _, _, _ string, limit int) ([]model.EventSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return nil, outbound.ErrNotAvailable
	}
	if len(f.events) > limit {
		return f.events[:limit], nil
	}
	return f.events, nil
}

func (f *fakeCluster) RestartDeployment(_ context.Context, _, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !contains(f.deployments, name) {
		return outbound.ErrNotFound
	}
	f.restarted = append(f.restarted, name)
	return nil
}

func (f *fakeCluster) ScaleDeployment(_ context.Context, _, name string, replicas int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !contains(f.deployments, name) {
		return outbound.ErrNotFound
	}
	if f.scaled == nil {
		f.scaled = make(map[string]int32)
	}
	f.scaled[name] = replicas
	return nil
}

func (f *fakeCluster) Exec(ctx context.Context, req model.ExecRequest, stdout, _ io.Writer) error {
	f.mu.Lock()
	f.execCalls = append(f.execCalls, req)
	out, err, block := f.execOutput, f.execErr, f.execBlock
	f.mu.Unlock()

	if out != "" {
		_, _ = io.WriteString(stdout, out)
	}
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (f *fakeCluster) HealthCheck(context.Context) error { return nil }

func contains(items []string, s string) bool {
	for _, it := range items {
		if it == s {
			return true
		}
	}
	return false
}

// staticSearcher returns canned search results.
type staticSearcher struct {
	results []string
	names   []string
}

func (s staticSearcher) Search(context.Context, model.ResourceType, string, string) []string {
	return s.results
}

func (s staticSearcher) Names(context.Context, model.ResourceType, string) []string {
	return s.names
}
