package outbound

import (
	"context"
	"errors"
	"io"

	"github.com/v-yash/jarvis/internal/domain/model"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("not found")

// ErrNotAvailable is returned when an optional data source (metrics API,
// events) cannot serve the request.
var ErrNotAvailable = errors.New("not available")

// ListOptions narrows a list call. FieldSelector uses Kubernetes field selector syntax.
type ListOptions struct {
	FieldSelector string
	Limit         int64
}

// ClusterReader lists and inspects cluster objects.
type ClusterReader interface {
	ListPods(ctx context.Context, namespace string, opts ListOptions) ([]model.PodSummary, error)
	ListDeploymentNames(ctx context.Context, namespace string, opts ListOptions) ([]string, error)
	ListNamespaceNames(ctx context.Context, opts ListOptions) ([]string, error)
	GetPod(ctx context.Context, namespace, name string) (model.PodDetail, error)
	GetDeployment(ctx context.Context, namespace, name string) (model.DeploymentDetail, error)
	// OwningDeployment resolves the deployment behind a ReplicaSet.
	OwningDeployment(ctx context.Context, namespace, replicaSet string) (string, error)
	// Autoscaler returns ErrNotFound when no autoscaler targets the deployment.
	Autoscaler(ctx context.Context, namespace, deployment string) (model.AutoscalerBounds, error)
	PodUsage(ctx context.Context, namespace, pod string) ([]model.ContainerUsage, error)
	RecentEvents(ctx context.Context, namespace, kind, name string, limit int) ([]model.EventSummary, error)
}

// ClusterWriter performs the mutating operations the gateway allows.
type ClusterWriter interface {
	RestartDeployment(ctx context.Context, namespace, name string) error
	ScaleDeployment(ctx context.Context, namespace, name string, replicas int32) error
	// Exec streams the command's output into stdout and stderr until it exits or ctx ends.
	Exec(ctx context.Context, req model.ExecRequest, stdout, stderr io.Writer) error
}

// Cluster abstracts the Kubernetes API server.
type Cluster interface {
	ClusterReader
	ClusterWriter
	HealthCheck(ctx context.Context) error
}
