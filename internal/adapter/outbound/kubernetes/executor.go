package kubernetes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/v-yash/jarvis/internal/domain/model"
	"github.com/v-yash/jarvis/internal/domain/port/outbound"
)

// StreamFunc opens an exec stream into a pod. Tests replace it since the fake
// clientset has no REST transport.
type StreamFunc func(ctx context.Context, req model.ExecRequest, stdout, stderr io.Writer) error

// Executor implements outbound.Cluster on top of a clientset.
type Executor struct {
	*Reader
	clientset kubernetes.Interface
	config    *rest.Config
	stream    StreamFunc
	now       func() time.Time
}

var _ outbound.Cluster = (*Executor)(nil)

// NewExecutor creates an Executor. config is required for Exec only.
func NewExecutor(clientset kubernetes.Interface, metrics metricsclient.Interface, config *rest.Config) *Executor {
	e := &Executor{
		Reader:    NewReader(clientset, metrics),
		clientset: clientset,
		config:    config,
		now:       time.Now,
	}
	e.stream = e.spdyStream
	return e
}

// NewExecutorFromClients is a convenience wrapper over NewExecutor.
func NewExecutorFromClients(c Clients) *Executor {
	return NewExecutor(c.Kube, c.Metrics, c.Config)
}

// Exec runs req.Command in the pod and streams its output. Cancelling ctx
// closes the stream.
func (e *Executor) Exec(ctx context.Context, req model.ExecRequest, stdout, stderr io.Writer) error {
	if len(req.Command) == 0 {
		return fmt.Errorf("exec in %s/%s: empty command", req.Namespace, req.Pod)
	}
	if _, err := e.clientset.CoreV1().Pods(req.Namespace).Get(ctx, req.Pod, metav1.GetOptions{}); err != nil {
		return mapErr(err, "getting pod %s/%s", req.Namespace, req.Pod)
	}

	if err := e.stream(ctx, req, stdout, stderr); err != nil {
		return fmt.Errorf("exec in %s/%s: %w", req.Namespace, req.Pod, err)
	}
	return nil
}

func (e *Executor) spdyStream(ctx context.Context, req model.ExecRequest, stdout, stderr io.Writer) error {
	if e.config == nil {
		return fmt.Errorf("exec requires a REST config")
	}
	restReq := e.clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Namespace(req.Namespace).
		Name(req.Pod).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: req.Container,
			Command:   req.Command,
			Stdout:    true,
			Stderr:    true,
		}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(e.config, "POST", restReq.URL())
	if err != nil {
		return fmt.Errorf("creating SPDY executor: %w", err)
	}
	return executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdout: stdout,
		Stderr: stderr,
	})
}

// RestartDeployment triggers a rollout restart by patching the pod template annotation.
func (e *Executor) RestartDeployment(ctx context.Context, namespace, name string) error {
	patch := map[string]any{
		"spec": map[string]any{
			"template": map[string]any{
				"metadata": map[string]any{
					"annotations": map[string]string{
						"kubectl.kubernetes.io/restartedAt": e.now().UTC().Format(time.RFC3339),
					},
				},
			},
		},
	}
	return e.patchDeployment(ctx, namespace, name, "restart", patch)
}

// ScaleDeployment sets the replica count on a deployment.
func (e *Executor) ScaleDeployment(ctx context.Context, namespace, name string, replicas int32) error {
	patch := map[string]any{
		"spec": map[string]any{
			"replicas": replicas,
		},
	}
	return e.patchDeployment(ctx, namespace, name, "scale", patch)
}

func (e *Executor) patchDeployment(ctx context.Context, namespace, name, op string, patch map[string]any) error {
	data, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshalling %s patch: %w", op, err)
	}
	_, err = e.clientset.AppsV1().Deployments(namespace).Patch(
		ctx, name, types.StrategicMergePatchType, data, metav1.PatchOptions{})
	if err != nil {
		return mapErr(err, "patching deployment %s/%s for %s", namespace, name, op)
	}
	return nil
}

// HealthCheck verifies connectivity to the API server via ServerVersion.
func (e *Executor) HealthCheck(_ context.Context) error {
	if _, err := e.clientset.Discovery().ServerVersion(); err != nil {
		return fmt.Errorf("k8s health check failed: %w", err)
	}
	return nil
}
