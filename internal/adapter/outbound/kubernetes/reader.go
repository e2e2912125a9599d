package kubernetes

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	autoscalingv1 "k8s.io/api/autoscaling/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/v-yash/jarvis/internal/domain/model"
	"github.com/v-yash/jarvis/internal/domain/port/outbound"
)

// Reader provides read-only access to Kubernetes resources.
type Reader struct {
	clientset kubernetes.Interface
	metrics   metricsclient.Interface
}

// NewReader creates a Reader. metrics may be nil when the metrics API is not installed.
func NewReader(clientset kubernetes.Interface, metrics metricsclient.Interface) *Reader {
	return &Reader{clientset: clientset, metrics: metrics}
}

var _ outbound.ClusterReader = (*Reader)(nil)

func toListOptions(opts outbound.ListOptions) metav1.ListOptions {
	lo := metav1.ListOptions{FieldSelector: opts.FieldSelector}
	if opts.Limit > 0 {
		lo.Limit = opts.Limit
	}
	return lo
}

// ListPods returns pod summaries in namespace.
func (r *Reader) ListPods(ctx context.Context, namespace string, opts outbound.ListOptions) ([]model.PodSummary, error) {
	list, err := r.clientset.CoreV1().Pods(namespace).List(ctx, toListOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("listing pods in %s: %w", namespace, err)
	}
	out := make([]model.PodSummary, 0, len(list.Items))
	for i := range list.Items {
		out = append(out, podSummary(&list.Items[i]))
	}
	return out, nil
}

func (r *Reader) ListDeploymentNames(ctx context.Context, namespace string, opts outbound.ListOptions) ([]string, error) {
	list, err := r.clientset.AppsV1().Deployments(namespace).List(ctx, toListOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("listing deployments in %s: %w", namespace, err)
	}
	names := make([]string, 0, len(list.Items))
	for i := range list.Items {
		names = append(names, list.Items[i].Name)
	}
	return names, nil
}

func (r *Reader) ListNamespaceNames(ctx context.Context, opts outbound.ListOptions) ([]string, error) {
	list, err := r.clientset.CoreV1().Namespaces().List(ctx, toListOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("listing namespaces: %w", err)
	}
	names := make([]string, 0, len(list.Items))
	for i := range list.Items {
		names = append(names, list.Items[i].Name)
	}
	return names, nil
}

func (r *Reader) GetPod(ctx context.Context, namespace, name string) (model.PodDetail, error) {
	pod, err := r.clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return model.PodDetail{}, mapErr(err, "getting pod %s/%s", namespace, name)
	}

	statuses := make(map[string]corev1.ContainerStatus, len(pod.Status.ContainerStatuses))
	for _, cs := range pod.Status.ContainerStatuses {
		statuses[cs.Name] = cs
	}
	containers := make([]model.ContainerInfo, 0, len(pod.Spec.Containers))
	for _, c := range pod.Spec.Containers {
		info := model.ContainerInfo{Name: c.Name, Image: c.Image, State: "unknown"}
		if cs, ok := statuses[c.Name]; ok {
			info.Ready = cs.Ready
			info.Restarts = cs.RestartCount
			info.State = containerState(cs.State)
		}
		containers = append(containers, info)
	}

	detail := model.PodDetail{
		PodSummary: podSummary(pod),
		NodeName:   pod.Spec.NodeName,
		PodIP:      pod.Status.PodIP,
		Labels:     pod.Labels,
		Containers: containers,
	}
	for _, ref := range pod.OwnerReferences {
		if ref.Kind == "ReplicaSet" {
			detail.ReplicaSet = ref.Name
			break
		}
	}
	return detail, nil
}

func (r *Reader) GetDeployment(ctx context.Context, namespace, name string) (model.DeploymentDetail, error) {
	d, err := r.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return model.DeploymentDetail{}, mapErr(err, "getting deployment %s/%s", namespace, name)
	}
	detail := model.DeploymentDetail{
		Name:              d.Name,
		Namespace:         d.Namespace,
		ReadyReplicas:     d.Status.ReadyReplicas,
		AvailableReplicas: d.Status.AvailableReplicas,
		UpdatedReplicas:   d.Status.UpdatedReplicas,
		Strategy:          string(d.Spec.Strategy.Type),
		CreatedAt:         d.CreationTimestamp.Time,
	}
	if d.Spec.Replicas != nil {
		detail.DesiredReplicas = *d.Spec.Replicas
	}
	for _, c := range d.Spec.Template.Spec.Containers {
		detail.Images = append(detail.Images, c.Image)
	}
	for _, c := range d.Status.Conditions {
		detail.Conditions = append(detail.Conditions, fmt.Sprintf("%s=%s", c.Type, c.Status))
	}
	return detail, nil
}

// OwningDeployment follows the ReplicaSet's owner reference.
func (r *Reader) OwningDeployment(ctx context.Context, namespace, replicaSet string) (string, error) {
	rs, err := r.clientset.AppsV1().ReplicaSets(namespace).Get(ctx, replicaSet, metav1.GetOptions{})
	if err != nil {
		return "", mapErr(err, "getting replicaset %s/%s", namespace, replicaSet)
	}
	for _, ref := range rs.OwnerReferences {
		if ref.Kind == "Deployment" {
			return ref.Name, nil
		}
	}
	return "", fmt.Errorf("replicaset %s/%s has no deployment owner: %w", namespace, replicaSet, outbound.ErrNotFound)
}

// Autoscaler looks up the HPA named after the deployment first, then any HPA
// whose scale target is the deployment.
func (r *Reader) Autoscaler(ctx context.Context, namespace, deployment string) (model.AutoscalerBounds, error) {
	hpas := r.clientset.AutoscalingV1().HorizontalPodAutoscalers(namespace)
	hpa, err := hpas.Get(ctx, deployment, metav1.GetOptions{})
	if err == nil && targetsDeployment(hpa.Spec.ScaleTargetRef, deployment) {
		return autoscalerBounds(hpa.Name, hpa.Spec.MinReplicas, hpa.Spec.MaxReplicas, hpa.Status.CurrentReplicas,
			hpa.Status.CurrentCPUUtilizationPercentage, hpa.Spec.TargetCPUUtilizationPercentage), nil
	}
	if err != nil && !apierrors.IsNotFound(err) {
		return model.AutoscalerBounds{}, fmt.Errorf("getting autoscaler %s/%s: %w", namespace, deployment, err)
	}

	list, err := hpas.List(ctx, metav1.ListOptions{})
	if err != nil {
		return model.AutoscalerBounds{}, fmt.Errorf("listing autoscalers in %s: %w", namespace, err)
	}
	for i := range list.Items {
		h := &list.Items[i]
		if targetsDeployment(h.Spec.ScaleTargetRef, deployment) {
			return autoscalerBounds(h.Name, h.Spec.MinReplicas, h.Spec.MaxReplicas, h.Status.CurrentReplicas,
				h.Status.CurrentCPUUtilizationPercentage, h.Spec.TargetCPUUtilizationPercentage), nil
		}
	}
	return model.AutoscalerBounds{}, fmt.Errorf("no autoscaler for deployment %s/%s: %w", namespace, deployment, outbound.ErrNotFound)
}

// PodUsage reads the current per-container usage from metrics.k8s.io.
func (r *Reader) PodUsage(ctx context.Context, namespace, pod string) ([]model.ContainerUsage, error) {
	if r.metrics == nil {
		return nil, outbound.ErrNotAvailable
	}
	pm, err := r.metrics.MetricsV1beta1().PodMetricses(namespace).Get(ctx, pod, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting pod metrics %s/%s: %w: %v", namespace, pod, outbound.ErrNotAvailable, err)
	}
	out := make([]model.ContainerUsage, 0, len(pm.Containers))
	for _, c := range pm.Containers {
		out = append(out, model.ContainerUsage{
			Name:        c.Name,
			CPUMilli:    c.Usage.Cpu().MilliValue(),
			MemoryBytes: c.Usage.Memory().Value(),
		})
	}
	return out, nil
}

// RecentEvents returns up to limit events for the object, newest first.
func (r *Reader) RecentEvents(ctx context.Context, namespace, kind, name string, limit int) ([]model.EventSummary, error) {
	selector := "involvedObject.name=" + name
	if kind != "" {
		selector += ",involvedObject.kind=" + kind
	}
	list, err := r.clientset.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{FieldSelector: selector})
	if err != nil {
		return nil, fmt.Errorf("listing events in %s: %w", namespace, err)
	}

	events := make([]model.EventSummary, 0, len(list.Items))
	for i := range list.Items {
		e := &list.Items[i]
		if e.InvolvedObject.Name != name || (kind != "" && !strings.EqualFold(e.InvolvedObject.Kind, kind)) {
			continue
		}
		events = append(events, model.EventSummary{
			Type:      e.Type,
			Reason:    e.Reason,
			Message:   e.Message,
			Count:     e.Count,
			Timestamp: eventTime(e),
		})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Timestamp.After(events[j].Timestamp) })
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// --- helpers ---

func mapErr(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if apierrors.IsNotFound(err) {
		return fmt.Errorf("%s: %w", msg, outbound.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func podSummary(pod *corev1.Pod) model.PodSummary {
	var restarts int32
	for _, cs := range pod.Status.ContainerStatuses {
		restarts += cs.RestartCount
	}
	phase := string(pod.Status.Phase)
	if pod.DeletionTimestamp != nil {
		phase = "Terminating"
	}
	return model.PodSummary{
		Name:      pod.Name,
		Namespace: pod.Namespace,
		Phase:     phase,
		Restarts:  restarts,
		CreatedAt: pod.CreationTimestamp.Time,
	}
}

func containerState(s corev1.ContainerState) string {
	switch {
	case s.Running != nil:
		return "running"
	case s.Waiting != nil:
		if s.Waiting.Reason != "" {
			return "waiting (" + s.Waiting.Reason + ")"
		}
		return "waiting"
	case s.Terminated != nil:
		if s.Terminated.Reason != "" {
			return "terminated (" + s.Terminated.Reason + ")"
		}
		return "terminated"
	default:
		return "unknown"
	}
}

func eventTime(e *corev1.Event) time.Time {
	switch {
	case !e.LastTimestamp.IsZero():
		return e.LastTimestamp.Time
	case !e.EventTime.IsZero():
		return e.EventTime.Time
	default:
		return e.CreationTimestamp.Time
	}
}

func autoscalerBounds(name string, min *int32, max, current int32, currentCPU, targetCPU *int32) model.AutoscalerBounds {
	b := model.AutoscalerBounds{
		Name:              name,
		MinReplicas:       1,
		MaxReplicas:       max,
		CurrentReplicas:   current,
		CurrentCPUPercent: currentCPU,
		TargetCPUPercent:  targetCPU,
	}
	if min != nil {
		b.MinReplicas = *min
	}
	return b
}

func targetsDeployment(ref autoscalingv1.CrossVersionObjectReference, deployment string) bool {
	return ref.Kind == "Deployment" && ref.Name == deployment
}
