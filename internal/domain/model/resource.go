package model

import "time"

type PodSummary struct {
	Name      string
	Namespace string
	Phase     string
	Restarts  int32
	CreatedAt time.Time
}

// AgeMinutes is the whole number of minutes since creation.
func (p PodSummary) AgeMinutes(now time.Time) int {
	if p.CreatedAt.IsZero() || now.Before(p.CreatedAt) {
		return 0
	}
	return int(now.Sub(p.CreatedAt) / time.Minute)
}

type ContainerInfo struct {
	Name     string
	Image    string
	Ready    bool
	Restarts int32
	State    string
}

type PodDetail struct {
	PodSummary
	NodeName   string
	PodIP      string
	Labels     map[string]string
	Containers []ContainerInfo
	// ReplicaSet is the owning ReplicaSet name, empty for bare pods.
	ReplicaSet string
}

type DeploymentDetail struct {
	Name              string
	Namespace         string
	DesiredReplicas   int32
	ReadyReplicas     int32
	AvailableReplicas int32
	UpdatedReplicas   int32
	Strategy          string
	Images            []string
	Conditions        []string
	CreatedAt         time.Time
}

// AutoscalerBounds is the subset of a HorizontalPodAutoscaler the gateway reads.
type AutoscalerBounds struct {
	Name            string
	MinReplicas     int32
	MaxReplicas     int32
	CurrentReplicas int32
	// Utilization values are nil when the autoscaler does not report them.
	CurrentCPUPercent *int32
	TargetCPUPercent  *int32
}

type ContainerUsage struct {
	Name        string
	CPUMilli    int64
	MemoryBytes int64
}

type EventSummary struct {
	Type      string
	Reason    string
	Message   string
	Count     int32
	Timestamp time.Time
}

type ExecRequest struct {
	Namespace string
	Pod       string
	Container string
	Command   []string
}
