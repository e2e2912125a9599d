package kubernetes

import (
	"fmt"

	k8s "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"
)

// Clients bundles the API clients the adapter needs. Config is kept for the
// SPDY exec transport.
type Clients struct {
	Kube    k8s.Interface
	Metrics metricsclient.Interface
	Config  *rest.Config
}

// NewClients creates Kubernetes clients from in-cluster config or a kubeconfig file.
func NewClients(inCluster bool, kubeconfigPath string) (Clients, error) {
	var config *rest.Config
	var err error

	if inCluster {
		config, err = rest.InClusterConfig()
	} else {
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	}
	if err != nil {
		return Clients{}, fmt.Errorf("building k8s config: %w", err)
	}

	kube, err := k8s.NewForConfig(config)
	if err != nil {
		return Clients{}, fmt.Errorf("creating k8s clientset: %w", err)
	}
	metrics, err := metricsclient.NewForConfig(config)
	if err != nil {
		return Clients{}, fmt.Errorf("creating metrics clientset: %w", err)
	}
	return Clients{Kube: kube, Metrics: metrics, Config: config}, nil
}
