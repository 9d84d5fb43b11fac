package state

import (
	"context"
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

const (
	configMapPrefix = "sqlgateway-run-"
	appLabel        = "app"
	appName         = "sqlgateway"
)

// KubernetesManager implements the Manager interface using Kubernetes ConfigMaps
type KubernetesManager struct {
	client    kubernetes.Interface
	namespace string
}

// NewKubernetesManager creates a manager from the in-cluster configuration
func NewKubernetesManager(namespace string) (*KubernetesManager, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get in-cluster config: %w", err)
	}

	client, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	return NewKubernetesManagerWithClient(client, namespace), nil
}

// NewKubernetesManagerWithClient creates a manager around an existing client
func NewKubernetesManagerWithClient(client kubernetes.Interface, namespace string) *KubernetesManager {
	return &KubernetesManager{
		client:    client,
		namespace: namespace,
	}
}

func (k *KubernetesManager) CreateState(ctx context.Context, state *State) error {
	cm, err := k.configMap(state)
	if err != nil {
		return err
	}

	_, err = k.client.CoreV1().ConfigMaps(k.namespace).Create(ctx, cm, metav1.CreateOptions{})
	if err != nil {
		return fmt.Errorf("failed to create ConfigMap: %w", err)
	}
	return nil
}

func (k *KubernetesManager) GetState(ctx context.Context, jobID string) (*State, error) {
	cm, err := k.client.CoreV1().ConfigMaps(k.namespace).Get(ctx, configMapPrefix+jobID, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ConfigMap: %w", err)
	}
	return decodeState(cm)
}

func (k *KubernetesManager) UpdateState(ctx context.Context, state *State) error {
	cm, err := k.configMap(state)
	if err != nil {
		return err
	}

	_, err = k.client.CoreV1().ConfigMaps(k.namespace).Update(ctx, cm, metav1.UpdateOptions{})
	if apierrors.IsNotFound(err) {
		_, err = k.client.CoreV1().ConfigMaps(k.namespace).Create(ctx, cm, metav1.CreateOptions{})
	}
	if err != nil {
		return fmt.Errorf("failed to update ConfigMap: %w", err)
	}
	return nil
}

func (k *KubernetesManager) ListStates(ctx context.Context) ([]*State, error) {
	list, err := k.client.CoreV1().ConfigMaps(k.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: appLabel + "=" + appName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list ConfigMaps: %w", err)
	}

	states := make([]*State, 0, len(list.Items))
	for i := range list.Items {
		state, err := decodeState(&list.Items[i])
		if err != nil {
			continue // Skip invalid states
		}
		states = append(states, state)
	}
	sortByStart(states)
	return states, nil
}

func (k *KubernetesManager) DeleteState(ctx context.Context, jobID string) error {
	err := k.client.CoreV1().ConfigMaps(k.namespace).Delete(ctx, configMapPrefix+jobID, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete ConfigMap: %w", err)
	}
	return nil
}

func (k *KubernetesManager) configMap(state *State) (*corev1.ConfigMap, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	return &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      configMapPrefix + state.JobID,
			Namespace: k.namespace,
			Labels:    map[string]string{appLabel: appName},
		},
		Data: map[string]string{
			"state": string(data),
		},
	}, nil
}

func decodeState(cm *corev1.ConfigMap) (*State, error) {
	var state State
	if err := json.Unmarshal([]byte(cm.Data["state"]), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}
