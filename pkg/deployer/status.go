package deployer

import (
	"context"
	"fmt"
	"strconv"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/stevedore-app/stevedore/pkg/identity"
	"github.com/stevedore-app/stevedore/pkg/properties"
)

// AppState is the normalized lifecycle state of an app or one of its
// instances.
type AppState string

const (
	StateDeploying AppState = "deploying"
	StateDeployed  AppState = "deployed"
	StatePartial   AppState = "partial"
	StateFailed    AppState = "failed"
	StateError     AppState = "error"
	StateUnknown   AppState = "unknown"
)

// InstanceStatus describes one observed instance (pod) of an app.
type InstanceStatus struct {
	ID         string            `json:"id"`
	State      AppState          `json:"state"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// AppStatus aggregates the instance statuses of one deployment.
type AppStatus struct {
	DeploymentID string           `json:"deploymentId"`
	State        AppState         `json:"state"`
	Instances    []InstanceStatus `json:"instances,omitempty"`
}

// unrecoverableWaitingReasons are kubelet waiting reasons that never clear
// without a new image or configuration.
var unrecoverableWaitingReasons = map[string]bool{
	"ErrImagePull":               true,
	"ImagePullBackOff":           true,
	"ErrImageNeverPull":          true,
	"InvalidImageName":           true,
	"CreateContainerConfigError": true,
}

// stateSeverity orders instance states for worst-wins merging.
var stateSeverity = map[AppState]int{
	StateDeployed:  0,
	StatePartial:   1,
	StateDeploying: 2,
	StateUnknown:   3,
	StateError:     4,
	StateFailed:    5,
}

// Status reads the app's current state from the cluster in one shot. A
// status read never fails: when the cluster cannot be queried the app
// reports Unknown, exactly as an id that was never deployed does.
func (d *Deployer) Status(ctx context.Context, deploymentID string) AppStatus {
	status := AppStatus{DeploymentID: deploymentID, State: StateUnknown}

	listOpts := metav1.ListOptions{LabelSelector: identity.Selector(deploymentID)}
	pods, err := d.client.CoreV1().Pods(d.namespace).List(ctx, listOpts)
	if err != nil {
		d.logger.Warn("app status unavailable", "deployment_id", deploymentID, "error", err)
		return status
	}

	expected := d.expectedInstances(ctx, deploymentID, len(pods.Items))
	url := d.externalURL(ctx, deploymentID)

	for i := range pods.Items {
		status.Instances = append(status.Instances, d.instanceStatus(&pods.Items[i], url))
	}
	status.State = aggregateState(expected, status.Instances)
	return status
}

// expectedInstances reads the desired instance count from the workload
// object. Bare pods have no workload, so whatever the labels currently
// select is the expectation.
func (d *Deployer) expectedInstances(ctx context.Context, deploymentID string, observed int) int {
	if sts, err := d.client.AppsV1().StatefulSets(d.namespace).Get(ctx, deploymentID, metav1.GetOptions{}); err == nil {
		if sts.Spec.Replicas != nil {
			return int(*sts.Spec.Replicas)
		}
		return 1
	}
	if dep, err := d.client.AppsV1().Deployments(d.namespace).Get(ctx, deploymentID, metav1.GetOptions{}); err == nil {
		if dep.Spec.Replicas != nil {
			return int(*dep.Spec.Replicas)
		}
		return 1
	}
	return observed
}

// externalURL resolves the app's load-balancer URL once the cluster has
// published an ingress address. Empty until then, and always empty for
// apps without a LoadBalancer service.
func (d *Deployer) externalURL(ctx context.Context, deploymentID string) string {
	svc, err := d.client.CoreV1().Services(d.namespace).Get(ctx, deploymentID, metav1.GetOptions{})
	if err != nil || svc.Spec.Type != corev1.ServiceTypeLoadBalancer {
		return ""
	}
	addr := loadBalancerAddress(&svc.Status.LoadBalancer)
	if addr == "" || len(svc.Spec.Ports) == 0 {
		return ""
	}
	return fmt.Sprintf("http://%s:%d", addr, svc.Spec.Ports[0].Port)
}

func (d *Deployer) instanceStatus(pod *corev1.Pod, url string) InstanceStatus {
	state, reason := classifyPod(pod, d.base)

	attrs := map[string]string{
		"pod.name": pod.Name,
		"phase":    string(pod.Status.Phase),
		"guid":     string(pod.UID),
		"restarts": strconv.Itoa(podRestarts(pod)),
	}
	if pod.Status.PodIP != "" {
		attrs["pod.ip"] = pod.Status.PodIP
	}
	if pod.Status.HostIP != "" {
		attrs["host.ip"] = pod.Status.HostIP
	}
	// Instances governed by a headless service get a stable DNS name.
	if pod.Spec.Hostname != "" && pod.Spec.Subdomain != "" {
		attrs["host"] = pod.Spec.Hostname + "." + pod.Spec.Subdomain
	}
	if url != "" {
		attrs["url"] = url
	}
	if reason != "" {
		attrs["reason"] = reason
	}

	return InstanceStatus{ID: pod.Name, State: state, Attributes: attrs}
}

// classifyPod maps one pod to an instance state. Container-level signals
// outrank the bare pod phase, and the worst container wins.
func classifyPod(pod *corev1.Pod, spec *properties.ResolvedSpec) (AppState, string) {
	switch pod.Status.Phase {
	case corev1.PodFailed:
		return StateFailed, pod.Status.Reason
	case corev1.PodUnknown:
		return StateUnknown, pod.Status.Reason
	}

	if len(pod.Status.ContainerStatuses) == 0 {
		return StateDeploying, pod.Status.Reason
	}

	state, reason := StateDeployed, ""
	for _, cs := range pod.Status.ContainerStatuses {
		cState, cReason := classifyContainer(cs, spec)
		if stateSeverity[cState] > stateSeverity[state] {
			state, reason = cState, cReason
		}
	}
	return state, reason
}

// classifyContainer maps one container status to an instance state.
// Restart-style conditions stay recoverable until the restart count
// crosses the configured threshold; image and config pull failures are
// unrecoverable immediately.
func classifyContainer(cs corev1.ContainerStatus, spec *properties.ResolvedSpec) (AppState, string) {
	switch {
	case cs.State.Terminated != nil:
		t := cs.State.Terminated
		if t.ExitCode != 0 && int(cs.RestartCount) >= spec.MaxTerminatedErrorRestarts {
			return StateFailed, t.Reason
		}
		return StateDeploying, t.Reason
	case cs.State.Waiting != nil:
		w := cs.State.Waiting
		if w.Reason == "CrashLoopBackOff" {
			if int(cs.RestartCount) >= spec.MaxCrashLoopBackOffRestarts {
				return StateFailed, w.Reason
			}
			return StateDeploying, w.Reason
		}
		if unrecoverableWaitingReasons[w.Reason] {
			return StateError, w.Reason
		}
		return StateDeploying, w.Reason
	case cs.Ready:
		return StateDeployed, ""
	default:
		return StateDeploying, ""
	}
}

// aggregateState folds instance states into one app state. Failures win,
// then unrecoverable errors. A full complement of ready instances is
// deployed, anything still converging is deploying, and a stable but
// incomplete set of ready instances is partial.
func aggregateState(expected int, instances []InstanceStatus) AppState {
	if len(instances) == 0 {
		if expected > 0 {
			return StateDeploying
		}
		return StateUnknown
	}

	ready := 0
	var anyFailed, anyError, anyConverging, anyUnknown bool
	for _, inst := range instances {
		switch inst.State {
		case StateFailed:
			anyFailed = true
		case StateError:
			anyError = true
		case StateDeployed:
			ready++
		case StateUnknown:
			anyUnknown = true
		default:
			anyConverging = true
		}
	}

	switch {
	case anyFailed:
		return StateFailed
	case anyError:
		return StateError
	case ready >= expected && expected > 0:
		return StateDeployed
	case anyConverging:
		return StateDeploying
	case ready > 0:
		return StatePartial
	case anyUnknown:
		return StateUnknown
	default:
		return StateDeploying
	}
}

func podRestarts(pod *corev1.Pod) int {
	restarts := 0
	for _, cs := range pod.Status.ContainerStatuses {
		if int(cs.RestartCount) > restarts {
			restarts = int(cs.RestartCount)
		}
	}
	return restarts
}

func loadBalancerAddress(lb *corev1.LoadBalancerStatus) string {
	for _, ing := range lb.Ingress {
		if ing.Hostname != "" {
			return ing.Hostname
		}
		if ing.IP != "" {
			return ing.IP
		}
	}
	return ""
}
