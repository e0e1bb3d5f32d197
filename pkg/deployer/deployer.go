// Package deployer translates deployment requests into Kubernetes workload
// resources and reads normalized app status back out of the cluster.
//
// The deployer keeps no state of its own. The cluster is the source of
// truth: Deploy creates labeled resources, Status recomputes app health
// from whatever currently carries the labels, and Undeploy removes
// everything the labels select.
package deployer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/stevedore-app/stevedore/pkg/identity"
	"github.com/stevedore-app/stevedore/pkg/properties"
	"github.com/stevedore-app/stevedore/pkg/workload"
)

// Request describes one application to deploy.
type Request struct {
	// Name is the caller-facing app name. Together with the group
	// property it determines the deployment id.
	Name string

	// Image is the container image reference to run.
	Image string

	// Args are appended to the image entrypoint.
	Args []string

	// Config is app-level configuration, injected as environment
	// variables in sorted key order.
	Config map[string]string

	// Properties are per-deployment platform options, merged over the
	// deployer's defaults. Keys outside the platform prefix are ignored.
	Properties map[string]string
}

// Deployer deploys apps to a Kubernetes namespace and reports their status.
type Deployer struct {
	client    kubernetes.Interface
	namespace string
	defaults  properties.Properties
	base      *properties.ResolvedSpec
	logger    *slog.Logger

	pollInterval time.Duration
}

// New creates a Deployer on the given cluster client. The target namespace
// comes from the defaults, falling back to "default". The defaults are
// resolved once up front so malformed server-level configuration fails
// here instead of on the first request.
func New(client kubernetes.Interface, defaults properties.Properties, logger *slog.Logger) (*Deployer, error) {
	base, err := properties.Resolve(defaults, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve default properties: %w", err)
	}
	namespace := defaults.Namespace
	if namespace == "" {
		namespace = corev1.NamespaceDefault
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Deployer{
		client:       client,
		namespace:    namespace,
		defaults:     defaults,
		base:         base,
		logger:       logger,
		pollInterval: addressPollInterval,
	}, nil
}

// Namespace returns the namespace the deployer operates in.
func (d *Deployer) Namespace() string { return d.namespace }

// Deploy resolves the request against the deployer defaults, builds the
// resource set for the selected workload shape and creates it on the
// cluster. It returns the deployment id under which the app's resources
// are labeled.
//
// The workload object is created first, so deploying an id that already
// exists fails on the initial create with the cluster's AlreadyExists
// error. A failure after the workload exists leaves the created resources
// in place.
func (d *Deployer) Deploy(ctx context.Context, req Request) (string, error) {
	if req.Name == "" {
		return "", ErrMissingAppName
	}
	if req.Image == "" {
		return "", ErrMissingImage
	}

	spec, err := properties.Resolve(d.defaults, req.Properties)
	if err != nil {
		return "", err
	}

	id := identity.DeploymentID(req.Name, spec.Group)
	app := workload.App{
		DeploymentID: id,
		Image:        req.Image,
		Args:         req.Args,
		Env:          req.Config,
	}
	set := workload.BuildResourceSet(app, spec)

	desc := workload.Select(spec)
	d.logger.Info("deploying app",
		"app", req.Name,
		"deployment_id", id,
		"namespace", d.namespace,
		"shape", string(desc.Shape),
		"count", desc.Count)

	switch {
	case set.StatefulSet != nil:
		if _, err := d.client.AppsV1().StatefulSets(d.namespace).Create(ctx, set.StatefulSet, metav1.CreateOptions{}); err != nil {
			return "", clusterError("create", "statefulset", id, err)
		}
	case set.Deployment != nil:
		if _, err := d.client.AppsV1().Deployments(d.namespace).Create(ctx, set.Deployment, metav1.CreateOptions{}); err != nil {
			return "", clusterError("create", "deployment", id, err)
		}
	default:
		if _, err := d.client.CoreV1().Pods(d.namespace).Create(ctx, set.Pod, metav1.CreateOptions{}); err != nil {
			return "", clusterError("create", "pod", id, err)
		}
	}

	if set.Service != nil {
		if _, err := d.client.CoreV1().Services(d.namespace).Create(ctx, set.Service, metav1.CreateOptions{}); err != nil {
			return "", clusterError("create", "service", id, err)
		}
	}

	d.logger.Info("deployed app", "deployment_id", id)
	return id, nil
}

// Undeploy deletes every resource labeled with the deployment id: the
// workload object, bare pods, the app service and any volume claims the
// workload materialized. It returns ErrNotDeployed when the labels select
// nothing at all.
//
// Workloads go first so their controllers stop replacing pods. Pod
// deletes tolerate NotFound because the workload cascade races them.
func (d *Deployer) Undeploy(ctx context.Context, deploymentID string) error {
	listOpts := metav1.ListOptions{LabelSelector: identity.Selector(deploymentID)}
	propagation := metav1.DeletePropagationBackground
	deleteOpts := metav1.DeleteOptions{PropagationPolicy: &propagation}

	d.logger.Info("undeploying app", "deployment_id", deploymentID, "namespace", d.namespace)

	deleted := 0

	statefulSets, err := d.client.AppsV1().StatefulSets(d.namespace).List(ctx, listOpts)
	if err != nil {
		return clusterError("list", "statefulsets", deploymentID, err)
	}
	for _, sts := range statefulSets.Items {
		if err := d.client.AppsV1().StatefulSets(d.namespace).Delete(ctx, sts.Name, deleteOpts); err != nil && !apierrors.IsNotFound(err) {
			return clusterError("delete", "statefulset", sts.Name, err)
		}
		deleted++
	}

	deployments, err := d.client.AppsV1().Deployments(d.namespace).List(ctx, listOpts)
	if err != nil {
		return clusterError("list", "deployments", deploymentID, err)
	}
	for _, dep := range deployments.Items {
		if err := d.client.AppsV1().Deployments(d.namespace).Delete(ctx, dep.Name, deleteOpts); err != nil && !apierrors.IsNotFound(err) {
			return clusterError("delete", "deployment", dep.Name, err)
		}
		deleted++
	}

	pods, err := d.client.CoreV1().Pods(d.namespace).List(ctx, listOpts)
	if err != nil {
		return clusterError("list", "pods", deploymentID, err)
	}
	for _, pod := range pods.Items {
		if err := d.client.CoreV1().Pods(d.namespace).Delete(ctx, pod.Name, deleteOpts); err != nil && !apierrors.IsNotFound(err) {
			return clusterError("delete", "pod", pod.Name, err)
		}
		deleted++
	}

	services, err := d.client.CoreV1().Services(d.namespace).List(ctx, listOpts)
	if err != nil {
		return clusterError("list", "services", deploymentID, err)
	}
	for _, svc := range services.Items {
		if err := d.client.CoreV1().Services(d.namespace).Delete(ctx, svc.Name, deleteOpts); err != nil && !apierrors.IsNotFound(err) {
			return clusterError("delete", "service", svc.Name, err)
		}
		deleted++
	}

	claims, err := d.client.CoreV1().PersistentVolumeClaims(d.namespace).List(ctx, listOpts)
	if err != nil {
		return clusterError("list", "persistentvolumeclaims", deploymentID, err)
	}
	for _, claim := range claims.Items {
		if err := d.client.CoreV1().PersistentVolumeClaims(d.namespace).Delete(ctx, claim.Name, deleteOpts); err != nil && !apierrors.IsNotFound(err) {
			return clusterError("delete", "persistentvolumeclaim", claim.Name, err)
		}
		deleted++
	}

	if deleted == 0 {
		return fmt.Errorf("%q: %w", deploymentID, ErrNotDeployed)
	}

	d.logger.Info("undeployed app", "deployment_id", deploymentID, "resources", deleted)
	return nil
}
