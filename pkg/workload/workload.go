// Package workload turns a resolved deployment request into the concrete
// Kubernetes objects that realize it. Builders are pure: the same inputs
// always produce the same resource set, and nothing here talks to a
// cluster.
package workload

import (
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/stevedore-app/stevedore/pkg/identity"
	"github.com/stevedore-app/stevedore/pkg/properties"
)

// Environment entries injected into every container alongside the app's
// own configuration.
const (
	EnvGroup         = "STEVEDORE_GROUP"
	EnvInstanceIndex = "INSTANCE_INDEX"
)

// podIndexLabel is stamped on statefulset pods by the controller; the
// instance index entry reads it through the downward API.
const podIndexLabel = "apps.kubernetes.io/pod-index"

// App is the per-deployment input to the builders: identity plus container
// inputs. Env is the app-level configuration passed straight through as
// environment variables.
type App struct {
	DeploymentID string
	Image        string
	Args         []string
	Env          map[string]string
}

// ResourceSet is the complete, deterministic set of objects for one
// deployment. Exactly one of Pod, Deployment and StatefulSet is non-nil;
// Service may be nil.
type ResourceSet struct {
	DeploymentID string
	Labels       map[string]string

	Pod         *corev1.Pod
	Deployment  *appsv1.Deployment
	StatefulSet *appsv1.StatefulSet
	Service     *corev1.Service
}

// BuildResourceSet builds the full resource set for one deployment.
func BuildResourceSet(app App, spec *properties.ResolvedSpec) ResourceSet {
	desc := Select(spec)
	set := ResourceSet{
		DeploymentID: app.DeploymentID,
		Labels:       identity.Labels(app.DeploymentID, spec.Group),
		Service:      BuildService(app, spec, desc),
	}
	switch desc.Shape {
	case ShapeIndexed:
		set.StatefulSet = BuildStatefulSet(app, spec, desc)
	case ShapeScaled:
		set.Deployment = BuildDeployment(app, spec, desc)
	default:
		set.Pod = BuildPod(app, spec, desc)
	}
	return set
}
