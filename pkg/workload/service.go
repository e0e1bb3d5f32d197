package workload

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/stevedore-app/stevedore/pkg/identity"
	"github.com/stevedore-app/stevedore/pkg/properties"
)

// BuildService creates the service fronting a deployment, or nil when none
// is needed. createLoadBalancer asks for external exposure and wins over
// everything else; otherwise indexed workloads get a headless service so
// ordinal DNS resolves, including for pods that are still coming up.
// Service annotations land here and nowhere else.
func BuildService(app App, spec *properties.ResolvedSpec, desc Descriptor) *corev1.Service {
	if !spec.CreateLoadBalancer && desc.Shape != ShapeIndexed {
		return nil
	}

	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:        app.DeploymentID,
			Labels:      identity.Labels(app.DeploymentID, spec.Group),
			Annotations: spec.ServiceAnnotations,
		},
		Spec: corev1.ServiceSpec{
			Selector: identity.SelectorLabels(app.DeploymentID),
			Ports: []corev1.ServicePort{{
				Port:       spec.ContainerPort,
				TargetPort: intstr.FromInt32(spec.ContainerPort),
			}},
		},
	}

	if spec.CreateLoadBalancer {
		svc.Spec.Type = corev1.ServiceTypeLoadBalancer
		return svc
	}

	svc.Spec.ClusterIP = corev1.ClusterIPNone
	svc.Spec.PublishNotReadyAddresses = true
	return svc
}
