package workload

import (
	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/stevedore-app/stevedore/pkg/identity"
	"github.com/stevedore-app/stevedore/pkg/properties"
)

// BuildDeployment creates the Deployment for a scaled workload.
func BuildDeployment(app App, spec *properties.ResolvedSpec, desc Descriptor) *appsv1.Deployment {
	labels := identity.Labels(app.DeploymentID, spec.Group)
	replicas := int32(desc.Count)
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:   app.DeploymentID,
			Labels: labels,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{
				MatchLabels: identity.SelectorLabels(app.DeploymentID),
			},
			Template: buildPodTemplate(app, spec, desc, labels),
		},
	}
}
