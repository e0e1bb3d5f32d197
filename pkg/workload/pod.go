package workload

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/stevedore-app/stevedore/pkg/identity"
	"github.com/stevedore-app/stevedore/pkg/properties"
)

// BuildPod creates the bare pod for a simple single-instance workload.
// There is no controller behind it: the kubelet restart policy is the only
// recovery, which is exactly what the simple shape asks for.
func BuildPod(app App, spec *properties.ResolvedSpec, desc Descriptor) *corev1.Pod {
	template := buildPodTemplate(app, spec, desc, identity.Labels(app.DeploymentID, spec.Group))
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:        app.DeploymentID,
			Labels:      template.Labels,
			Annotations: template.Annotations,
		},
		Spec: template.Spec,
	}
}
