package workload

import (
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/stevedore-app/stevedore/pkg/identity"
	"github.com/stevedore-app/stevedore/pkg/properties"
)

// BuildStatefulSet creates the StatefulSet for an indexed workload. Pods
// start in ordinal order, each waiting for its predecessor to be ready,
// and every ordinal gets its own claim from the template. The governing
// service shares the deployment id, so ordinal DNS names read
// <id>-<n>.<id>.
func BuildStatefulSet(app App, spec *properties.ResolvedSpec, desc Descriptor) *appsv1.StatefulSet {
	labels := identity.Labels(app.DeploymentID, spec.Group)
	replicas := int32(desc.Count)
	return &appsv1.StatefulSet{
		ObjectMeta: metav1.ObjectMeta{
			Name:   app.DeploymentID,
			Labels: labels,
		},
		Spec: appsv1.StatefulSetSpec{
			ServiceName: app.DeploymentID,
			Replicas:    &replicas,
			Selector: &metav1.LabelSelector{
				MatchLabels: identity.SelectorLabels(app.DeploymentID),
			},
			PodManagementPolicy: appsv1.OrderedReadyPodManagement,
			UpdateStrategy: appsv1.StatefulSetUpdateStrategy{
				Type: appsv1.RollingUpdateStatefulSetStrategyType,
			},
			Template: buildPodTemplate(app, spec, desc, labels),
			VolumeClaimTemplates: []corev1.PersistentVolumeClaim{
				buildClaimTemplate(app.DeploymentID, labels, spec),
			},
		},
	}
}

// buildClaimTemplate is the per-ordinal storage claim. Storage lands on
// both limits and requests, and the template carries the full label set so
// the claims the controller materializes stay selectable for undeploy.
func buildClaimTemplate(id string, labels map[string]string, spec *properties.ResolvedSpec) corev1.PersistentVolumeClaim {
	return corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:   id,
			Labels: labels,
		},
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes:      []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			StorageClassName: spec.ClaimStorageClassName,
			Resources: corev1.VolumeResourceRequirements{
				Limits:   corev1.ResourceList{corev1.ResourceStorage: spec.ClaimStorage},
				Requests: corev1.ResourceList{corev1.ResourceStorage: spec.ClaimStorage},
			},
		},
	}
}
