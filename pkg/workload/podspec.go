package workload

import (
	"sort"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/stevedore-app/stevedore/pkg/properties"
)

// buildPodTemplate assembles the pod template shared by all three shapes;
// only the owning object differs.
func buildPodTemplate(app App, spec *properties.ResolvedSpec, desc Descriptor, labels map[string]string) corev1.PodTemplateSpec {
	container := corev1.Container{
		Name:  app.DeploymentID,
		Image: app.Image,
		Args:  app.Args,
		Ports: []corev1.ContainerPort{{ContainerPort: spec.ContainerPort}},
		Env:   buildEnv(app, spec, desc),
		LivenessProbe: httpProbe(spec.LivenessProbePath, spec.ContainerPort,
			spec.LivenessProbeDelay, spec.LivenessProbePeriod),
		ReadinessProbe: httpProbe(spec.ReadinessProbePath, spec.ContainerPort,
			spec.ReadinessProbeDelay, spec.ReadinessProbePeriod),
		Resources:    buildResources(spec),
		VolumeMounts: spec.VolumeMounts,
	}

	podSpec := corev1.PodSpec{
		Containers:   []corev1.Container{container},
		Volumes:      spec.Volumes,
		NodeSelector: spec.NodeSelector,
	}
	if spec.ServiceAccountName != "" {
		podSpec.ServiceAccountName = spec.ServiceAccountName
	}
	if spec.ImagePullSecret != "" {
		podSpec.ImagePullSecrets = []corev1.LocalObjectReference{{Name: spec.ImagePullSecret}}
	}

	return corev1.PodTemplateSpec{
		ObjectMeta: metav1.ObjectMeta{
			Labels:      labels,
			Annotations: spec.PodAnnotations,
		},
		Spec: podSpec,
	}
}

// buildEnv assembles the container environment: app config first, sorted
// by name for determinism, then the resolved environment records in their
// stable order, then the platform entries. A record with the same name as
// an app config entry wins by coming later.
func buildEnv(app App, spec *properties.ResolvedSpec, desc Descriptor) []corev1.EnvVar {
	var env []corev1.EnvVar

	names := make([]string, 0, len(app.Env))
	for name := range app.Env {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		env = append(env, corev1.EnvVar{Name: name, Value: app.Env[name]})
	}

	for _, r := range spec.Environment {
		env = append(env, corev1.EnvVar{Name: r.Key, Value: r.Value})
	}

	if spec.Group != "" {
		env = append(env, corev1.EnvVar{Name: EnvGroup, Value: spec.Group})
	}
	if desc.Shape == ShapeIndexed {
		env = append(env, corev1.EnvVar{
			Name: EnvInstanceIndex,
			ValueFrom: &corev1.EnvVarSource{
				FieldRef: &corev1.ObjectFieldSelector{
					FieldPath: "metadata.labels['" + podIndexLabel + "']",
				},
			},
		})
	}
	return env
}

// buildResources applies memory and cpu to both limits and requests so the
// scheduler and the runtime see the same numbers.
func buildResources(spec *properties.ResolvedSpec) corev1.ResourceRequirements {
	limits := corev1.ResourceList{}
	if spec.Memory != nil {
		limits[corev1.ResourceMemory] = *spec.Memory
	}
	if spec.CPU != nil {
		limits[corev1.ResourceCPU] = *spec.CPU
	}
	if len(limits) == 0 {
		return corev1.ResourceRequirements{}
	}
	requests := corev1.ResourceList{}
	for name, q := range limits {
		requests[name] = q.DeepCopy()
	}
	return corev1.ResourceRequirements{Limits: limits, Requests: requests}
}

func httpProbe(path string, port, delay, period int32) *corev1.Probe {
	return &corev1.Probe{
		ProbeHandler: corev1.ProbeHandler{
			HTTPGet: &corev1.HTTPGetAction{
				Path: path,
				Port: intstr.FromInt32(port),
			},
		},
		InitialDelaySeconds: delay,
		PeriodSeconds:       period,
	}
}
