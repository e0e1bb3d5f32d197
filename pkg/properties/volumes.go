package properties

import (
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/yaml"
)

// ParseVolumes parses the structural volumes option: a YAML or JSON flow
// list of Kubernetes volumes, e.g.
//
//	[{name: data, persistentVolumeClaim: {claimName: data}},
//	 {name: scratch, hostPath: {path: /tmp/scratch}}]
func ParseVolumes(option, s string) ([]corev1.Volume, error) {
	var volumes []corev1.Volume
	if err := yaml.Unmarshal([]byte(s), &volumes); err != nil {
		return nil, configError(option, "invalid volume list: %v", err)
	}
	return volumes, nil
}

// ParseVolumeMounts parses the structural volumeMounts option, e.g.
//
//	[{name: data, mountPath: /data, readOnly: true}]
func ParseVolumeMounts(option, s string) ([]corev1.VolumeMount, error) {
	var mounts []corev1.VolumeMount
	if err := yaml.Unmarshal([]byte(s), &mounts); err != nil {
		return nil, configError(option, "invalid volume mount list: %v", err)
	}
	return mounts, nil
}

// mergeVolumes overlays request volumes onto the defaults. A request volume
// with the same name replaces the default wholesale; new names append in
// request order.
func mergeVolumes(defaults, overrides []corev1.Volume) []corev1.Volume {
	merged := make([]corev1.Volume, 0, len(defaults)+len(overrides))
	index := make(map[string]int, len(defaults))
	for _, v := range defaults {
		index[v.Name] = len(merged)
		merged = append(merged, v)
	}
	for _, v := range overrides {
		if i, ok := index[v.Name]; ok {
			merged[i] = v
			continue
		}
		merged = append(merged, v)
	}
	return merged
}

// mergeVolumeMounts overlays request mounts onto the defaults by volume
// name, same rules as mergeVolumes.
func mergeVolumeMounts(defaults, overrides []corev1.VolumeMount) []corev1.VolumeMount {
	merged := make([]corev1.VolumeMount, 0, len(defaults)+len(overrides))
	index := make(map[string]int, len(defaults))
	for _, m := range defaults {
		index[m.Name] = len(merged)
		merged = append(merged, m)
	}
	for _, m := range overrides {
		if i, ok := index[m.Name]; ok {
			merged[i] = m
			continue
		}
		merged = append(merged, m)
	}
	return merged
}

// referencedVolumes drops volumes no mount references. Defaults often
// declare more volumes than a given app mounts; only the referenced ones
// are sent to the cluster.
func referencedVolumes(volumes []corev1.Volume, mounts []corev1.VolumeMount) []corev1.Volume {
	names := make(map[string]bool, len(mounts))
	for _, m := range mounts {
		names[m.Name] = true
	}
	var used []corev1.Volume
	for _, v := range volumes {
		if names[v.Name] {
			used = append(used, v)
		}
	}
	return used
}
