package properties

import (
	"strconv"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
)

// ResolvedSpec is the fully resolved configuration for one deployment
// request. It is computed once per call and treated as immutable from then
// on: builders read it, nothing writes it.
type ResolvedSpec struct {
	Group   string
	Indexed bool
	Count   int

	Environment  []Record
	Volumes      []corev1.Volume
	VolumeMounts []corev1.VolumeMount

	NodeSelector       map[string]string
	PodAnnotations     map[string]string
	ServiceAnnotations map[string]string

	ImagePullSecret    string
	ServiceAccountName string

	// Memory and CPU are nil when not configured. When set they apply to
	// both limits and requests.
	Memory *resource.Quantity
	CPU    *resource.Quantity

	ContainerPort int32

	LivenessProbePath    string
	LivenessProbePeriod  int32
	LivenessProbeDelay   int32
	ReadinessProbePath   string
	ReadinessProbePeriod int32
	ReadinessProbeDelay  int32

	CreateLoadBalancer           bool
	MinutesToWaitForLoadBalancer int

	MaxTerminatedErrorRestarts  int
	MaxCrashLoopBackOffRestarts int

	ClaimStorage          resource.Quantity
	ClaimStorageClassName *string
}

var knownOptions = map[string]bool{
	OptionEnvironmentVariables:         true,
	OptionVolumes:                      true,
	OptionVolumeMounts:                 true,
	OptionNodeSelector:                 true,
	OptionPodAnnotations:               true,
	OptionServiceAnnotations:           true,
	OptionImagePullSecret:              true,
	OptionServiceAccountName:           true,
	OptionMemory:                       true,
	OptionCPU:                          true,
	OptionContainerPort:                true,
	OptionLivenessProbePath:            true,
	OptionLivenessProbePeriod:          true,
	OptionLivenessProbeDelay:           true,
	OptionReadinessProbePath:           true,
	OptionReadinessProbePeriod:         true,
	OptionReadinessProbeDelay:          true,
	OptionCreateLoadBalancer:           true,
	OptionMinutesToWaitForLoadBalancer: true,
	OptionMaxTerminatedErrorRestarts:   true,
	OptionMaxCrashLoopBackOffRestarts:  true,
	OptionClaimStorage:                 true,
	OptionClaimStorageClassName:        true,
}

// Resolve layers the request's options over the deployer-wide defaults and
// the built-in defaults. The request map is read, never modified. Keys
// outside PropertyPrefix and the reserved properties are ignored so callers
// can pass mixed property bags through; a key under PropertyPrefix that
// names no known option is rejected.
func Resolve(defaults Properties, request map[string]string) (*ResolvedSpec, error) {
	for key := range request {
		if name, ok := strings.CutPrefix(key, PropertyPrefix); ok && !knownOptions[name] {
			return nil, configError(key, "unknown option")
		}
	}

	o := options{request: request}
	spec := &ResolvedSpec{
		Group: strings.TrimSpace(request[PropertyGroup]),
		Count: 1,
	}

	if v := strings.TrimSpace(request[PropertyIndexed]); v != "" {
		indexed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, configError(PropertyIndexed, "not a boolean: %q", v)
		}
		spec.Indexed = indexed
	}
	if v := strings.TrimSpace(request[PropertyCount]); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, configError(PropertyCount, "instance count must be a positive number, got %q", v)
		}
		spec.Count = n
	}

	var err error
	if spec.Environment, err = resolveEnvironment(defaults, o); err != nil {
		return nil, err
	}
	if spec.Volumes, spec.VolumeMounts, err = resolveVolumes(defaults, o); err != nil {
		return nil, err
	}
	if spec.NodeSelector, err = resolveRecordMap(OptionNodeSelector, defaults.NodeSelector, o); err != nil {
		return nil, err
	}
	if spec.PodAnnotations, err = resolveRecordMap(OptionPodAnnotations, defaults.PodAnnotations, o); err != nil {
		return nil, err
	}
	if spec.ServiceAnnotations, err = resolveRecordMap(OptionServiceAnnotations, defaults.ServiceAnnotations, o); err != nil {
		return nil, err
	}

	spec.ImagePullSecret = o.str(OptionImagePullSecret, defaults.ImagePullSecret, "")
	spec.ServiceAccountName = o.str(OptionServiceAccountName, defaults.DeploymentServiceAccountName, "")

	if spec.Memory, err = resolveQuantity(OptionMemory, defaults.Memory, o, true); err != nil {
		return nil, err
	}
	if spec.CPU, err = resolveQuantity(OptionCPU, defaults.CPU, o, false); err != nil {
		return nil, err
	}

	if spec.ContainerPort, err = o.int32Option(OptionContainerPort, defaults.ContainerPort, DefaultContainerPort); err != nil {
		return nil, err
	}

	spec.LivenessProbePath = o.str(OptionLivenessProbePath, defaults.LivenessProbePath, DefaultLivenessProbePath)
	if spec.LivenessProbePeriod, err = o.int32Option(OptionLivenessProbePeriod, defaults.LivenessProbePeriod, DefaultLivenessProbePeriod); err != nil {
		return nil, err
	}
	if spec.LivenessProbeDelay, err = o.int32Option(OptionLivenessProbeDelay, defaults.LivenessProbeDelay, DefaultLivenessProbeDelay); err != nil {
		return nil, err
	}
	spec.ReadinessProbePath = o.str(OptionReadinessProbePath, defaults.ReadinessProbePath, DefaultReadinessProbePath)
	if spec.ReadinessProbePeriod, err = o.int32Option(OptionReadinessProbePeriod, defaults.ReadinessProbePeriod, DefaultReadinessProbePeriod); err != nil {
		return nil, err
	}
	if spec.ReadinessProbeDelay, err = o.int32Option(OptionReadinessProbeDelay, defaults.ReadinessProbeDelay, DefaultReadinessProbeDelay); err != nil {
		return nil, err
	}

	if spec.CreateLoadBalancer, err = o.boolOption(OptionCreateLoadBalancer, defaults.CreateLoadBalancer); err != nil {
		return nil, err
	}
	if spec.MinutesToWaitForLoadBalancer, err = o.intOption(OptionMinutesToWaitForLoadBalancer, defaults.MinutesToWaitForLoadBalancer, DefaultLoadBalancerWaitMinutes); err != nil {
		return nil, err
	}

	if spec.MaxTerminatedErrorRestarts, err = o.intOption(OptionMaxTerminatedErrorRestarts, defaults.MaxTerminatedErrorRestarts, DefaultMaxTerminatedErrorRestarts); err != nil {
		return nil, err
	}
	if spec.MaxCrashLoopBackOffRestarts, err = o.intOption(OptionMaxCrashLoopBackOffRestarts, defaults.MaxCrashLoopBackOffRestarts, DefaultMaxCrashLoopBackOffRestarts); err != nil {
		return nil, err
	}

	storage := o.str(OptionClaimStorage, defaults.StatefulSet.VolumeClaimTemplate.Storage, DefaultClaimStorage)
	if spec.ClaimStorage, err = NormalizeStorage(PropertyPrefix+OptionClaimStorage, storage); err != nil {
		return nil, err
	}
	if class := o.str(OptionClaimStorageClassName, defaults.StatefulSet.VolumeClaimTemplate.StorageClassName, ""); class != "" {
		spec.ClaimStorageClassName = &class
	}

	return spec, nil
}

// options reads request-scoped values. An absent or blank value counts as
// unset and falls through to the defaults.
type options struct {
	request map[string]string
}

func (o options) lookup(name string) (string, bool) {
	v := strings.TrimSpace(o.request[PropertyPrefix+name])
	return v, v != ""
}

func (o options) str(name, deployerDefault, builtin string) string {
	if v, ok := o.lookup(name); ok {
		return v
	}
	if deployerDefault != "" {
		return deployerDefault
	}
	return builtin
}

func (o options) intOption(name string, deployerDefault, builtin int) (int, error) {
	if v, ok := o.lookup(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, configError(PropertyPrefix+name, "not a number: %q", v)
		}
		return n, nil
	}
	if deployerDefault != 0 {
		return deployerDefault, nil
	}
	return builtin, nil
}

func (o options) int32Option(name string, deployerDefault, builtin int32) (int32, error) {
	if v, ok := o.lookup(name); ok {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return 0, configError(PropertyPrefix+name, "not a number: %q", v)
		}
		return int32(n), nil
	}
	if deployerDefault != 0 {
		return deployerDefault, nil
	}
	return builtin, nil
}

func (o options) boolOption(name string, deployerDefault bool) (bool, error) {
	if v, ok := o.lookup(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, configError(PropertyPrefix+name, "not a boolean: %q", v)
		}
		return b, nil
	}
	return deployerDefault, nil
}

// resolveEnvironment merges the defaults' environment entries with the
// request's records. A request record replaces a same-named default in
// place; new names append in request order, so the final order is stable.
func resolveEnvironment(defaults Properties, o options) ([]Record, error) {
	var merged []Record
	index := make(map[string]int)
	for _, entry := range defaults.EnvironmentVariables {
		key, value, found := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, configError(OptionEnvironmentVariables, "default entry %q is not KEY=VALUE", entry)
		}
		index[key] = len(merged)
		merged = append(merged, Record{Key: key, Value: value})
	}

	raw, ok := o.lookup(OptionEnvironmentVariables)
	if !ok {
		return merged, nil
	}
	records, err := ParseRecords(PropertyPrefix+OptionEnvironmentVariables, raw, '=')
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if i, found := index[r.Key]; found {
			merged[i] = r
			continue
		}
		merged = append(merged, r)
	}
	return merged, nil
}

// resolveVolumes merges defaults and request volumes and mounts by name,
// then keeps only the volumes the final mount set references.
func resolveVolumes(defaults Properties, o options) ([]corev1.Volume, []corev1.VolumeMount, error) {
	var reqVolumes []corev1.Volume
	if raw, ok := o.lookup(OptionVolumes); ok {
		parsed, err := ParseVolumes(PropertyPrefix+OptionVolumes, raw)
		if err != nil {
			return nil, nil, err
		}
		reqVolumes = parsed
	}

	var reqMounts []corev1.VolumeMount
	if raw, ok := o.lookup(OptionVolumeMounts); ok {
		parsed, err := ParseVolumeMounts(PropertyPrefix+OptionVolumeMounts, raw)
		if err != nil {
			return nil, nil, err
		}
		reqMounts = parsed
	}

	volumes := mergeVolumes(defaults.Volumes, reqVolumes)
	mounts := mergeVolumeMounts(defaults.VolumeMounts, reqMounts)
	return referencedVolumes(volumes, mounts), mounts, nil
}

func resolveRecordMap(name, deployerDefault string, o options) (map[string]string, error) {
	raw := o.str(name, deployerDefault, "")
	if raw == "" {
		return nil, nil
	}
	records, err := ParseRecords(PropertyPrefix+name, raw, ':')
	if err != nil {
		return nil, err
	}
	return RecordMap(records), nil
}

// resolveQuantity resolves memory and cpu. Memory accepts the loose size
// suffixes ("512m" is 512Mi); cpu is a plain quantity where "500m" means
// half a core.
func resolveQuantity(name, deployerDefault string, o options, looseSize bool) (*resource.Quantity, error) {
	raw := o.str(name, deployerDefault, "")
	if raw == "" {
		return nil, nil
	}
	if looseSize {
		q, err := NormalizeStorage(PropertyPrefix+name, raw)
		if err != nil {
			return nil, err
		}
		return &q, nil
	}
	q, err := resource.ParseQuantity(raw)
	if err != nil {
		return nil, configError(PropertyPrefix+name, "invalid quantity %q: %v", raw, err)
	}
	return &q, nil
}
