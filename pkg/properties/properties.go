// Package properties resolves the configuration for a single deployment
// request. Request-scoped options are layered over deployer-wide defaults
// over built-in defaults. Resolution is pure and happens before anything
// touches the cluster, so a malformed option never leaves partial state
// behind.
package properties

import (
	"fmt"
	"os"

	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/yaml"
)

// PropertyPrefix namespaces every request-scoped Kubernetes option.
const PropertyPrefix = "stevedore.kubernetes."

// Reserved platform-agnostic request properties. They steer grouping and
// workload shape and are consumed during resolution, never passed through
// to the container.
const (
	PropertyGroup   = "stevedore.group"
	PropertyIndexed = "stevedore.indexed"
	PropertyCount   = "stevedore.count"
)

// Option names accepted under PropertyPrefix.
const (
	OptionEnvironmentVariables         = "environmentVariables"
	OptionVolumes                      = "volumes"
	OptionVolumeMounts                 = "volumeMounts"
	OptionNodeSelector                 = "nodeSelector"
	OptionPodAnnotations               = "podAnnotations"
	OptionServiceAnnotations           = "serviceAnnotations"
	OptionImagePullSecret              = "imagePullSecret"
	OptionServiceAccountName           = "deploymentServiceAccountName"
	OptionMemory                       = "memory"
	OptionCPU                          = "cpu"
	OptionContainerPort                = "containerPort"
	OptionLivenessProbePath            = "livenessProbePath"
	OptionLivenessProbePeriod          = "livenessProbePeriod"
	OptionLivenessProbeDelay           = "livenessProbeDelay"
	OptionReadinessProbePath           = "readinessProbePath"
	OptionReadinessProbePeriod         = "readinessProbePeriod"
	OptionReadinessProbeDelay          = "readinessProbeDelay"
	OptionCreateLoadBalancer           = "createLoadBalancer"
	OptionMinutesToWaitForLoadBalancer = "minutesToWaitForLoadBalancer"
	OptionMaxTerminatedErrorRestarts   = "maxTerminatedErrorRestarts"
	OptionMaxCrashLoopBackOffRestarts  = "maxCrashLoopBackOffRestarts"
	OptionClaimStorage                 = "statefulSet.volumeClaimTemplate.storage"
	OptionClaimStorageClassName        = "statefulSet.volumeClaimTemplate.storageClassName"
)

// Built-in defaults applied when neither the request nor the deployer-wide
// defaults set an option.
const (
	DefaultContainerPort        int32 = 8080
	DefaultLivenessProbePath          = "/health"
	DefaultLivenessProbePeriod  int32 = 60
	DefaultLivenessProbeDelay   int32 = 10
	DefaultReadinessProbePath         = "/ready"
	DefaultReadinessProbePeriod int32 = 10
	DefaultReadinessProbeDelay  int32 = 10

	DefaultLoadBalancerWaitMinutes = 3

	DefaultMaxTerminatedErrorRestarts  = 2
	DefaultMaxCrashLoopBackOffRestarts = 2

	DefaultClaimStorage = "10Mi"
)

// Properties are the deployer-wide defaults applied to every request unless
// the request overrides them. The zero value means nothing is configured;
// built-in defaults are applied during resolution, not here.
//
// Volumes and VolumeMounts are plain Kubernetes fragments. String options
// that hold record lists (NodeSelector, annotations) use the same compact
// syntax as the request-scoped options.
type Properties struct {
	Namespace                    string                `json:"namespace,omitempty"`
	EnvironmentVariables         []string              `json:"environmentVariables,omitempty"`
	Volumes                      []corev1.Volume       `json:"volumes,omitempty"`
	VolumeMounts                 []corev1.VolumeMount  `json:"volumeMounts,omitempty"`
	NodeSelector                 string                `json:"nodeSelector,omitempty"`
	PodAnnotations               string                `json:"podAnnotations,omitempty"`
	ServiceAnnotations           string                `json:"serviceAnnotations,omitempty"`
	ImagePullSecret              string                `json:"imagePullSecret,omitempty"`
	DeploymentServiceAccountName string                `json:"deploymentServiceAccountName,omitempty"`
	Memory                       string                `json:"memory,omitempty"`
	CPU                          string                `json:"cpu,omitempty"`
	ContainerPort                int32                 `json:"containerPort,omitempty"`
	LivenessProbePath            string                `json:"livenessProbePath,omitempty"`
	LivenessProbePeriod          int32                 `json:"livenessProbePeriod,omitempty"`
	LivenessProbeDelay           int32                 `json:"livenessProbeDelay,omitempty"`
	ReadinessProbePath           string                `json:"readinessProbePath,omitempty"`
	ReadinessProbePeriod         int32                 `json:"readinessProbePeriod,omitempty"`
	ReadinessProbeDelay          int32                 `json:"readinessProbeDelay,omitempty"`
	CreateLoadBalancer           bool                  `json:"createLoadBalancer,omitempty"`
	MinutesToWaitForLoadBalancer int                   `json:"minutesToWaitForLoadBalancer,omitempty"`
	MaxTerminatedErrorRestarts   int                   `json:"maxTerminatedErrorRestarts,omitempty"`
	MaxCrashLoopBackOffRestarts  int                   `json:"maxCrashLoopBackOffRestarts,omitempty"`
	StatefulSet                  StatefulSetProperties `json:"statefulSet,omitempty"`
}

// StatefulSetProperties holds defaults that only apply to indexed
// workloads.
type StatefulSetProperties struct {
	VolumeClaimTemplate ClaimTemplateProperties `json:"volumeClaimTemplate,omitempty"`
}

// ClaimTemplateProperties configures the per-instance storage claim
// template of an indexed workload.
type ClaimTemplateProperties struct {
	Storage          string `json:"storage,omitempty"`
	StorageClassName string `json:"storageClassName,omitempty"`
}

// LoadFile reads deployer-wide defaults from a YAML file.
func LoadFile(path string) (Properties, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Properties{}, fmt.Errorf("failed to read defaults file: %w", err)
	}
	var p Properties
	if err := yaml.UnmarshalStrict(data, &p); err != nil {
		return Properties{}, fmt.Errorf("failed to parse defaults file %s: %w", path, err)
	}
	return p, nil
}

// ConfigurationError reports a malformed or unknown deployment option. It
// is always raised before any cluster mutation.
type ConfigurationError struct {
	Option string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid deployment option %q: %v", e.Option, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func configError(option, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Option: option, Err: fmt.Errorf(format, args...)}
}
