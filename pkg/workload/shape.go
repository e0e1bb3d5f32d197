package workload

import "github.com/stevedore-app/stevedore/pkg/properties"

// Shape classifies how an app's instances are realized on the cluster.
type Shape string

const (
	// ShapeSimple runs a single bare pod.
	ShapeSimple Shape = "Simple"
	// ShapeScaled runs a replicated set of interchangeable pods.
	ShapeScaled Shape = "Scaled"
	// ShapeIndexed gives every instance a stable ordinal identity and
	// per-instance storage.
	ShapeIndexed Shape = "Indexed"
)

// Ordering is the startup ordering of a workload's instances.
type Ordering string

const (
	// OrderingNone starts instances in any order.
	OrderingNone Ordering = "None"
	// OrderingSequential starts instance n only after instance n-1 is
	// ready.
	OrderingSequential Ordering = "Sequential"
)

// Descriptor captures the selected shape for one deployment.
type Descriptor struct {
	Shape    Shape
	Count    int
	Ordering Ordering
}

// Select picks the workload shape from the resolved request. Indexed
// requests always win over count, and always start sequentially so ordinal
// n can rely on ordinal n-1, even with a single instance.
func Select(spec *properties.ResolvedSpec) Descriptor {
	switch {
	case spec.Indexed:
		return Descriptor{Shape: ShapeIndexed, Count: spec.Count, Ordering: OrderingSequential}
	case spec.Count > 1:
		return Descriptor{Shape: ShapeScaled, Count: spec.Count, Ordering: OrderingNone}
	default:
		return Descriptor{Shape: ShapeSimple, Count: 1, Ordering: OrderingNone}
	}
}
