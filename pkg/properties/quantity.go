package properties

import (
	"strings"

	"k8s.io/apimachinery/pkg/api/resource"
)

// NormalizeStorage converts the loose size syntax accepted by storage and
// memory options into a Kubernetes quantity. Single-letter suffixes mean
// their binary equivalents: "1g" is one gibibyte, not 10^9 bytes. Already
// valid quantities pass through unchanged; a bare number is bytes.
func NormalizeStorage(option, s string) (resource.Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return resource.Quantity{}, configError(option, "size is empty")
	}

	normalized := s
	switch s[len(s)-1] {
	case 'k', 'K':
		normalized = s[:len(s)-1] + "Ki"
	case 'm', 'M':
		normalized = s[:len(s)-1] + "Mi"
	case 'g', 'G':
		normalized = s[:len(s)-1] + "Gi"
	case 't', 'T':
		normalized = s[:len(s)-1] + "Ti"
	}

	q, err := resource.ParseQuantity(normalized)
	if err != nil {
		return resource.Quantity{}, configError(option, "invalid size %q: %v", s, err)
	}
	return q, nil
}
