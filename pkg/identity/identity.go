package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"k8s.io/apimachinery/pkg/labels"
)

// Label keys stamped on every resource created for a deployment. The app-id
// label plus the managed-by marker form the exact selector used to find the
// deployment's resources again.
const (
	LabelAppID     = "stevedore.dev/app-id"
	LabelGroup     = "stevedore.dev/group"
	LabelManagedBy = "app.kubernetes.io/managed-by"

	ManagedByValue = "stevedore"
)

// maxNameLength is the DNS-1123 label limit enforced by the API server.
const maxNameLength = 63

var invalidChars = regexp.MustCompile(`[^a-z0-9-]`)

// DeploymentID derives the unique id for an app within its group. Grouped
// apps get "<group>-<name>" so the same app name can be deployed under two
// groups without colliding. The result is a valid DNS-1123 label and is
// stable across calls with the same inputs.
func DeploymentID(name, group string) string {
	id := name
	if group != "" {
		id = group + "-" + name
	}
	return sanitize(id)
}

// sanitize converts a raw name to a DNS-1123 label
// - Replaces underscores and dots with hyphens
// - Converts to lowercase
// - Removes invalid characters
// - Bounds the length, keeping a hash suffix so distinct inputs stay
//   distinct after truncation
func sanitize(raw string) string {
	s := strings.ToLower(raw)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = invalidChars.ReplaceAllString(s, "")
	s = strings.Trim(s, "-")
	if len(s) > maxNameLength {
		sum := sha256.Sum256([]byte(raw))
		suffix := hex.EncodeToString(sum[:])[:8]
		s = strings.TrimRight(s[:maxNameLength-len(suffix)-1], "-") + "-" + suffix
	}
	return s
}

// Labels returns the full label set for a deployment. The group label is
// informational only and never part of the selector.
func Labels(deploymentID, group string) map[string]string {
	l := map[string]string{
		LabelAppID:     deploymentID,
		LabelManagedBy: ManagedByValue,
	}
	if group != "" {
		l[LabelGroup] = sanitize(group)
	}
	return l
}

// SelectorLabels returns the exact-match label subset that selects a
// deployment's resources and nothing else.
func SelectorLabels(deploymentID string) map[string]string {
	return map[string]string{
		LabelAppID:     deploymentID,
		LabelManagedBy: ManagedByValue,
	}
}

// Selector returns the string form of the exact-match selector for list
// and delete calls.
func Selector(deploymentID string) string {
	return labels.SelectorFromSet(SelectorLabels(deploymentID)).String()
}
