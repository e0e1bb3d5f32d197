package deployer

import (
	"errors"
	"fmt"
)

// ErrMissingAppName is returned when a request carries no app name.
var ErrMissingAppName = errors.New("app name is required")

// ErrMissingImage is returned when a request carries no image reference.
var ErrMissingImage = errors.New("image reference is required")

// ErrNotDeployed is returned by Undeploy when no resource carries the
// deployment's labels.
var ErrNotDeployed = errors.New("app is not deployed")

// ClusterError wraps a failed cluster API call. The client-go error is
// kept verbatim, and Op, Resource and Name identify the call that failed.
// Resources created before the failure are left in place; nothing is
// rolled back.
type ClusterError struct {
	Op       string
	Resource string
	Name     string
	Err      error
}

func (e *ClusterError) Error() string {
	return fmt.Sprintf("failed to %s %s %q: %v", e.Op, e.Resource, e.Name, e.Err)
}

func (e *ClusterError) Unwrap() error { return e.Err }

func clusterError(op, resource, name string, err error) *ClusterError {
	return &ClusterError{Op: op, Resource: resource, Name: name, Err: err}
}
