package workload

import (
	"testing"

	"github.com/stevedore-app/stevedore/pkg/properties"
)

func int32Ptr(i int32) *int32 {
	return &i
}

// Every build must yield exactly one workload object.
func TestBuildResourceSetShapes(t *testing.T) {
	tests := []struct {
		name    string
		request map[string]string
		check   func(t *testing.T, set ResourceSet)
	}{
		{
			name: "simple builds a bare pod",
			check: func(t *testing.T, set ResourceSet) {
				if set.Pod == nil {
					t.Fatal("Pod = nil")
				}
				if set.Pod.Name != "myapp" {
					t.Errorf("pod name = %q, want myapp", set.Pod.Name)
				}
			},
		},
		{
			name:    "scaled builds a deployment",
			request: map[string]string{properties.PropertyCount: "3"},
			check: func(t *testing.T, set ResourceSet) {
				if set.Deployment == nil {
					t.Fatal("Deployment = nil")
				}
				if got := *set.Deployment.Spec.Replicas; got != 3 {
					t.Errorf("replicas = %d, want 3", got)
				}
			},
		},
		{
			name: "indexed builds a statefulset with its service",
			request: map[string]string{
				properties.PropertyIndexed: "true",
				properties.PropertyCount:   "2",
			},
			check: func(t *testing.T, set ResourceSet) {
				if set.StatefulSet == nil {
					t.Fatal("StatefulSet = nil")
				}
				if set.Service == nil {
					t.Fatal("Service = nil, indexed workloads need their governing service")
				}
				if set.Service.Name != set.StatefulSet.Spec.ServiceName {
					t.Errorf("service name %q != governing service %q",
						set.Service.Name, set.StatefulSet.Spec.ServiceName)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := properties.Resolve(properties.Properties{}, tt.request)
			if err != nil {
				t.Fatalf("Resolve returned error: %v", err)
			}
			set := BuildResourceSet(App{DeploymentID: "myapp", Image: "example/myapp:1.0"}, spec)

			workloads := 0
			for _, present := range []bool{set.Pod != nil, set.Deployment != nil, set.StatefulSet != nil} {
				if present {
					workloads++
				}
			}
			if workloads != 1 {
				t.Fatalf("resource set has %d workload objects, want exactly 1", workloads)
			}

			if set.DeploymentID != "myapp" {
				t.Errorf("DeploymentID = %q, want myapp", set.DeploymentID)
			}
			if set.Labels["stevedore.dev/app-id"] != "myapp" {
				t.Errorf("labels missing app id: %v", set.Labels)
			}
			tt.check(t, set)
		})
	}
}

// Building twice from the same inputs must give identical sets.
func TestBuildResourceSetDeterministic(t *testing.T) {
	request := map[string]string{
		properties.PropertyIndexed: "true",
		properties.PropertyCount:   "3",
	}
	request[properties.PropertyPrefix+"environmentVariables"] = "a=1,b=2"
	spec, err := properties.Resolve(properties.Properties{}, request)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	app := App{
		DeploymentID: "myapp",
		Image:        "example/myapp:1.0",
		Env:          map[string]string{"X": "1", "Y": "2", "Z": "3"},
	}

	first := BuildResourceSet(app, spec)
	for i := 0; i < 10; i++ {
		again := BuildResourceSet(app, spec)
		if first.StatefulSet.String() != again.StatefulSet.String() {
			t.Fatal("identical inputs produced different statefulsets")
		}
	}
}
