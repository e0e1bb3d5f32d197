package main

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stevedore-app/stevedore/pkg/artifact"
	"github.com/stevedore-app/stevedore/pkg/deployer"
)

func TestParseKeyValues(t *testing.T) {
	got, err := parseKeyValues("env", []string{"A=1", "B=two=parts", "EMPTY="})
	if err != nil {
		t.Fatalf("parseKeyValues() error = %v", err)
	}
	want := map[string]string{"A": "1", "B": "two=parts", "EMPTY": ""}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseKeyValues() mismatch (-want +got):\n%s", diff)
	}

	if got, err := parseKeyValues("env", nil); err != nil || got != nil {
		t.Errorf("parseKeyValues(nil) = %v, %v, want nil, nil", got, err)
	}

	for _, bad := range []string{"novalue", "=orphan"} {
		if _, err := parseKeyValues("set", []string{bad}); err == nil {
			t.Errorf("parseKeyValues(%q) accepted a malformed pair", bad)
		}
	}
}

func TestBuildRequest(t *testing.T) {
	deployGroup = "flow"
	deployIndexed = true
	deployCount = 2
	deployEnv = []string{"MODE=prod"}
	deploySet = []string{"stevedore.kubernetes.memory=512Mi"}
	t.Cleanup(func() {
		deployGroup = ""
		deployIndexed = false
		deployCount = 0
		deployEnv = nil
		deploySet = nil
	})

	req, err := buildRequest("myapp", []string{"--migrate"})
	if err != nil {
		t.Fatalf("buildRequest() error = %v", err)
	}

	if req.Name != "myapp" {
		t.Errorf("name = %q", req.Name)
	}
	if diff := cmp.Diff([]string{"--migrate"}, req.Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]string{"MODE": "prod"}, req.Config); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	wantProps := map[string]string{
		"stevedore.group":             "flow",
		"stevedore.indexed":           "true",
		"stevedore.count":             "2",
		"stevedore.kubernetes.memory": "512Mi",
	}
	if diff := cmp.Diff(wantProps, req.Properties); diff != "" {
		t.Errorf("properties mismatch (-want +got):\n%s", diff)
	}
}

type stubResolver struct{ art *artifact.Artifact }

func (s stubResolver) Resolve(context.Context, string) (*artifact.Artifact, error) {
	return s.art, nil
}

func TestResolveImage(t *testing.T) {
	t.Run("plain reference passes through", func(t *testing.T) {
		got, err := resolveImage(context.Background(), artifact.RefResolver{}, "myapp")
		if err != nil {
			t.Fatalf("resolveImage() error = %v", err)
		}
		if got != "myapp:latest" {
			t.Errorf("resolveImage() = %q, want myapp:latest", got)
		}
	})

	t.Run("daemon digest pins the image", func(t *testing.T) {
		const digest = "sha256:4bcff63911fcb4448bd4fdacec207030997caf25e9bea4045fa6c8c44de311d1"
		r := stubResolver{art: &artifact.Artifact{Reference: "myapp:1.0", Name: "myapp", Tag: "1.0", Digest: digest}}

		got, err := resolveImage(context.Background(), r, "myapp:1.0")
		if err != nil {
			t.Fatalf("resolveImage() error = %v", err)
		}
		if got != "myapp@"+digest {
			t.Errorf("resolveImage() = %q, want digest-pinned reference", got)
		}
	})
}

func TestStatusTableHelpers(t *testing.T) {
	status := deployer.AppStatus{
		DeploymentID: "myapp",
		State:        deployer.StatePartial,
		Instances: []deployer.InstanceStatus{
			{ID: "myapp-a", State: deployer.StateDeployed, Attributes: map[string]string{"url": "http://lb:8080"}},
			{ID: "myapp-b", State: deployer.StateDeploying},
		},
	}

	if got := readyInstances(status); got != 1 {
		t.Errorf("readyInstances() = %d, want 1", got)
	}
	if got := appURL(status); got != "http://lb:8080" {
		t.Errorf("appURL() = %q", got)
	}
	if got := appURL(deployer.AppStatus{}); got != "-" {
		t.Errorf("appURL(empty) = %q, want -", got)
	}
}
