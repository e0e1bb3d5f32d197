package identity

import (
	"strings"
	"testing"
)

func TestDeploymentID(t *testing.T) {
	tests := []struct {
		name  string
		app   string
		group string
		want  string
	}{
		{name: "ungrouped", app: "myapp", group: "", want: "myapp"},
		{name: "grouped", app: "myapp", group: "flow", want: "flow-myapp"},
		{name: "uppercase lowered", app: "MyApp", group: "", want: "myapp"},
		{name: "underscores and dots become hyphens", app: "my_app.v2", group: "", want: "my-app-v2"},
		{name: "invalid runes dropped", app: "my app!", group: "", want: "myapp"},
		{name: "leading and trailing separators trimmed", app: ".myapp.", group: "", want: "myapp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeploymentID(tt.app, tt.group); got != tt.want {
				t.Errorf("DeploymentID(%q, %q) = %q, want %q", tt.app, tt.group, got, tt.want)
			}
		})
	}
}

func TestDeploymentIDLongNames(t *testing.T) {
	long := strings.Repeat("a", 100)

	id := DeploymentID(long, "")
	if len(id) > 63 {
		t.Fatalf("id length = %d, want <= 63", len(id))
	}

	// Same input must always give the same id.
	if again := DeploymentID(long, ""); again != id {
		t.Errorf("id not stable: %q vs %q", id, again)
	}

	// Distinct over-long inputs must not collapse to the same id.
	other := DeploymentID(strings.Repeat("a", 99)+"b", "")
	if other == id {
		t.Errorf("distinct inputs produced the same id %q", id)
	}
}

func TestLabels(t *testing.T) {
	t.Run("ungrouped", func(t *testing.T) {
		got := Labels("myapp", "")
		if got[LabelAppID] != "myapp" {
			t.Errorf("app id label = %q, want %q", got[LabelAppID], "myapp")
		}
		if got[LabelManagedBy] != ManagedByValue {
			t.Errorf("managed-by label = %q, want %q", got[LabelManagedBy], ManagedByValue)
		}
		if _, ok := got[LabelGroup]; ok {
			t.Error("group label present for ungrouped deployment")
		}
	})

	t.Run("grouped", func(t *testing.T) {
		got := Labels("flow-myapp", "flow")
		if got[LabelGroup] != "flow" {
			t.Errorf("group label = %q, want %q", got[LabelGroup], "flow")
		}
	})
}

func TestSelector(t *testing.T) {
	got := Selector("myapp")
	want := "app.kubernetes.io/managed-by=stevedore,stevedore.dev/app-id=myapp"
	if got != want {
		t.Errorf("Selector = %q, want %q", got, want)
	}
}
