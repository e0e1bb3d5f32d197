package deployer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/stevedore-app/stevedore/pkg/properties"
)

func newTestDeployer(t *testing.T, defaults properties.Properties, objects ...runtime.Object) (*Deployer, *fake.Clientset) {
	t.Helper()
	client := fake.NewSimpleClientset(objects...)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d, err := New(client, defaults, logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	d.pollInterval = time.Millisecond
	return d, client
}

func TestDeploySimple(t *testing.T) {
	d, client := newTestDeployer(t, properties.Properties{})
	ctx := context.Background()

	id, err := d.Deploy(ctx, Request{
		Name:   "myapp",
		Image:  "registry.example.com/myapp:1.0",
		Config: map[string]string{"server.port": "8080"},
	})
	if err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}
	if id != "myapp" {
		t.Errorf("Deploy() id = %q, want %q", id, "myapp")
	}

	pod, err := client.CoreV1().Pods("default").Get(ctx, "myapp", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("expected a bare pod: %v", err)
	}
	wantLabels := map[string]string{
		"stevedore.dev/app-id":         "myapp",
		"app.kubernetes.io/managed-by": "stevedore",
	}
	if diff := cmp.Diff(wantLabels, pod.Labels); diff != "" {
		t.Errorf("pod labels mismatch (-want +got):\n%s", diff)
	}
	if got := pod.Spec.Containers[0].Image; got != "registry.example.com/myapp:1.0" {
		t.Errorf("container image = %q", got)
	}

	deployments, _ := client.AppsV1().Deployments("default").List(ctx, metav1.ListOptions{})
	if len(deployments.Items) != 0 {
		t.Errorf("expected no deployments, got %d", len(deployments.Items))
	}
	services, _ := client.CoreV1().Services("default").List(ctx, metav1.ListOptions{})
	if len(services.Items) != 0 {
		t.Errorf("expected no services, got %d", len(services.Items))
	}
}

func TestDeployScaled(t *testing.T) {
	d, client := newTestDeployer(t, properties.Properties{})
	ctx := context.Background()

	id, err := d.Deploy(ctx, Request{
		Name:  "web",
		Image: "registry.example.com/web:2.1",
		Properties: map[string]string{
			"stevedore.count":                         "3",
			"stevedore.kubernetes.createLoadBalancer": "true",
			"stevedore.kubernetes.imagePullSecret":    "regcred",
		},
	})
	if err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}

	dep, err := client.AppsV1().Deployments("default").Get(ctx, id, metav1.GetOptions{})
	if err != nil {
		t.Fatalf("expected a deployment: %v", err)
	}
	if dep.Spec.Replicas == nil || *dep.Spec.Replicas != 3 {
		t.Errorf("deployment replicas = %v, want 3", dep.Spec.Replicas)
	}
	if got := dep.Spec.Template.Spec.ImagePullSecrets[0].Name; got != "regcred" {
		t.Errorf("image pull secret = %q", got)
	}

	svc, err := client.CoreV1().Services("default").Get(ctx, id, metav1.GetOptions{})
	if err != nil {
		t.Fatalf("expected a service: %v", err)
	}
	if svc.Spec.Type != "LoadBalancer" {
		t.Errorf("service type = %q, want LoadBalancer", svc.Spec.Type)
	}

	pods, _ := client.CoreV1().Pods("default").List(ctx, metav1.ListOptions{})
	if len(pods.Items) != 0 {
		t.Errorf("expected no bare pods for a scaled app, got %d", len(pods.Items))
	}
}

func TestDeployIndexed(t *testing.T) {
	d, client := newTestDeployer(t, properties.Properties{})
	ctx := context.Background()

	id, err := d.Deploy(ctx, Request{
		Name:  "worker",
		Image: "registry.example.com/worker:1.0",
		Properties: map[string]string{
			"stevedore.indexed": "true",
			"stevedore.count":   "2",
		},
	})
	if err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}

	sts, err := client.AppsV1().StatefulSets("default").Get(ctx, id, metav1.GetOptions{})
	if err != nil {
		t.Fatalf("expected a statefulset: %v", err)
	}
	if sts.Spec.Replicas == nil || *sts.Spec.Replicas != 2 {
		t.Errorf("statefulset replicas = %v, want 2", sts.Spec.Replicas)
	}

	svc, err := client.CoreV1().Services("default").Get(ctx, sts.Spec.ServiceName, metav1.GetOptions{})
	if err != nil {
		t.Fatalf("expected the governing service %q: %v", sts.Spec.ServiceName, err)
	}
	if svc.Spec.ClusterIP != "None" {
		t.Errorf("governing service clusterIP = %q, want None", svc.Spec.ClusterIP)
	}
}

func TestDeployGrouped(t *testing.T) {
	d, client := newTestDeployer(t, properties.Properties{})
	ctx := context.Background()

	id, err := d.Deploy(ctx, Request{
		Name:       "ingest",
		Image:      "registry.example.com/ingest:0.4",
		Properties: map[string]string{"stevedore.group": "pipeline"},
	})
	if err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}
	if id != "pipeline-ingest" {
		t.Errorf("Deploy() id = %q, want %q", id, "pipeline-ingest")
	}

	pod, err := client.CoreV1().Pods("default").Get(ctx, id, metav1.GetOptions{})
	if err != nil {
		t.Fatalf("Get pod: %v", err)
	}
	if got := pod.Labels["stevedore.dev/group"]; got != "pipeline" {
		t.Errorf("group label = %q, want %q", got, "pipeline")
	}
}

func TestDeployValidation(t *testing.T) {
	d, _ := newTestDeployer(t, properties.Properties{})
	ctx := context.Background()

	if _, err := d.Deploy(ctx, Request{Image: "img"}); !errors.Is(err, ErrMissingAppName) {
		t.Errorf("Deploy() without name error = %v, want ErrMissingAppName", err)
	}
	if _, err := d.Deploy(ctx, Request{Name: "myapp"}); !errors.Is(err, ErrMissingImage) {
		t.Errorf("Deploy() without image error = %v, want ErrMissingImage", err)
	}
}

func TestDeployInvalidProperty(t *testing.T) {
	d, client := newTestDeployer(t, properties.Properties{})
	ctx := context.Background()

	_, err := d.Deploy(ctx, Request{
		Name:       "myapp",
		Image:      "img",
		Properties: map[string]string{"stevedore.kubernetes.imagePullSecrit": "oops"},
	})
	var cfgErr *properties.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Deploy() error = %v, want ConfigurationError", err)
	}

	pods, _ := client.CoreV1().Pods("default").List(ctx, metav1.ListOptions{})
	if len(pods.Items) != 0 {
		t.Errorf("expected nothing created after a configuration error, got %d pods", len(pods.Items))
	}
}

func TestDeployDuplicate(t *testing.T) {
	d, _ := newTestDeployer(t, properties.Properties{})
	ctx := context.Background()
	req := Request{Name: "myapp", Image: "img"}

	if _, err := d.Deploy(ctx, req); err != nil {
		t.Fatalf("first Deploy() error = %v", err)
	}

	_, err := d.Deploy(ctx, req)
	var clusterErr *ClusterError
	if !errors.As(err, &clusterErr) {
		t.Fatalf("second Deploy() error = %v, want ClusterError", err)
	}
	if !apierrors.IsAlreadyExists(clusterErr.Err) {
		t.Errorf("wrapped error = %v, want AlreadyExists", clusterErr.Err)
	}
	if clusterErr.Op != "create" || clusterErr.Resource != "pod" {
		t.Errorf("ClusterError op=%q resource=%q, want create pod", clusterErr.Op, clusterErr.Resource)
	}
}

func TestDeployNamespace(t *testing.T) {
	d, client := newTestDeployer(t, properties.Properties{Namespace: "apps"})
	ctx := context.Background()

	if _, err := d.Deploy(ctx, Request{Name: "myapp", Image: "img"}); err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}
	if _, err := client.CoreV1().Pods("apps").Get(ctx, "myapp", metav1.GetOptions{}); err != nil {
		t.Errorf("pod not created in configured namespace: %v", err)
	}
}

func TestUndeploy(t *testing.T) {
	d, client := newTestDeployer(t, properties.Properties{})
	ctx := context.Background()

	id, err := d.Deploy(ctx, Request{
		Name:  "worker",
		Image: "registry.example.com/worker:1.0",
		Properties: map[string]string{
			"stevedore.indexed": "true",
			"stevedore.count":   "2",
		},
	})
	if err != nil {
		t.Fatalf("Deploy() error = %v", err)
	}

	// Claims materialized from the claim template carry the app labels but
	// are not owned by the workload, so undeploy must remove them itself.
	sts, err := client.AppsV1().StatefulSets("default").Get(ctx, id, metav1.GetOptions{})
	if err != nil {
		t.Fatalf("Get statefulset: %v", err)
	}
	claim := sts.Spec.VolumeClaimTemplates[0].DeepCopy()
	claim.Name = claim.Name + "-" + id + "-0"
	claim.Namespace = "default"
	if _, err := client.CoreV1().PersistentVolumeClaims("default").Create(ctx, claim, metav1.CreateOptions{}); err != nil {
		t.Fatalf("Create claim: %v", err)
	}

	if err := d.Undeploy(ctx, id); err != nil {
		t.Fatalf("Undeploy() error = %v", err)
	}

	if sets, _ := client.AppsV1().StatefulSets("default").List(ctx, metav1.ListOptions{}); len(sets.Items) != 0 {
		t.Errorf("statefulsets left behind: %d", len(sets.Items))
	}
	if services, _ := client.CoreV1().Services("default").List(ctx, metav1.ListOptions{}); len(services.Items) != 0 {
		t.Errorf("services left behind: %d", len(services.Items))
	}
	if claims, _ := client.CoreV1().PersistentVolumeClaims("default").List(ctx, metav1.ListOptions{}); len(claims.Items) != 0 {
		t.Errorf("claims left behind: %d", len(claims.Items))
	}
}

func TestUndeployLeavesOtherApps(t *testing.T) {
	d, client := newTestDeployer(t, properties.Properties{})
	ctx := context.Background()

	if _, err := d.Deploy(ctx, Request{Name: "keep", Image: "img"}); err != nil {
		t.Fatalf("Deploy(keep) error = %v", err)
	}
	id, err := d.Deploy(ctx, Request{Name: "drop", Image: "img"})
	if err != nil {
		t.Fatalf("Deploy(drop) error = %v", err)
	}

	if err := d.Undeploy(ctx, id); err != nil {
		t.Fatalf("Undeploy() error = %v", err)
	}

	if _, err := client.CoreV1().Pods("default").Get(ctx, "keep", metav1.GetOptions{}); err != nil {
		t.Errorf("unrelated app removed: %v", err)
	}
	if _, err := client.CoreV1().Pods("default").Get(ctx, "drop", metav1.GetOptions{}); !apierrors.IsNotFound(err) {
		t.Errorf("undeployed pod still present, err = %v", err)
	}
}

func TestUndeployNotDeployed(t *testing.T) {
	d, _ := newTestDeployer(t, properties.Properties{})

	err := d.Undeploy(context.Background(), "ghost")
	if !errors.Is(err, ErrNotDeployed) {
		t.Errorf("Undeploy() error = %v, want ErrNotDeployed", err)
	}
}
