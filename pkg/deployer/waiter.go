package deployer

import (
	"context"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// addressPollInterval is the fixed delay between load-balancer polls.
const addressPollInterval = 10 * time.Second

// WaitForAddress polls the app's LoadBalancer service until the cluster
// publishes an external address, then returns it. The poll runs at a
// fixed ten second interval with an attempt budget of six per configured
// minute; minutes <= 0 takes the deployer default. Exhausting the budget
// is a normal outcome and returns ok == false with a nil error. The only
// error returned is the context's, when the caller cancels the wait.
func (d *Deployer) WaitForAddress(ctx context.Context, deploymentID string, minutes int) (string, bool, error) {
	if minutes <= 0 {
		minutes = d.base.MinutesToWaitForLoadBalancer
	}
	attempts := minutes * 6

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for i := 0; i < attempts; i++ {
		if addr, ok := d.lookupAddress(ctx, deploymentID); ok {
			return addr, true, nil
		}
		d.logger.Debug("waiting for load balancer address",
			"deployment_id", deploymentID,
			"attempt", i+1,
			"attempts", attempts)
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-ticker.C:
		}
	}
	return "", false, nil
}

func (d *Deployer) lookupAddress(ctx context.Context, deploymentID string) (string, bool) {
	svc, err := d.client.CoreV1().Services(d.namespace).Get(ctx, deploymentID, metav1.GetOptions{})
	if err != nil || svc.Spec.Type != corev1.ServiceTypeLoadBalancer {
		return "", false
	}
	if addr := loadBalancerAddress(&svc.Status.LoadBalancer); addr != "" {
		return addr, true
	}
	return "", false
}
