package deployer

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/stevedore-app/stevedore/pkg/properties"
)

// Preflight verifies that cluster objects the request references by name
// exist before anything is created: the service account its pods would run
// under and, for an indexed app, the storage class backing the claim
// template. A request that references neither does not touch the cluster.
//
// Deploy does not run this itself. Creating against a missing reference
// still fails, just later and through pod events instead of an immediate
// error, so callers wanting the early report run Preflight first.
func (d *Deployer) Preflight(ctx context.Context, req Request) error {
	spec, err := properties.Resolve(d.defaults, req.Properties)
	if err != nil {
		return err
	}

	if name := spec.ServiceAccountName; name != "" {
		if _, err := d.client.CoreV1().ServiceAccounts(d.namespace).Get(ctx, name, metav1.GetOptions{}); err != nil {
			if apierrors.IsNotFound(err) {
				return fmt.Errorf("service account %q not found in namespace %s", name, d.namespace)
			}
			return clusterError("get", "serviceaccount", name, err)
		}
	}

	if spec.Indexed && spec.ClaimStorageClassName != nil {
		name := *spec.ClaimStorageClassName
		if _, err := d.client.StorageV1().StorageClasses().Get(ctx, name, metav1.GetOptions{}); err != nil {
			if apierrors.IsNotFound(err) {
				return fmt.Errorf("storage class %q not found", name)
			}
			return clusterError("get", "storageclass", name, err)
		}
	}

	return nil
}
