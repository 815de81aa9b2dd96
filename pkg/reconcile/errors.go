package reconcile

import "errors"

var (
	// ErrReconcileInProgress is returned for a tenant another pass is already reconciling.
	ErrReconcileInProgress = errors.New("reconciliation already in progress for tenant")

	ErrListTenants = errors.New("failed to list tenants")
)
