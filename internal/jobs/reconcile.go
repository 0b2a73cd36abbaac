package jobs

import (
	"context"

	ledgerService "anoa.com/loyaltyledger/internal/modules/ledger/service"
	"anoa.com/loyaltyledger/pkg/logger"
	"anoa.com/loyaltyledger/pkg/metrics"
	"go.uber.org/zap"
)

type Reconciler interface {
	Reconcile(ctx context.Context) ([]ledgerService.Mismatch, error)
}

// ReconcileJob compares cached balances to ledger sums and reports drift. It
// never rewrites balances.
type ReconcileJob struct {
	reconciler Reconciler
	schedule   string
}

func NewReconcileJob(reconciler Reconciler, schedule string) *ReconcileJob {
	return &ReconcileJob{reconciler: reconciler, schedule: schedule}
}

func (j *ReconcileJob) Name() string     { return "ledger-reconcile" }
func (j *ReconcileJob) Schedule() string { return j.schedule }

func (j *ReconcileJob) Execute(ctx context.Context) error {
	mismatches, err := j.reconciler.Reconcile(ctx)
	if err != nil {
		return err
	}

	metrics.BalanceMismatches.Set(float64(len(mismatches)))
	for _, m := range mismatches {
		logger.L.Warn("balance mismatch",
			zap.String("user_id", m.UserID.String()),
			zap.Int64("balance", m.Balance),
			zap.Int64("ledger", m.Ledger),
		)
	}
	return nil
}
