package cron

import (
	"context"
	"errors"
	"fmt"

	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"go.uber.org/multierr"
)

type inventoryAuditor interface {
	AuditIntegrity(ctx context.Context) ([]product.Anomaly, error)
}

type InventoryAuditJobParams struct {
	Logger  *logger.Logger
	Auditor inventoryAuditor
	Metrics *metrics.StoreMetrics
}

// NewInventoryAuditJob reports negative stock and size-sum drift. It never
// repairs data; an anomaly fails the run so the failure counter alerts.
func NewInventoryAuditJob(params InventoryAuditJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Auditor == nil {
		return nil, fmt.Errorf("inventory auditor required")
	}
	return &inventoryAuditJob{logg: params.Logger, auditor: params.Auditor, metrics: params.Metrics}, nil
}

type inventoryAuditJob struct {
	logg    *logger.Logger
	auditor inventoryAuditor
	metrics *metrics.StoreMetrics
}

func (j *inventoryAuditJob) Name() string { return "inventory-audit" }

func (j *inventoryAuditJob) Run(ctx context.Context) error {
	anomalies, err := j.auditor.AuditIntegrity(ctx)
	if err != nil {
		return err
	}
	j.metrics.SetInventoryAnomalies(len(anomalies))

	var errs error
	for _, a := range anomalies {
		finding := describeAnomaly(a)
		j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
			"product_id": a.ProductID,
			"anomaly":    a.Kind,
			"stock":      a.Stock,
		}), finding)
		errs = multierr.Append(errs, errors.New(finding))
	}
	if errs != nil {
		return fmt.Errorf("%d inventory anomalies: %w", len(anomalies), errs)
	}
	j.logg.Info(ctx, "inventory consistent")
	return nil
}

func describeAnomaly(a product.Anomaly) string {
	if a.SizeSum != nil {
		return fmt.Sprintf("product %s: %s (stock %d, size sum %d)", a.ProductID, a.Kind, a.Stock, *a.SizeSum)
	}
	return fmt.Sprintf("product %s: %s (stock %d)", a.ProductID, a.Kind, a.Stock)
}
