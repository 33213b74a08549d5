package sync

import (
	"context"
	gosync "sync"
)

// HealthStatus classifies overall system health.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// ServiceHealth reports each boundary's probe outcome.
type ServiceHealth struct {
	CampaignSource bool `json:"campaignSource"`
	PageStore      bool `json:"pageStore"`
}

// SystemHealth is the health-check response body.
type SystemHealth struct {
	Status   HealthStatus  `json:"status"`
	Services ServiceHealth `json:"services"`
}

// HealthAggregator probes both external boundaries independently and
// classifies system health. Probes share no state with reconciliation runs.
type HealthAggregator struct {
	*SyncContext
	SourceProbe ConnectionTester
	StoreProbe  ConnectionTester
}

// Check runs both connectivity probes concurrently. A probe failure yields
// false for that boundary without cancelling the other probe, and is never
// surfaced as an error to callers.
func (h *HealthAggregator) Check(ctx context.Context) SystemHealth {
	var sourceOK, storeOK bool
	var wg gosync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sourceOK = h.probe(ctx, "campaign source", h.SourceProbe)
	}()
	go func() {
		defer wg.Done()
		storeOK = h.probe(ctx, "page store", h.StoreProbe)
	}()
	wg.Wait()

	return SystemHealth{
		Status: classifyHealth(sourceOK, storeOK),
		Services: ServiceHealth{
			CampaignSource: sourceOK,
			PageStore:      storeOK,
		},
	}
}

func (h *HealthAggregator) probe(ctx context.Context, name string, tester ConnectionTester) bool {
	if err := tester.TestConnection(ctx); err != nil {
		h.log().Warnf("%s connectivity probe failed: %v", name, err)
		return false
	}
	return true
}

func classifyHealth(sourceOK, storeOK bool) HealthStatus {
	switch {
	case sourceOK && storeOK:
		return HealthHealthy
	case sourceOK || storeOK:
		return HealthDegraded
	default:
		return HealthUnhealthy
	}
}
