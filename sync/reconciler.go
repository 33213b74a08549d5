package sync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SyncResult is the report for one reconciliation run. It is produced
// exactly once per run and never mutated after construction.
//
// Completed distinguishes "the run processed every campaign" from "the run
// aborted during fetch"; Success additionally requires an empty error list,
// so a completed run with unmatched campaigns reports Success=false.
type SyncResult struct {
	RunID              string   `json:"runId"`
	Success            bool     `json:"success"`
	Completed          bool     `json:"completed"`
	Empty              bool     `json:"empty,omitempty"`
	ProcessedCampaigns int      `json:"processedCampaigns"`
	UpdatedPages       int      `json:"updatedPages"`
	CreatedPages       int      `json:"createdPages,omitempty"`
	Errors             []string `json:"errors"`
	Timestamp          string   `json:"timestamp"`
}

// Reconciler matches campaigns to pages, applies the schedule updates that
// are needed and aggregates a run report. It embeds *SyncContext for shared
// sync configuration.
type Reconciler struct {
	*SyncContext
	Source CampaignSource
	Store  PageStore

	nowFn    func() time.Time
	inFlight atomic.Bool
}

// NewReconciler creates a Reconciler with injected boundaries.
func NewReconciler(syncContext *SyncContext, source CampaignSource, store PageStore) *Reconciler {
	return &Reconciler{
		SyncContext: syncContext,
		Source:      source,
		Store:       store,
		nowFn:       time.Now,
	}
}

// PerformSync executes one reconciliation run: fetch campaigns and pages,
// match by campaign name, write the schedules that changed and report the
// outcome. At most one run executes at a time; a concurrent call fails fast
// with ErrSyncInProgress. Any other failure is reported inside the returned
// SyncResult, never as an error.
func (r *Reconciler) PerformSync(ctx context.Context) (SyncResult, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		return SyncResult{}, ErrSyncInProgress
	}
	defer r.inFlight.Store(false)

	started := r.nowFn()
	result := SyncResult{
		RunID:     uuid.NewString(),
		Errors:    []string{},
		Timestamp: started.UTC().Format(time.RFC3339),
	}

	if timeout := r.Config.Sync.RunTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, timeout, ErrRunTimeout)
		defer cancel()
	}

	r.log().Infof("starting campaign sync run %s", result.RunID)

	// The two fetches are independent of each other, run them concurrently.
	var campaigns []Campaign
	var pages []PageRecord
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		campaigns, err = r.Source.FetchAll(groupCtx, r.Config.Ads.SubAccounts)
		return err
	})
	group.Go(func() error {
		var err error
		pages, err = r.Store.FetchAll(groupCtx)
		return err
	})
	if err := group.Wait(); err != nil {
		if errors.Is(context.Cause(ctx), ErrRunTimeout) {
			err = fmt.Errorf("%w: %v", ErrRunTimeout, err)
		}
		result.Errors = append(result.Errors, err.Error())
		r.log().Errorf("sync run %s failed during fetch: %v", result.RunID, err)
		return result, nil
	}

	if len(campaigns) == 0 {
		// Nothing to reconcile. Reported distinctly from a fetch failure
		// so operators can tell "no campaigns" apart from "ads API down".
		r.log().Warnf("sync run %s fetched no campaigns", result.RunID)
		result.Completed = true
		result.Empty = true
		result.Success = true
		return result, nil
	}

	// Index pages by campaign name. Duplicate names resolve to the last
	// page in scan order (last write wins).
	index := make(map[string]PageRecord, len(pages))
	for _, page := range pages {
		index[page.CampaignName] = page
	}

	for _, campaign := range campaigns {
		newSchedule := FormatAdSchedule(campaign.StartDate, campaign.EndDate)

		page, found := index[campaign.Name]
		if !found {
			if r.Config.Sync.CreateMissingPages {
				if _, err := r.Store.Create(ctx, campaign.Name, newSchedule); err != nil {
					result.Errors = append(result.Errors,
						fmt.Sprintf("create failed for campaign %q: %v", campaign.Name, err))
					continue
				}
				result.CreatedPages++
				continue
			}
			result.Errors = append(result.Errors,
				fmt.Sprintf("no matching page for campaign %q", campaign.Name))
			continue
		}

		if newSchedule == page.AdSchedule {
			// Already current, no write.
			continue
		}
		if err := r.Store.Update(ctx, page.ID, newSchedule); err != nil {
			if errors.Is(context.Cause(ctx), ErrRunTimeout) {
				err = ErrRunTimeout
			}
			result.Errors = append(result.Errors,
				fmt.Sprintf("update failed for campaign %q: %v", campaign.Name, err))
			continue
		}
		result.UpdatedPages++
	}

	result.ProcessedCampaigns = len(campaigns)
	result.Completed = true
	result.Success = len(result.Errors) == 0
	r.log().Infof("sync run %s finished: %d campaigns processed, %d pages updated, %d errors",
		result.RunID, result.ProcessedCampaigns, result.UpdatedPages, len(result.Errors))
	return result, nil
}
