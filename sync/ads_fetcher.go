package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	gosync "sync"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/tidwall/gjson"
)

// campaignQuery selects the schedule-relevant campaign fields. Removed
// campaigns are excluded at the source so they never reach the Reconciler.
const campaignQuery = `SELECT campaign.id, campaign.name, campaign.status, ` +
	`campaign.start_date, campaign.end_date FROM campaign ` +
	`WHERE campaign.status != 'REMOVED' ORDER BY campaign.name`

// connectionProbeQuery is a minimal one-row query used by connectivity probes.
const connectionProbeQuery = `SELECT customer.id FROM customer LIMIT 1`

// tokenExpirySlack is subtracted from the reported access-token lifetime so
// a token is never used right at its expiry boundary.
const tokenExpirySlack = 60 * time.Second

// CampaignStatus is the lifecycle state of a campaign as reported by the
// ads platform.
type CampaignStatus int

const (
	StatusUnknown CampaignStatus = iota
	StatusEnabled
	StatusPaused
	StatusRemoved
)

func (s CampaignStatus) String() string {
	switch s {
	case StatusEnabled:
		return "ENABLED"
	case StatusPaused:
		return "PAUSED"
	case StatusRemoved:
		return "REMOVED"
	default:
		return "UNKNOWN"
	}
}

func campaignStatusFromAPI(status string) CampaignStatus {
	switch status {
	case "ENABLED":
		return StatusEnabled
	case "PAUSED":
		return StatusPaused
	case "REMOVED":
		return StatusRemoved
	default:
		return StatusUnknown
	}
}

// Campaign is an immutable snapshot of one ads campaign, valid for a single
// reconciliation run. Name is the sole join key against page records.
type Campaign struct {
	ID           string
	Name         string
	Status       CampaignStatus
	StartDate    *time.Time
	EndDate      *time.Time
	SubAccountID string
}

// CampaignSource fetches the active campaigns for a set of sub-accounts.
// Implementations must be fail-fast and all-or-nothing: a failure for any
// single sub-account aborts the entire fetch with a *SourceUnavailableError
// and no partial list is returned.
type CampaignSource interface {
	FetchAll(ctx context.Context, subAccountIDs []string) ([]Campaign, error)
}

// ConnectionTester is a connectivity probe against one external boundary.
type ConnectionTester interface {
	TestConnection(ctx context.Context) error
}

// GoogleAdsFetcher fetches campaign data from the Google Ads API.
// It embeds *SyncContext for shared sync configuration.
type GoogleAdsFetcher struct {
	*SyncContext

	tokenMu     gosync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// GoogleAdsError holds the error payload returned by the Google Ads API.
type GoogleAdsError map[string]interface{}

type adsSearchRequest struct {
	Query string `json:"query"`
}

// AdsAPIBuilder returns a new requests.Builder configured for the Google Ads API.
func (f *GoogleAdsFetcher) AdsAPIBuilder() *requests.Builder {
	apiBuilder := requests.
		URL(f.Config.Ads.Endpoint).
		Client(&http.Client{Timeout: HTTPRequestTimeout})
	if f.RecordRequests {
		apiBuilder = apiBuilder.Transport(requests.Record(nil, "testdata/.requests/ads"))
	}
	return apiBuilder
}

// token returns a valid OAuth access token, exchanging the configured
// refresh token when the cached one has expired. Safe for concurrent use.
func (f *GoogleAdsFetcher) token(ctx context.Context) (string, error) {
	f.tokenMu.Lock()
	defer f.tokenMu.Unlock()

	if f.accessToken != "" && time.Now().Before(f.tokenExpiry) {
		return f.accessToken, nil
	}

	tokenError := GoogleAdsError{}
	var response struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	err := requests.
		URL(f.Config.Ads.TokenEndpoint).
		Client(&http.Client{Timeout: HTTPRequestTimeout}).
		Param("grant_type", "refresh_token").
		Param("client_id", f.Config.Ads.ClientID).
		Param("client_secret", f.Config.Ads.ClientSecret).
		Param("refresh_token", f.Config.Ads.RefreshToken).
		Post().
		ToJSON(&response).
		ErrorJSON(&tokenError).
		Fetch(ctx)
	if err != nil {
		f.log().Errorf("Google Ads token error: %+v", tokenError)
		return "", fmt.Errorf("failed to refresh access token: %w", err)
	}

	f.accessToken = response.AccessToken
	f.tokenExpiry = time.Now().Add(time.Duration(response.ExpiresIn)*time.Second - tokenExpirySlack)
	return f.accessToken, nil
}

// FetchAll fetches the active campaigns for every configured sub-account.
// The result is ordered by campaign name; ordering is a convenience for
// readers, the Reconciler indexes by name regardless.
func (f *GoogleAdsFetcher) FetchAll(ctx context.Context, subAccountIDs []string) ([]Campaign, error) {
	var all []Campaign
	for _, subAccountID := range subAccountIDs {
		f.log().Infof("fetching campaigns for sub-account %s", subAccountID)
		campaigns, err := f.fetchCampaignsForCustomer(ctx, subAccountID)
		if err != nil {
			return nil, &SourceUnavailableError{SubAccountID: subAccountID, Err: err}
		}
		all = append(all, campaigns...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	f.log().Infof("fetched %d campaigns across %d sub-accounts", len(all), len(subAccountIDs))
	return all, nil
}

func (f *GoogleAdsFetcher) fetchCampaignsForCustomer(ctx context.Context, customerID string) ([]Campaign, error) {
	token, err := f.token(ctx)
	if err != nil {
		return nil, err
	}

	adsError := GoogleAdsError{}
	var json string
	err = f.AdsAPIBuilder().
		Pathf("/v17/customers/%s/googleAds:search", customerID).
		Header("developer-token", f.Config.Ads.DeveloperToken).
		Header("login-customer-id", f.Config.Ads.MCCCustomerID).
		Bearer(token).
		BodyJSON(&adsSearchRequest{Query: campaignQuery}).
		ToString(&json).
		ErrorJSON(&adsError).
		Fetch(ctx)
	if err != nil {
		f.log().Errorf("Google Ads error: %+v", adsError)
		return nil, err
	}
	if !gjson.Valid(json) {
		f.log().Errorf("invalid Google Ads response:\n%s", json)
		return nil, errors.New("invalid json response")
	}

	var result []Campaign
	for _, row := range gjson.Parse(json).Get("results").Array() {
		campaign := Campaign{
			ID:           row.Get("campaign.id").String(),
			Name:         row.Get("campaign.name").String(),
			Status:       campaignStatusFromAPI(row.Get("campaign.status").String()),
			SubAccountID: customerID,
		}
		// The query already excludes removed campaigns; this guards
		// against servers that ignore the WHERE clause.
		if campaign.Status == StatusRemoved {
			continue
		}
		campaign.StartDate = parseCampaignDate(row.Get("campaign.startDate").String())
		campaign.EndDate = parseCampaignDate(row.Get("campaign.endDate").String())
		result = append(result, campaign)
	}
	return result, nil
}

// parseCampaignDate parses the calendar dates the ads API returns. Missing
// or malformed values yield nil, which FormatAdSchedule renders as unbounded.
func parseCampaignDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(ScheduleDateFormat, value)
	if err != nil {
		return nil
	}
	return &t
}

// TestConnection probes the ads API with a one-row query against the first
// configured sub-account.
func (f *GoogleAdsFetcher) TestConnection(ctx context.Context) error {
	if len(f.Config.Ads.SubAccounts) == 0 {
		return errors.New("no sub-accounts configured")
	}

	token, err := f.token(ctx)
	if err != nil {
		return err
	}

	adsError := GoogleAdsError{}
	err = f.AdsAPIBuilder().
		Pathf("/v17/customers/%s/googleAds:search", f.Config.Ads.SubAccounts[0]).
		Header("developer-token", f.Config.Ads.DeveloperToken).
		Header("login-customer-id", f.Config.Ads.MCCCustomerID).
		Bearer(token).
		BodyJSON(&adsSearchRequest{Query: connectionProbeQuery}).
		ErrorJSON(&adsError).
		Fetch(ctx)
	if err != nil {
		f.log().Errorf("Google Ads connection test failed: %+v", adsError)
	}
	return err
}
