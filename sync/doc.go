// Package sync reconciles ad-campaign schedules from the Google Ads API
// into a Notion database. Campaigns are fetched across all configured
// sub-accounts, matched to database pages by exact campaign name, and each
// page's schedule field is rewritten only when the canonical schedule
// string has changed.
package sync
