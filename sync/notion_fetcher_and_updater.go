package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// notionVersion pins the Notion API revision all requests are made against.
const notionVersion = "2022-06-28"

// PageRecord is an immutable snapshot of one database page, valid for a
// single reconciliation run. The authoritative copy lives in Notion and is
// only mutated through Update.
type PageRecord struct {
	ID           string
	CampaignName string
	AdSchedule   string
	LastEdited   time.Time
}

// PageStore fetches page records and applies single-field schedule writes.
type PageStore interface {
	FetchAll(ctx context.Context) ([]PageRecord, error)
	Update(ctx context.Context, pageID string, schedule string) error
	Create(ctx context.Context, campaignName string, schedule string) (string, error)
}

// NotionError holds the error payload returned by the Notion API.
type NotionError map[string]interface{}

// NotionFetcherAndUpdater handles all Notion API operations.
// It embeds *SyncContext for shared sync configuration.
type NotionFetcherAndUpdater struct {
	*SyncContext
}

// NotionAPIBuilder returns a new requests.Builder configured for the Notion API.
func (n *NotionFetcherAndUpdater) NotionAPIBuilder() *requests.Builder {
	apiBuilder := requests.
		URL(n.Config.Notion.Endpoint).
		Client(&http.Client{Timeout: HTTPRequestTimeout}).
		Bearer(n.Config.Notion.APIKey).
		Header("Notion-Version", notionVersion)
	if n.RecordRequests {
		apiBuilder = apiBuilder.Transport(requests.Record(nil, "testdata/.requests/notion"))
	}
	return apiBuilder
}

// FetchAll fetches every page of the configured database, following the
// query cursor until has_more is false.
func (n *NotionFetcherAndUpdater) FetchAll(ctx context.Context) ([]PageRecord, error) {
	var pages []PageRecord
	cursor := ""
	for {
		notionError := NotionError{}
		body := "{}"
		if cursor != "" {
			var err error
			body, err = sjson.Set(body, "start_cursor", cursor)
			if err != nil {
				return nil, &StoreUnavailableError{Err: err}
			}
		}

		var json string
		err := n.NotionAPIBuilder().
			Pathf("/v1/databases/%s/query", n.Config.Notion.DatabaseID).
			BodyBytes([]byte(body)).
			ContentType("application/json").
			ToString(&json).
			ErrorJSON(&notionError).
			Fetch(ctx)
		if err != nil {
			n.log().Errorf("Notion error: %+v", notionError)
			return nil, &StoreUnavailableError{Err: err}
		}
		if !gjson.Valid(json) {
			n.log().Errorf("invalid Notion response:\n%s", json)
			return nil, &StoreUnavailableError{Err: errors.New("invalid json response")}
		}

		parsed := gjson.Parse(json)
		for _, page := range parsed.Get("results").Array() {
			pages = append(pages, n.pageRecordFromResult(page))
		}
		if !parsed.Get("has_more").Bool() {
			break
		}
		cursor = parsed.Get("next_cursor").String()
	}

	n.log().Infof("fetched %d pages from Notion", len(pages))
	return pages, nil
}

func (n *NotionFetcherAndUpdater) pageRecordFromResult(page gjson.Result) PageRecord {
	properties := page.Get("properties")
	record := PageRecord{
		ID:           page.Get("id").String(),
		CampaignName: extractPropertyText(properties.Get(propertyKey(n.Config.Notion.NameProperty))),
		AdSchedule:   extractPropertyText(properties.Get(propertyKey(n.Config.Notion.ScheduleProperty))),
	}
	if t, err := time.Parse(time.RFC3339, page.Get("last_edited_time").String()); err == nil {
		record.LastEdited = t
	}
	return record
}

// extractPropertyText is total over the property shapes Notion returns:
// title and rich_text carry an array of text fragments, plain_text is a
// bare string, and any other shape yields "" rather than failing the fetch.
func extractPropertyText(property gjson.Result) string {
	switch property.Get("type").String() {
	case "title":
		return property.Get("title.0.text.content").String()
	case "rich_text":
		return property.Get("rich_text.0.text.content").String()
	case "plain_text":
		return property.Get("plain_text").String()
	default:
		return ""
	}
}

// Update writes a new ad-schedule string to a single page.
func (n *NotionFetcherAndUpdater) Update(ctx context.Context, pageID string, schedule string) error {
	body, err := sjson.Set("{}",
		fmt.Sprintf("properties.%s.rich_text.0.text.content", propertyKey(n.Config.Notion.ScheduleProperty)),
		schedule)
	if err != nil {
		return &UpdateFailedError{PageID: pageID, Err: err}
	}

	notionError := NotionError{}
	err = n.NotionAPIBuilder().
		Patch().
		Pathf("/v1/pages/%s", pageID).
		BodyBytes([]byte(body)).
		ContentType("application/json").
		ErrorJSON(&notionError).
		Fetch(ctx)
	if err != nil {
		n.log().Errorf("Notion error: %+v", notionError)
		return &UpdateFailedError{PageID: pageID, Err: err}
	}

	n.log().Infof("updated ad schedule for page %s: %s", pageID, schedule)
	return nil
}

// Create adds a new page to the database with the campaign name as its
// title and the given schedule. Returns the new page id.
func (n *NotionFetcherAndUpdater) Create(ctx context.Context, campaignName string, schedule string) (string, error) {
	body, err := sjson.Set("{}", "parent.database_id", n.Config.Notion.DatabaseID)
	if err == nil {
		body, err = sjson.Set(body,
			fmt.Sprintf("properties.%s.title.0.text.content", propertyKey(n.Config.Notion.NameProperty)),
			campaignName)
	}
	if err == nil {
		body, err = sjson.Set(body,
			fmt.Sprintf("properties.%s.rich_text.0.text.content", propertyKey(n.Config.Notion.ScheduleProperty)),
			schedule)
	}
	if err != nil {
		return "", err
	}

	notionError := NotionError{}
	var json string
	err = n.NotionAPIBuilder().
		Path("/v1/pages").
		BodyBytes([]byte(body)).
		ContentType("application/json").
		ToString(&json).
		ErrorJSON(&notionError).
		Fetch(ctx)
	if err != nil {
		n.log().Errorf("Notion error: %+v", notionError)
		return "", err
	}

	pageID := gjson.Parse(json).Get("id").String()
	n.log().Infof("created page %s for campaign %q", pageID, campaignName)
	return pageID, nil
}

// TestConnection probes the Notion API by retrieving the configured database.
func (n *NotionFetcherAndUpdater) TestConnection(ctx context.Context) error {
	notionError := NotionError{}
	err := n.NotionAPIBuilder().
		Pathf("/v1/databases/%s", n.Config.Notion.DatabaseID).
		ErrorJSON(&notionError).
		Fetch(ctx)
	if err != nil {
		n.log().Errorf("Notion connection test failed: %+v", notionError)
	}
	return err
}

// propertyKey escapes a property name for use as a single gjson/sjson path
// segment, so a configured name containing "." is not read as a separator.
func propertyKey(key string) string {
	key = strings.ReplaceAll(key, ".", `\.`)
	return strings.ReplaceAll(key, "*", `\*`)
}
