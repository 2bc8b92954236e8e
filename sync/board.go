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
)

// BoardItem is one existing item on the destination board.
type BoardItem struct {
	ID   string
	Name string
}

// BoardItemCreate is one item in a batch create.
type BoardItemCreate struct {
	Name         string
	ColumnValues map[string]interface{}
}

// BoardAPI is the board surface consumed by the upsert engine and the
// coordinator. Lookups that find nothing return nil without error; errors
// always mean the call itself failed.
type BoardAPI interface {
	GroupID(name string, ctx context.Context) (string, error)
	LatestSyncInstant(ctx context.Context) (time.Time, bool)
	FindItemByKey(key string, ctx context.Context) (*BoardItem, error)
	CreateItem(name string, values map[string]interface{}, groupID string, ctx context.Context) (string, error)
	UpdateItem(itemID string, values map[string]interface{}, ctx context.Context) (string, error)
	CreateItems(items []BoardItemCreate, groupID string, ctx context.Context) ([]string, error)
}

const groupsQuery = `query($boardId: ID!) {
  boards(ids: [$boardId]) {
    groups { id title }
  }
}`

const watermarkQuery = `query($boardId: ID!, $columnIdString: String!, $columnIdID: ID!) {
  boards(ids: [$boardId]) {
    items_page(
      limit: 1,
      query_params: {
        order_by: [{column_id: $columnIdString, direction: desc}],
        rules: [{column_id: $columnIdID, compare_value: [""], operator: is_not_empty}]
      }
    ) {
      items {
        column_values(ids: [$columnIdString]) { value text }
      }
    }
  }
}`

const itemByKeyQuery = `query($boardId: ID!, $columnId: String!, $columnValue: String!) {
  items_page_by_column_values(
    board_id: $boardId,
    column_id: $columnId,
    column_value: $columnValue,
    limit: 1
  ) {
    items { id name }
  }
}`

const createItemMutation = `mutation($boardId: ID!, $groupId: String!, $itemName: String!, $columnValues: JSON!) {
  create_item(board_id: $boardId, group_id: $groupId, item_name: $itemName, column_values: $columnValues) { id }
}`

const updateItemMutation = `mutation($itemId: ID!, $boardId: ID!, $columnValues: JSON!) {
  change_multiple_column_values(item_id: $itemId, board_id: $boardId, column_values: $columnValues) { id }
}`

const createItemsMutation = `mutation($boardId: ID!, $groupId: String!, $items: [ItemCreateInput!]!) {
  create_multiple_items(board_id: $boardId, group_id: $groupId, items: $items) { id }
}`

// BoardFetcherAndUpdater handles all board API operations.
// It embeds *SyncContext for shared sync configuration.
type BoardFetcherAndUpdater struct {
	*SyncContext
}

func (b BoardFetcherAndUpdater) boardAPIBuilder() *requests.Builder {
	result := requests.
		URL(b.Config.API.Endpoints.Board).
		Client(&http.Client{Timeout: HTTPRequestTimeout}).
		Header("Authorization", b.Config.API.Keys.Board).
		ContentType("application/json")
	if b.Transport != nil {
		result = result.Transport(b.Transport)
	}
	return result
}

// request is the single choke point for board calls. The API reports
// failures both as transport errors and as an inline errors array on a 200
// response; both surface here as a plain error so callers never branch on
// transport quirks.
func (b BoardFetcherAndUpdater) request(query string, variables map[string]interface{}, ctx context.Context) (gjson.Result, error) {
	payload := struct {
		Query     string                 `json:"query"`
		Variables map[string]interface{} `json:"variables,omitempty"`
	}{Query: query, Variables: variables}

	var body string
	err := b.boardAPIBuilder().
		BodyJSON(&payload).
		ToString(&body).
		Fetch(ctx)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.Valid(body) {
		b.Logger.Error().Str("body", body).Msg("invalid board response")
		return gjson.Result{}, errors.New("invalid json response")
	}

	parsed := gjson.Parse(body)
	if apiErrors := parsed.Get("errors"); apiErrors.Exists() && len(apiErrors.Array()) > 0 {
		return gjson.Result{}, fmt.Errorf("board api error: %s", apiErrors.Raw)
	}
	data := parsed.Get("data")
	if !data.Exists() {
		// rate-limited responses come back without data or errors
		return gjson.Result{}, errors.New("board response contains no data")
	}
	return data, nil
}

// GroupID resolves the configured group name to its board id. The match is
// case-insensitive on trimmed titles.
func (b BoardFetcherAndUpdater) GroupID(name string, ctx context.Context) (string, error) {
	data, err := b.request(groupsQuery, map[string]interface{}{
		"boardId": b.Config.Board.ID,
	}, ctx)
	if err != nil {
		return "", &QueryError{Op: "group lookup", Err: err}
	}

	want := strings.ToLower(strings.TrimSpace(name))
	var titles []string
	for _, group := range data.Get("boards.0.groups").Array() {
		title := group.Get("title").String()
		if strings.ToLower(strings.TrimSpace(title)) == want {
			return group.Get("id").String(), nil
		}
		titles = append(titles, title)
	}

	b.Logger.Error().Str("group", name).Strs("available", titles).Msg("board group not found")
	return "", &QueryError{Op: "group lookup", Err: fmt.Errorf("group %q not found", name)}
}

// LatestSyncInstant reads the most recent value of the watermark column.
// An empty board, a missing watermark column or any query failure all report
// false: the caller must degrade to a full sync, never abort.
func (b BoardFetcherAndUpdater) LatestSyncInstant(ctx context.Context) (time.Time, bool) {
	column := b.Config.ColumnMappings.Watermark
	if column == "" {
		b.Logger.Warn().Msg("no watermark column configured, forcing full sync")
		return time.Time{}, false
	}

	data, err := b.request(watermarkQuery, map[string]interface{}{
		"boardId":        b.Config.Board.ID,
		"columnIdString": column,
		"columnIdID":     column,
	}, ctx)
	if err != nil {
		b.Logger.Warn().Err(err).Msg("watermark query failed, forcing full sync")
		return time.Time{}, false
	}

	items := data.Get("boards.0.items_page.items").Array()
	if len(items) == 0 {
		return time.Time{}, false
	}
	value := items[0].Get("column_values.0")
	if !value.Get("value").Exists() || value.Get("value").Type == gjson.Null {
		return time.Time{}, false
	}
	instant, err := parseBoardTimestamp(value.Get("text").String())
	if err != nil {
		b.Logger.Warn().Err(err).Msg("unreadable watermark, forcing full sync")
		return time.Time{}, false
	}
	return instant, true
}

// FindItemByKey looks up at most one item whose matching-key column equals
// key. Zero matches is nil, not an error; if the API returns several, the
// first wins.
func (b BoardFetcherAndUpdater) FindItemByKey(key string, ctx context.Context) (*BoardItem, error) {
	data, err := b.request(itemByKeyQuery, map[string]interface{}{
		"boardId":     b.Config.Board.ID,
		"columnId":    b.Config.ColumnMappings.Key.Column,
		"columnValue": key,
	}, ctx)
	if err != nil {
		return nil, &QueryError{Op: "identity lookup", Key: key, Err: err}
	}

	items := data.Get("items_page_by_column_values.items").Array()
	if len(items) == 0 {
		return nil, nil
	}
	return &BoardItem{
		ID:   items[0].Get("id").String(),
		Name: items[0].Get("name").String(),
	}, nil
}

// CreateItem creates a single item in the given group.
func (b BoardFetcherAndUpdater) CreateItem(name string, values map[string]interface{}, groupID string, ctx context.Context) (string, error) {
	columnValues, err := ColumnValuesJSON(values)
	if err != nil {
		return "", &WriteError{Op: "create", Key: name, Err: err}
	}
	data, err := b.request(createItemMutation, map[string]interface{}{
		"boardId":      b.Config.Board.ID,
		"groupId":      groupID,
		"itemName":     name,
		"columnValues": columnValues,
	}, ctx)
	if err != nil {
		return "", &WriteError{Op: "create", Key: name, Err: err}
	}
	return data.Get("create_item.id").String(), nil
}

// UpdateItem overwrites the mapped columns of an existing item.
func (b BoardFetcherAndUpdater) UpdateItem(itemID string, values map[string]interface{}, ctx context.Context) (string, error) {
	columnValues, err := ColumnValuesJSON(values)
	if err != nil {
		return "", &WriteError{Op: "update", Key: itemID, Err: err}
	}
	data, err := b.request(updateItemMutation, map[string]interface{}{
		"itemId":       itemID,
		"boardId":      b.Config.Board.ID,
		"columnValues": columnValues,
	}, ctx)
	if err != nil {
		return "", &WriteError{Op: "update", Key: itemID, Err: err}
	}
	return data.Get("change_multiple_column_values.id").String(), nil
}

// CreateItems submits one batch create and returns the created item ids in
// submission order. The API silently dropping items is treated as a write
// failure: fewer ids than submitted items fails the batch.
func (b BoardFetcherAndUpdater) CreateItems(items []BoardItemCreate, groupID string, ctx context.Context) ([]string, error) {
	payload := make([]map[string]interface{}, len(items))
	for i, item := range items {
		columnValues, err := ColumnValuesJSON(item.ColumnValues)
		if err != nil {
			return nil, &WriteError{Op: "batch create", Key: item.Name, Err: err}
		}
		payload[i] = map[string]interface{}{
			"name":          item.Name,
			"column_values": columnValues,
		}
	}

	data, err := b.request(createItemsMutation, map[string]interface{}{
		"boardId": b.Config.Board.ID,
		"groupId": groupID,
		"items":   payload,
	}, ctx)
	if err != nil {
		return nil, &WriteError{Op: "batch create", Err: err}
	}

	var ids []string
	for _, created := range data.Get("create_multiple_items").Array() {
		ids = append(ids, created.Get("id").String())
	}
	if len(ids) < len(items) {
		return ids, &WriteError{Op: "batch create",
			Err: fmt.Errorf("created %d of %d items", len(ids), len(items))}
	}
	return ids, nil
}

// parseBoardTimestamp converts the watermark column text ("YYYY-MM-DD
// HH:MM:SS" in UTC, possibly date-only) into an instant.
func parseBoardTimestamp(value string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04", deltaDateFormat} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised board timestamp %q", value)
}
