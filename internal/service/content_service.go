package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/httpclient"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/model"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/supabase"
)

// DefaultContentTable is used when no table name is configured.
const DefaultContentTable = "content"

// ContentService reads the shared key/value content table.
type ContentService struct {
	db    *supabase.Client
	table string
}

// NewContentService creates a content reader over table.
func NewContentService(db *supabase.Client, table string) *ContentService {
	if table == "" {
		table = DefaultContentTable
	}
	return &ContentService{db: db, table: table}
}

func (s *ContentService) Table() string {
	return s.table
}

func keysToAny(keys []model.ContentKey) []any {
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}

// GetContentByKeys returns every row whose key is in keys.
func (s *ContentService) GetContentByKeys(ctx context.Context, keys []model.ContentKey) (*model.Envelope[[]model.ContentRow[json.RawMessage]], error) {
	return supabase.Select[model.ContentRow[json.RawMessage]](ctx, s.db.From(s.table).In("key", keysToAny(keys)))
}

// GetCommunityInfoAndDonations fetches the two keys the donate page needs in one call.
func (s *ContentService) GetCommunityInfoAndDonations(ctx context.Context) (*model.Envelope[[]model.ContentRow[json.RawMessage]], error) {
	return s.GetContentByKeys(ctx, []model.ContentKey{model.KeyCommunityInfo, model.KeyDonationMethods})
}

// GetContentByKey returns the rows for one key. extra filters are merged into the query.
func (s *ContentService) GetContentByKey(ctx context.Context, key model.ContentKey, extra httpclient.Filters) (*model.Envelope[[]model.ContentRow[json.RawMessage]], error) {
	return GetContent[json.RawMessage](ctx, s, key, extra)
}

// GetAllContent returns the whole table ordered by key then display order.
func (s *ContentService) GetAllContent(ctx context.Context) (*model.Envelope[[]model.ContentRow[json.RawMessage]], error) {
	q := s.db.From(s.table).Order("key", true).Order("display_order", true)
	return supabase.Select[model.ContentRow[json.RawMessage]](ctx, q)
}

// SearchContent matches term against title or description, optionally within keys.
func (s *ContentService) SearchContent(ctx context.Context, term string, keys []model.ContentKey) (*model.Envelope[[]model.ContentRow[json.RawMessage]], error) {
	pattern := "*" + term + "*"
	q := s.db.From(s.table).Or(
		httpclient.Condition{Column: "title", Filter: httpclient.Cmp(httpclient.OpILike, pattern)},
		httpclient.Condition{Column: "description", Filter: httpclient.Cmp(httpclient.OpILike, pattern)},
	)
	if len(keys) > 0 {
		q.In("key", keysToAny(keys))
	}
	return supabase.Select[model.ContentRow[json.RawMessage]](ctx, q)
}

func (s *ContentService) GetCommunityInfo(ctx context.Context) (*model.Envelope[[]model.ContentRow[model.CommunityInfo]], error) {
	return GetContent[model.CommunityInfo](ctx, s, model.KeyCommunityInfo, nil)
}

// GetContent reads the rows of one key and decodes each value as T.
// The key discriminator always wins over a "key" entry in extra.
// A value whose fields have the wrong JSON type is decoded as far as it goes;
// a row whose value cannot be read as T at all is left out.
func GetContent[T any](ctx context.Context, s *ContentService, key model.ContentKey, extra httpclient.Filters) (*model.Envelope[[]model.ContentRow[T]], error) {
	env, err := s.rawContent(ctx, key, extra)
	if err != nil {
		return nil, err
	}
	rows := make([]model.ContentRow[T], 0, len(env.Data))
	for _, row := range env.Data {
		v, ok := decodeRecord[T](row.Value)
		if !ok {
			continue
		}
		rows = append(rows, model.ContentRow[T]{
			ID:        row.ID,
			Key:       row.Key,
			Value:     v,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		})
	}
	return withData(env, rows), nil
}

func (s *ContentService) rawContent(ctx context.Context, key model.ContentKey, extra httpclient.Filters) (*model.Envelope[[]model.ContentRow[json.RawMessage]], error) {
	q := s.db.From(s.table)
	for column, f := range extra {
		q.Filter(column, f)
	}
	q.Eq("key", string(key))
	return supabase.Select[model.ContentRow[json.RawMessage]](ctx, q)
}

// decodeRecord unmarshals raw into T. Mismatched fields keep their zero value
// and the rest of the record is still filled; ok is false only when raw as a
// whole is not a T (e.g. a string where an object is expected).
func decodeRecord[T any](raw json.RawMessage) (v T, ok bool) {
	err := json.Unmarshal(raw, &v)
	if err == nil {
		return v, true
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return v, true
	}
	var zero T
	return zero, false
}

// FirstValue returns the value of the first row, the way pages read a single document.
func FirstValue[T any](env *model.Envelope[[]model.ContentRow[T]]) (T, bool) {
	var zero T
	if env == nil || len(env.Data) == 0 {
		return zero, false
	}
	return env.Data[0].Value, true
}

// listContent reads a key whose value is a list of records and concatenates the
// lists of all rows. Records are decoded one by one, so one bad record does not
// hide the others.
func listContent[T any](ctx context.Context, s *ContentService, key model.ContentKey) (*model.Envelope[[]T], error) {
	env, err := s.rawContent(ctx, key, nil)
	if err != nil {
		return nil, err
	}
	items := make([]T, 0)
	for _, row := range env.Data {
		var records []json.RawMessage
		if err := json.Unmarshal(row.Value, &records); err != nil {
			continue
		}
		for _, raw := range records {
			if v, ok := decodeRecord[T](raw); ok {
				items = append(items, v)
			}
		}
	}
	return withData(env, items), nil
}

func withData[T, U any](env *model.Envelope[T], data U) *model.Envelope[U] {
	return &model.Envelope[U]{
		Data:    data,
		Success: env.Success,
		Status:  env.Status,
		Message: env.Message,
	}
}

func limitItems[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// sortByDisplayOrder keeps the relative order of records with equal display order.
func sortByDisplayOrder[T any](items []T, order func(T) int) {
	sort.SliceStable(items, func(i, j int) bool { return order(items[i]) < order(items[j]) })
}
