package service

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/fakhrymubarak/masjid-data-gateway/internal/httpclient"
	"github.com/fakhrymubarak/masjid-data-gateway/internal/supabase"
)

// fakeBackend serves a content table keyed by "key" and records RPC calls.
type fakeBackend struct {
	mu       sync.Mutex
	rows     map[string][]string
	rpcCalls map[string][]string
	queries  []string
	status   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{rows: map[string][]string{}, rpcCalls: map[string][]string{}}
}

// addRow stores a content row whose value is the given raw JSON.
func (f *fakeBackend) addRow(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[key] = append(f.rows[key], `{"key":"`+key+`","value":`+value+`}`)
}

func (f *fakeBackend) lastQuery() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1]
}

func (f *fakeBackend) rpcBodies(fn string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.rpcCalls[fn]...)
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, r.URL.RawQuery)

	if f.status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"message":"backend failure","code":"XX000"}`))
		return
	}

	if fn, ok := strings.CutPrefix(r.URL.Path, "/rest/v1/rpc/"); ok {
		b, _ := io.ReadAll(r.Body)
		f.rpcCalls[fn] = append(f.rpcCalls[fn], string(b))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var matched []string
	filter := r.URL.Query().Get("key")
	switch {
	case strings.HasPrefix(filter, "eq."):
		matched = f.rows[strings.TrimPrefix(filter, "eq.")]
	case strings.HasPrefix(filter, "in.("):
		for _, k := range strings.Split(strings.TrimSuffix(strings.TrimPrefix(filter, "in.("), ")"), ",") {
			matched = append(matched, f.rows[k]...)
		}
	default:
		for _, rows := range f.rows {
			matched = append(matched, rows...)
		}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write([]byte("[" + strings.Join(matched, ",") + "]"))
}

func newTestContent(t *testing.T, backend *fakeBackend) (*ContentService, *supabase.Client) {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	db := supabase.New(supabase.Config{
		URL:    srv.URL,
		APIKey: "anon",
		HTTP:   httpclient.Config{Retry: &httpclient.RetryPolicy{}},
	})
	return NewContentService(db, ""), db
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}
