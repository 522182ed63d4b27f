package drive

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// fakeNode is a file in the fake Drive parent graph.
type fakeNode struct {
	parents []string
	status  int // non-zero forces this status on metadata fetches
}

// newMetadataServer serves GET /files/{id} metadata for a parent graph and
// counts the fetches it handles.
func newMetadataServer(t *testing.T, nodes map[string]fakeNode, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/files/")
		if calls != nil {
			calls.Add(1)
		}
		node, ok := nodes[id]
		if !ok {
			http.Error(w, `{"error":{"code":404}}`, http.StatusNotFound)
			return
		}
		if node.status != 0 {
			http.Error(w, `{"error":{"code":500}}`, node.status)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": id, "parents": node.parents})
	}))
}

func newTestClient(t *testing.T, ts *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), "test-access-token",
		WithAPIEndpoint(ts.URL),
		WithUploadEndpoint(ts.URL+"/upload/files"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestIsDescendant_DirectChild(t *testing.T) {
	var calls atomic.Int64
	ts := newMetadataServer(t, map[string]fakeNode{
		"child": {parents: []string{"root-1"}},
	}, &calls)
	defer ts.Close()

	c := newTestClient(t, ts)
	if !c.IsDescendant(context.Background(), "child", "root-1") {
		t.Fatal("expected direct child to be in scope")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 metadata fetch, got %d", got)
	}
}

func TestIsDescendant_TwoHops(t *testing.T) {
	ts := newMetadataServer(t, map[string]fakeNode{
		"grandchild": {parents: []string{"child"}},
		"child":      {parents: []string{"root-1"}},
	}, nil)
	defer ts.Close()

	c := newTestClient(t, ts)
	if !c.IsDescendant(context.Background(), "grandchild", "root-1") {
		t.Fatal("expected two-hop descendant to be in scope")
	}
}

func TestIsDescendant_OutsideTree(t *testing.T) {
	ts := newMetadataServer(t, map[string]fakeNode{
		"stray":      {parents: []string{"other-root"}},
		"other-root": {parents: nil}, // top of the user's Drive
	}, nil)
	defer ts.Close()

	c := newTestClient(t, ts)
	if c.IsDescendant(context.Background(), "stray", "root-1") {
		t.Fatal("expected file outside the tree to be denied")
	}
}

func TestIsDescendant_CycleTerminates(t *testing.T) {
	var calls atomic.Int64
	ts := newMetadataServer(t, map[string]fakeNode{
		"a": {parents: []string{"b"}},
		"b": {parents: []string{"a"}},
	}, &calls)
	defer ts.Close()

	c := newTestClient(t, ts)
	if c.IsDescendant(context.Background(), "a", "root-1") {
		t.Fatal("expected cycle to resolve to deny")
	}
	// Bounded by the chain length: one fetch per distinct node.
	if got := calls.Load(); got > 2 {
		t.Errorf("expected at most 2 metadata fetches for a 2-node cycle, got %d", got)
	}
}

func TestIsDescendant_FetchErrorFailsClosed(t *testing.T) {
	ts := newMetadataServer(t, map[string]fakeNode{
		"grandchild": {parents: []string{"child"}},
		"child":      {status: http.StatusInternalServerError},
	}, nil)
	defer ts.Close()

	c := newTestClient(t, ts)
	if c.IsDescendant(context.Background(), "grandchild", "root-1") {
		t.Fatal("expected fetch error mid-walk to resolve to deny")
	}
}

func TestIsDescendant_MissingFileFailsClosed(t *testing.T) {
	ts := newMetadataServer(t, map[string]fakeNode{}, nil)
	defer ts.Close()

	c := newTestClient(t, ts)
	if c.IsDescendant(context.Background(), "ghost", "root-1") {
		t.Fatal("expected unknown file to be denied")
	}
}

func TestIsDescendant_EmptyIDs(t *testing.T) {
	var calls atomic.Int64
	ts := newMetadataServer(t, map[string]fakeNode{}, &calls)
	defer ts.Close()

	c := newTestClient(t, ts)
	if c.IsDescendant(context.Background(), "", "root-1") {
		t.Error("expected empty candidate to be denied")
	}
	if c.IsDescendant(context.Background(), "file-1", "") {
		t.Error("expected empty root to be denied")
	}
	if calls.Load() != 0 {
		t.Errorf("expected no metadata fetches for empty ids, got %d", calls.Load())
	}
}
