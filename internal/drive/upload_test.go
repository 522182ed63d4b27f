package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

// readParts parses a multipart/related body into its parts.
func readParts(t *testing.T, contentType string, body []byte) []struct {
	ContentType string
	Data        []byte
} {
	t.Helper()
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		t.Fatalf("failed to parse content type %q: %v", contentType, err)
	}
	if mediaType != "multipart/related" {
		t.Fatalf("expected multipart/related, got %q", mediaType)
	}

	var parts []struct {
		ContentType string
		Data        []byte
	}
	mr := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to read part: %v", err)
		}
		data, err := io.ReadAll(p)
		if err != nil {
			t.Fatalf("failed to read part body: %v", err)
		}
		parts = append(parts, struct {
			ContentType string
			Data        []byte
		}{p.Header.Get("Content-Type"), data})
	}
	return parts
}

func TestBuildMultipartBody_Framing(t *testing.T) {
	payload := []byte{0x25, 0x50, 0x44, 0x46, 0x00, 0xff, 0x0d, 0x0a, 0x01}
	meta := uploadMetadata{Name: "a.pdf", MimeType: "application/pdf", Parents: []string{"target-1"}}

	body, err := buildMultipartBody("test-boundary", meta, "application/pdf", payload)
	if err != nil {
		t.Fatalf("buildMultipartBody failed: %v", err)
	}

	parts := readParts(t, "multipart/related; boundary=test-boundary", body)
	if len(parts) != 2 {
		t.Fatalf("expected exactly 2 parts, got %d", len(parts))
	}

	var gotMeta map[string]any
	if err := json.Unmarshal(parts[0].Data, &gotMeta); err != nil {
		t.Fatalf("first part is not valid JSON: %v", err)
	}
	if gotMeta["name"] != "a.pdf" || gotMeta["mimeType"] != "application/pdf" {
		t.Errorf("unexpected metadata: %v", gotMeta)
	}
	if parents, ok := gotMeta["parents"].([]any); !ok || len(parents) != 1 || parents[0] != "target-1" {
		t.Errorf("expected parents [target-1], got %v", gotMeta["parents"])
	}

	if !bytes.Equal(parts[1].Data, payload) {
		t.Errorf("second part is not byte-identical to the payload:\ngot  %x\nwant %x", parts[1].Data, payload)
	}
	if parts[1].ContentType != "application/pdf" {
		t.Errorf("expected payload content type application/pdf, got %q", parts[1].ContentType)
	}
}

func TestUpload_Success(t *testing.T) {
	payload := []byte("file contents")
	var permissionGranted bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/upload/files":
			if r.URL.Query().Get("uploadType") != "multipart" {
				t.Errorf("expected uploadType=multipart, got %q", r.URL.Query().Get("uploadType"))
			}
			body, _ := io.ReadAll(r.Body)
			parts := readParts(t, r.Header.Get("Content-Type"), body)
			if len(parts) != 2 {
				t.Fatalf("expected 2 parts, got %d", len(parts))
			}
			if !bytes.Equal(parts[1].Data, payload) {
				t.Error("payload part does not match uploaded bytes")
			}
			json.NewEncoder(w).Encode(map[string]any{
				"id":          "new-file",
				"name":        "doc.pdf",
				"mimeType":    "application/pdf",
				"webViewLink": "https://drive.google.com/file/d/new-file/view",
				"parents":     []string{"target-1"},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/files/new-file/permissions":
			var perm struct {
				Type string `json:"type"`
				Role string `json:"role"`
			}
			json.NewDecoder(r.Body).Decode(&perm)
			if perm.Type != "anyone" || perm.Role != "reader" {
				t.Errorf("expected anyone/reader permission, got %+v", perm)
			}
			permissionGranted = true
			json.NewEncoder(w).Encode(map[string]string{"id": "perm-1"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	c := newTestClient(t, ts)
	fd, err := c.Upload(context.Background(), "doc.pdf", "application/pdf", payload, "target-1")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if fd.ID != "new-file" {
		t.Errorf("expected id new-file, got %q", fd.ID)
	}
	if !reflect.DeepEqual(fd.Parents, []string{"target-1"}) {
		t.Errorf("expected parents [target-1], got %v", fd.Parents)
	}
	if !permissionGranted {
		t.Error("expected a permission-grant call after upload")
	}
}

func TestUpload_PermissionGrantFailureIsNonFatal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/upload/files":
			json.NewEncoder(w).Encode(map[string]any{"id": "new-file", "name": "doc.pdf"})
		case r.Method == http.MethodPost && r.URL.Path == "/files/new-file/permissions":
			http.Error(w, `{"error":{"code":500}}`, http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	c := newTestClient(t, ts)
	fd, err := c.Upload(context.Background(), "doc.pdf", "application/pdf", []byte("x"), "target-1")
	if err != nil {
		t.Fatalf("Upload must succeed when only the permission grant fails: %v", err)
	}
	if fd.ID != "new-file" {
		t.Errorf("expected uploaded file back, got %q", fd.ID)
	}
}

func TestUpload_RemoteFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"insufficient scope"}}`, http.StatusForbidden)
	}))
	defer ts.Close()

	c := newTestClient(t, ts)
	if _, err := c.Upload(context.Background(), "doc.pdf", "", []byte("x"), "target-1"); err == nil {
		t.Fatal("expected error from failed upload, got nil")
	}
}

func TestUpload_FallbackContentType(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/upload/files" {
			body, _ := io.ReadAll(r.Body)
			parts := readParts(t, r.Header.Get("Content-Type"), body)
			if parts[1].ContentType != "application/octet-stream" {
				t.Errorf("expected octet-stream fallback, got %q", parts[1].ContentType)
			}
			json.NewEncoder(w).Encode(map[string]any{"id": "new-file"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "perm-1"})
	}))
	defer ts.Close()

	c := newTestClient(t, ts)
	if _, err := c.Upload(context.Background(), "blob", "", []byte("x"), "target-1"); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
}
