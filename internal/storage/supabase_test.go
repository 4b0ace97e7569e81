package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aldoetobex/legal-desk-backend/internal/config"
)

func newFake(t *testing.T, handler http.HandlerFunc) *Supabase {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSupabase(config.StorageConfig{URL: srv.URL + "/", Key: "svc", Bucket: "docs"})
}

func TestUpload_SendsHeadersAndBody(t *testing.T) {
	var gotPath, gotKey, gotType, gotBody string
	sb := newFake(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotKey, gotType = r.URL.Path, r.Header.Get("apikey"), r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	})

	if err := sb.Upload(context.Background(), "case/1/a.pdf", strings.NewReader("%PDF"), "application/pdf"); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if gotPath != "/storage/v1/object/docs/case/1/a.pdf" || gotKey != "svc" || gotType != "application/pdf" || gotBody != "%PDF" {
		t.Fatalf("unexpected request: %s %s %s %q", gotPath, gotKey, gotType, gotBody)
	}
}

func TestSignedURL_MakesAbsolute(t *testing.T) {
	sb := newFake(t, func(w http.ResponseWriter, r *http.Request) {
		var in map[string]int
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["expiresIn"] != 60 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"signedURL":"/object/sign/docs/case/1/a.pdf?token=abc"}`))
	})

	url, err := sb.SignedURL(context.Background(), "case/1/a.pdf", 60)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !strings.HasSuffix(url, "/storage/v1/object/sign/docs/case/1/a.pdf?token=abc") || !strings.HasPrefix(url, "http://") {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestDelete_NotFoundIsSuccess(t *testing.T) {
	sb := newFake(t, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) })
	if err := sb.Delete(context.Background(), "case/1/gone.pdf"); err != nil {
		t.Fatalf("404 should be ignored: %v", err)
	}
}

func TestBulkDelete_ErrorsSurface(t *testing.T) {
	sb := newFake(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})
	if err := sb.BulkDelete(context.Background(), nil); err != nil {
		t.Fatalf("empty key list is a no-op: %v", err)
	}
	err := sb.BulkDelete(context.Background(), []string{"case/1/a.pdf"})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("want error with body, got %v", err)
	}
}

func TestMakeObjectKey(t *testing.T) {
	sb := NewSupabase(config.StorageConfig{})
	key := sb.MakeObjectKey("abc", "../../etc/passwd.pdf")
	if !strings.HasPrefix(key, "case/abc/") || !strings.HasSuffix(key, "-passwd.pdf") {
		t.Fatalf("unexpected key %q", key)
	}
	if sb.Configured() {
		t.Fatal("empty config should not be configured")
	}
}
