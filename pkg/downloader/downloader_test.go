package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

type mockTask struct {
	lastPercent int
	lastMsg     string
}

func (m *mockTask) Log(msg string)                      {}
func (m *mockTask) SetStage(name string, target string) {}
func (m *mockTask) Progress(percent int, message string) {
	m.lastPercent = percent
	m.lastMsg = message
}
func (m *mockTask) Done() {}

func TestHTTPDownload(t *testing.T) {
	content := []byte("some large content to test download")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(content)))
		w.WriteHeader(http.StatusOK)
		w.Write(content)
	}))
	defer ts.Close()

	d := NewDefaultDownloader()
	buf := &bytes.Buffer{}
	task := &mockTask{}

	err := d.Download(context.Background(), ts.URL, buf, task)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	if !bytes.Equal(buf.Bytes(), content) {
		t.Errorf("Content mismatch")
	}

	if task.lastPercent != 100 {
		t.Errorf("Expected 100%% progress, got %d", task.lastPercent)
	}
}

func TestHTTPRedirect(t *testing.T) {
	content := []byte("redirected content")

	// Target server
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(content)
	}))
	defer ts.Close()

	// Redirect server
	rs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, ts.URL, http.StatusMovedPermanently)
	}))
	defer rs.Close()

	d := NewDefaultDownloader()
	buf := &bytes.Buffer{}
	task := &mockTask{}

	err := d.Download(context.Background(), rs.URL, buf, task)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	if !bytes.Equal(buf.Bytes(), content) {
		t.Errorf("Content mismatch, got %q", buf.String())
	}
}

func TestUnsupportedScheme(t *testing.T) {
	d := NewDefaultDownloader()
	err := d.Download(context.Background(), "ftp://example.com", &bytes.Buffer{}, &mockTask{})
	if err == nil || !bytes.Contains([]byte(err.Error()), []byte("unsupported scheme")) {
		t.Errorf("Expected unsupported scheme error, got: %v", err)
	}
}

func TestHTTPDownloadThroughProxy(t *testing.T) {
	content := []byte("proxied content")
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(content)
	}))
	defer target.Close()

	var proxied bool
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxied = true
		resp, err := http.Get(r.URL.String())
		if err != nil {
			t.Errorf("proxy forward failed: %v", err)
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()
		io.Copy(w, resp.Body)
	}))
	defer proxy.Close()

	d, err := NewDownloaderWithProxy(proxy.URL)
	if err != nil {
		t.Fatalf("NewDownloaderWithProxy failed: %v", err)
	}

	buf := &bytes.Buffer{}
	if err := d.Download(context.Background(), target.URL, buf, &mockTask{}); err != nil {
		t.Fatalf("Download through proxy failed: %v", err)
	}
	if !proxied {
		t.Error("expected the request to be routed through the proxy server")
	}
	if !bytes.Equal(buf.Bytes(), content) {
		t.Errorf("content mismatch, got %q", buf.String())
	}
}

func TestNewDownloaderWithProxyEmptyIsDefault(t *testing.T) {
	d, err := NewDownloaderWithProxy("")
	if err != nil {
		t.Fatalf("NewDownloaderWithProxy(\"\") failed: %v", err)
	}
	if _, ok := d.(*manager); !ok {
		t.Fatalf("expected a *manager, got %T", d)
	}
}

func TestNewHTTPHandlerWithProxyRejectsInvalidURL(t *testing.T) {
	if _, err := NewHTTPHandlerWithProxy("://bad-url"); err == nil {
		t.Error("expected an error for an invalid proxy URL")
	}
}
