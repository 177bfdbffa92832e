package favicon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFindURL_PrefersIconOverShortcutIcon(t *testing.T) {
	html := `<html><head>
		<link rel="shortcut icon" href="/old.ico">
		<link rel="icon" href="/new.ico">
	</head><body></body></html>`

	got, found := FindURL("https://example.com", []byte(html))
	if !found {
		t.Fatal("expected a favicon link to be found")
	}
	if got != "https://example.com/new.ico" {
		t.Errorf("FindURL = %q, want %q", got, "https://example.com/new.ico")
	}
}

func TestFindURL_TypeXIconWithNoRel(t *testing.T) {
	html := `<html><head><link type="image/x-icon" href="/icon.png"></head><body></body></html>`

	got, found := FindURL("https://example.com", []byte(html))
	if !found {
		t.Fatal("expected a favicon link to be found")
	}
	if got != "https://example.com/icon.png" {
		t.Errorf("FindURL = %q, want %q", got, "https://example.com/icon.png")
	}
}

func TestFindURL_TypePriorityOverRelIcon(t *testing.T) {
	html := `<html><head>
		<link rel="icon" href="/rel.ico">
		<link type="image/x-icon" href="/x-icon.ico">
		<link type="image/icon" href="/icon.ico">
	</head><body></body></html>`

	got, found := FindURL("https://example.com", []byte(html))
	if !found {
		t.Fatal("expected a favicon link to be found")
	}
	if got != "https://example.com/x-icon.ico" {
		t.Errorf("FindURL = %q, want %q (type=image/x-icon ranks highest)", got, "https://example.com/x-icon.ico")
	}
}

func TestFindURL_TypeImageIconOverRelIcon(t *testing.T) {
	html := `<html><head>
		<link rel="icon" href="/rel.ico">
		<link type="image/icon" href="/icon.ico">
	</head><body></body></html>`

	got, found := FindURL("https://example.com", []byte(html))
	if !found {
		t.Fatal("expected a favicon link to be found")
	}
	if got != "https://example.com/icon.ico" {
		t.Errorf("FindURL = %q, want %q (type=image/icon ranks above rel=icon)", got, "https://example.com/icon.ico")
	}
}

func TestFindURL_NoLinkTags_ReturnsNotFound(t *testing.T) {
	html := `<html><head><title>No icons here</title></head><body></body></html>`

	_, found := FindURL("https://example.com", []byte(html))
	if found {
		t.Error("expected no favicon link to be found")
	}
}

func TestFindURL_ResolvesRelativeHref(t *testing.T) {
	html := `<html><head><link rel="icon" href="icons/site.png"></head></html>`

	got, found := FindURL("https://example.com/blog/", []byte(html))
	if !found {
		t.Fatal("expected a favicon link to be found")
	}
	if got != "https://example.com/blog/icons/site.png" {
		t.Errorf("FindURL = %q, want resolved against the base URL", got)
	}
}

func TestDefaultURL_StripsPathAndQuery(t *testing.T) {
	got, err := DefaultURL("https://example.com/some/page?x=1#frag")
	if err != nil {
		t.Fatalf("DefaultURL: %v", err)
	}
	if got != "https://example.com/favicon.ico" {
		t.Errorf("DefaultURL = %q, want %q", got, "https://example.com/favicon.ico")
	}
}

func TestFetcher_Fetch_ReturnsImageBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("pngdata"))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client())
	data, mime, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "pngdata" {
		t.Errorf("data = %q, want %q", data, "pngdata")
	}
	if mime != "image/png" {
		t.Errorf("mime = %q, want image/png", mime)
	}
}

func TestFetcher_Fetch_NonImageContentType_ReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client())
	data, _, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if data != nil {
		t.Error("expected nil data for a non-image response")
	}
}

func TestFetcher_Fetch_NotFound_ReturnsNilWithoutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client())
	data, _, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if data != nil {
		t.Error("expected nil data for a 404 response")
	}
}
