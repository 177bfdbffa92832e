package jobqueue

import (
	"context"
	"database/sql/driver"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/vrischmann/servare/internal/favicon"
	"github.com/vrischmann/servare/internal/feedstore"
	"github.com/vrischmann/servare/internal/httpfetch"
	"github.com/vrischmann/servare/internal/model"
	"github.com/vrischmann/servare/internal/security"
)

// sanitizedSummary matches an INSERT arg that no longer contains the
// script tag or event-handler attribute the raw feed body carried.
type sanitizedSummary struct{}

func (sanitizedSummary) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return !strings.Contains(s, "<script") && !strings.Contains(s, "onclick") && strings.Contains(s, "hi")
}

const rssFixture = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Example</title>
<item>
<title>Hello</title>
<link>https://example.com/1</link>
<guid>guid-1</guid>
<description><![CDATA[<p onclick="evil()">hi <script>bad()</script></p>]]></description>
</item>
</channel></rss>`

func TestRefreshFeedHandler_Handle_SanitizesSummaryBeforeInsert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssFixture))
	}))
	defer srv.Close()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO feed_entries")).
		WithArgs(int64(7), "guid-1", "Hello", sanitizedSummary{}, "https://example.com/1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	h := &RefreshFeedHandler{
		Fetcher:   httpfetchClientFor(t, srv.URL),
		Feeds:     feedstore.NewStore(db),
		Sanitizer: security.NewContentSanitizer(),
	}

	payload := NewRefreshFeedPayload("user-1", 7, srv.URL)
	if err := h.Handle(context.Background(), tx, payload); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestRefreshFeedHandler_Handle_NilPayload_ReturnsError(t *testing.T) {
	h := &RefreshFeedHandler{}
	err := h.Handle(context.Background(), nil, Payload{Tag: TagRefreshFeed})
	if err == nil {
		t.Fatal("expected an error for a nil RefreshFeed payload")
	}
}

func TestFetchFaviconHandler_Handle_NoSiteLink_MarksAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE feeds SET favicon_data")).
		WithArgs(int64(7), []byte(nil), int(model.FaviconAbsent)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	h := &FetchFaviconHandler{Feeds: feedstore.NewStore(db)}
	payload := NewFetchFaviconPayload("user-1", 7, "")
	if err := h.Handle(context.Background(), tx, payload); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestFetchFaviconHandler_Handle_FindsAndStoresFavicon(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><link rel="icon" href="/icon.png"></head></html>`))
	})
	mux.HandleFunc("/icon.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("icon-bytes"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE feeds SET favicon_data")).
		WithArgs(int64(7), []byte("icon-bytes"), int(model.FaviconPresent)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	client := httpfetchClientFor(t, srv.URL)
	h := &FetchFaviconHandler{
		HomepageFetcher: client,
		FaviconFetcher:  favicon.NewFetcher(client.Underlying()),
		Feeds:           feedstore.NewStore(db),
	}

	payload := NewFetchFaviconPayload("user-1", 7, srv.URL)
	if err := h.Handle(context.Background(), tx, payload); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func httpfetchClientFor(t *testing.T, url string) *httpfetch.Client {
	t.Helper()
	return httpfetch.New(0, 1<<20, nil)
}
