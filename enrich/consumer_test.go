package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/courrier/blobstore"
	"github.com/hazyhaar/courrier/dbopen"
	"github.com/hazyhaar/courrier/idgen"
	"github.com/hazyhaar/courrier/safeurl"
	"github.com/hazyhaar/courrier/store"

	_ "modernc.org/sqlite"
)

type consumerFixture struct {
	st    *store.Store
	blobs *blobstore.Mem
	doc   *store.Document
}

func newConsumerFixture(t *testing.T) *consumerFixture {
	t.Helper()
	db := dbopen.OpenMemory(t)
	if err := store.ApplySchema(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	st := store.New(db)
	ctx := context.Background()

	a := &store.Account{ID: idgen.New(), Slug: "reader"}
	if err := st.InsertAccount(ctx, a); err != nil {
		t.Fatalf("insert account: %v", err)
	}
	doc := &store.Document{
		ID: "doc_1", AccountID: a.ID, ContentType: "rss",
		Title: "Thin", ContentMD: "thin", WordCount: 1,
	}
	if _, err := st.InsertDocumentIfAbsent(ctx, doc); err != nil {
		t.Fatalf("insert doc: %v", err)
	}
	return &consumerFixture{st: st, blobs: blobstore.NewMem(), doc: doc}
}

func TestHandle_DisabledAcksEverything(t *testing.T) {
	// WHAT: with the backend disabled every job acks without work.
	f := newConsumerFixture(t)
	c := NewConsumer(Config{Enabled: false}, f.st, f.blobs, nil)

	err := c.Handle(context.Background(), &Job{
		ID: "j1", DocumentID: f.doc.ID, JobType: JobContentEnrichment,
	})
	if err != nil {
		t.Fatalf("disabled consumer should ack, got %v", err)
	}
}

func TestHandle_MissingDocumentAcks(t *testing.T) {
	// WHAT: a job for a deleted document acks instead of redelivering forever.
	f := newConsumerFixture(t)
	c := NewConsumer(Config{Enabled: true, BackendURL: "http://unused.example"}, f.st, f.blobs, nil)

	for _, jobType := range []string{JobContentEnrichment, JobImageCache} {
		err := c.Handle(context.Background(), &Job{
			ID: "j-" + jobType, DocumentID: "doc_gone",
			URL: "https://x.example/p", JobType: jobType,
		})
		if err != nil {
			t.Errorf("%s with missing doc should ack, got %v", jobType, err)
		}
	}
}

func TestHandle_ContentEnrichmentAppliesResult(t *testing.T) {
	// WHAT: a backend success replaces the document's content and metrics.
	// WHY: re-applying the same result on redelivery must stay harmless,
	// hence a plain overwrite.
	f := newConsumerFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/render" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("url"); got != "https://x.example/post" {
			t.Errorf("url param = %q", got)
		}
		fmt.Fprint(w, `{"title":"Full Title","html":"<p>full rendered content body</p>"}`)
	}))
	defer srv.Close()

	c := NewConsumer(Config{Enabled: true, BackendURL: srv.URL}, f.st, f.blobs, nil)
	err := c.Handle(context.Background(), &Job{
		ID: "j1", DocumentID: f.doc.ID,
		URL: "https://x.example/post", JobType: JobContentEnrichment,
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	doc, err := f.st.GetDocument(context.Background(), f.doc.ID)
	if err != nil || doc == nil {
		t.Fatalf("get doc: %v", err)
	}
	if doc.Title != "Full Title" {
		t.Errorf("title = %q", doc.Title)
	}
	if !strings.Contains(doc.ContentMD, "full rendered content body") {
		t.Errorf("content_md = %q", doc.ContentMD)
	}
	if doc.WordCount <= 1 {
		t.Errorf("word_count = %d, want recomputed", doc.WordCount)
	}
}

func TestHandle_Backend5xxRedelivers(t *testing.T) {
	// WHAT: a backend 5xx returns an error so the queue redelivers.
	f := newConsumerFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewConsumer(Config{Enabled: true, BackendURL: srv.URL}, f.st, f.blobs, nil)
	err := c.Handle(context.Background(), &Job{
		ID: "j1", DocumentID: f.doc.ID,
		URL: "https://x.example/post", JobType: JobContentEnrichment,
	})
	if err == nil {
		t.Fatal("5xx should return an error for redelivery")
	}
}

func TestHandle_Backend4xxAcks(t *testing.T) {
	// WHAT: a backend 4xx is unretryable and acks.
	f := newConsumerFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewConsumer(Config{Enabled: true, BackendURL: srv.URL}, f.st, f.blobs, nil)
	err := c.Handle(context.Background(), &Job{
		ID: "j1", DocumentID: f.doc.ID,
		URL: "https://x.example/post", JobType: JobContentEnrichment,
	})
	if err != nil {
		t.Fatalf("4xx should ack, got %v", err)
	}
}

func TestHandle_ImageCache(t *testing.T) {
	// WHAT: image-cache stores the cover under covers/{documentID} and
	// attaches it to the document.
	f := newConsumerFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("pngbytes"))
	}))
	defer srv.Close()

	// httptest serves on loopback, which the default validator blocks.
	c := NewConsumer(Config{Enabled: true, URLValidator: safeurl.AllowAll}, f.st, f.blobs, nil)
	err := c.Handle(context.Background(), &Job{
		ID: "j1", DocumentID: f.doc.ID, URL: srv.URL, JobType: JobImageCache,
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	obj, err := f.blobs.Get(context.Background(), "covers/"+f.doc.ID)
	if err != nil {
		t.Fatalf("cover not stored: %v", err)
	}
	if obj.ContentType != "image/png" || string(obj.Data) != "pngbytes" {
		t.Errorf("stored object = %+v", obj)
	}

	doc, err := f.st.GetDocument(context.Background(), f.doc.ID)
	if err != nil || doc == nil {
		t.Fatalf("get doc: %v", err)
	}
	if doc.CoverImageKey != "covers/"+f.doc.ID {
		t.Errorf("cover_image_key = %q", doc.CoverImageKey)
	}
}

func TestHandle_ImageCachePrivateAddressBlocked(t *testing.T) {
	// WHAT: with the default validator, a cover URL pointing at a loopback
	// address is never fetched or stored; the job acks.
	// WHY: cover URLs come from feed content, so a crafted feed could
	// otherwise point the consumer at internal metadata endpoints.
	f := newConsumerFixture(t)
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("pngbytes"))
	}))
	defer srv.Close()

	c := NewConsumer(Config{Enabled: true}, f.st, f.blobs, nil)
	err := c.Handle(context.Background(), &Job{
		ID: "j1", DocumentID: f.doc.ID, URL: srv.URL, JobType: JobImageCache,
	})
	if err != nil {
		t.Fatalf("blocked URL should ack, got %v", err)
	}
	if hits != 0 {
		t.Errorf("loopback server was hit %d times", hits)
	}
	if f.blobs.Len() != 0 {
		t.Errorf("blobstore has %d objects, want 0", f.blobs.Len())
	}

	doc, err := f.st.GetDocument(context.Background(), f.doc.ID)
	if err != nil || doc == nil {
		t.Fatalf("get doc: %v", err)
	}
	if doc.CoverImageKey != "" {
		t.Errorf("cover_image_key = %q, want empty", doc.CoverImageKey)
	}
}

func TestHandle_ImageCacheMissingCandidateAcks(t *testing.T) {
	// WHAT: an image-cache job with no cover URL acks.
	f := newConsumerFixture(t)
	c := NewConsumer(Config{Enabled: true}, f.st, f.blobs, nil)

	err := c.Handle(context.Background(), &Job{
		ID: "j1", DocumentID: f.doc.ID, URL: "", JobType: JobImageCache,
	})
	if err != nil {
		t.Fatalf("missing candidate should ack, got %v", err)
	}
}
