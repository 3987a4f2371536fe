package feedpoll

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hazyhaar/courrier/dbopen"
	"github.com/hazyhaar/courrier/enrich"
	"github.com/hazyhaar/courrier/idgen"
	"github.com/hazyhaar/courrier/safeurl"
	"github.com/hazyhaar/courrier/store"

	_ "modernc.org/sqlite"
)

// memQueue captures published enrichment jobs.
type memQueue struct {
	jobs []*enrich.Job
}

func (m *memQueue) Publish(_ context.Context, job *enrich.Job) error {
	m.jobs = append(m.jobs, job)
	return nil
}

type pollFixture struct {
	poller  *Poller
	st      *store.Store
	queue   *memQueue
	account *store.Account
}

func newPollFixture(t *testing.T, cfg Config) *pollFixture {
	t.Helper()
	db := dbopen.OpenMemory(t)
	if err := store.ApplySchema(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	st := store.New(db)

	a := &store.Account{ID: idgen.New(), Slug: "reader"}
	if err := st.InsertAccount(context.Background(), a); err != nil {
		t.Fatalf("insert account: %v", err)
	}

	cfg.Fetch.URLValidator = safeurl.AllowAll // httptest serves on loopback
	q := &memQueue{}
	return &pollFixture{
		poller:  NewPoller(cfg, st, q, nil),
		st:      st,
		queue:   q,
		account: a,
	}
}

func (f *pollFixture) addFeed(t *testing.T, feedURL string) *store.Feed {
	t.Helper()
	fd := &store.Feed{
		ID: idgen.New(), AccountID: f.account.ID,
		FeedURL: feedURL, IsActive: true, FetchIntervalMinutes: 60,
	}
	if _, err := f.st.InsertFeed(context.Background(), fd); err != nil {
		t.Fatalf("insert feed: %v", err)
	}
	return fd
}

func countDocs(t *testing.T, st *store.Store) int {
	t.Helper()
	var n int
	if err := st.DB.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		t.Fatalf("count docs: %v", err)
	}
	return n
}

func rssWith(items string) string {
	return `<?xml version="1.0"?><rss version="2.0"><channel>
<title>T</title><link>https://t.example</link>` + items + `</channel></rss>`
}

// WHAT: A poll of a two-item feed creates two documents with inherited tags
// and success log rows; the fetch resets poll state.
func TestPollOnce_IngestsNewItems(t *testing.T) {
	payload := rssWith(`
<item><title>One</title><link>https://t.example/1</link>
<description>first post body</description>
<enclosure url="https://t.example/1.jpg" type="image/jpeg"/></item>
<item><title>Two</title><link>https://t.example/2</link>
<description>second post body</description></item>`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, payload)
	}))
	defer srv.Close()

	f := newPollFixture(t, Config{})
	fd := f.addFeed(t, srv.URL)
	ctx := context.Background()

	tag, err := f.st.EnsureTag(ctx, f.account.ID, "news", idgen.New)
	if err != nil {
		t.Fatalf("ensure tag: %v", err)
	}
	if err := f.st.AddTagToFeed(ctx, fd.ID, tag.ID); err != nil {
		t.Fatalf("bind tag: %v", err)
	}

	f.poller.PollOnce(ctx)

	if got := countDocs(t, f.st); got != 2 {
		t.Fatalf("documents = %d, want 2", got)
	}

	rows, err := f.st.DB.Query(
		`SELECT id, origin_type, source_id FROM documents`)
	if err != nil {
		t.Fatalf("query docs: %v", err)
	}
	var docIDs []string
	for rows.Next() {
		var id, origin, sourceID string
		if err := rows.Scan(&id, &origin, &sourceID); err != nil {
			t.Fatalf("scan: %v", err)
		}
		if origin != store.OriginFeed || sourceID != fd.ID {
			t.Errorf("doc %s origin = %s/%s", id, origin, sourceID)
		}
		docIDs = append(docIDs, id)
	}
	// Close before querying tags: the test DB pool has a single connection,
	// and a query issued while rows are open would deadlock.
	rows.Close()
	for _, id := range docIDs {
		tags, err := f.st.ListTagsForDocument(ctx, id)
		if err != nil || len(tags) != 1 || tags[0].Name != "news" {
			t.Errorf("doc %s tags = %+v err=%v", id, tags, err)
		}
	}

	got, err := f.st.GetFeed(ctx, fd.ID)
	if err != nil || got == nil {
		t.Fatalf("get feed: %v", err)
	}
	if got.LastFetchedAt == nil || got.ErrorCount != 0 {
		t.Errorf("poll state not reset: %+v", got)
	}

	var successes int
	if err := f.st.DB.QueryRow(
		`SELECT COUNT(*) FROM ingestion_log WHERE channel='feed' AND status='success'`).Scan(&successes); err != nil {
		t.Fatalf("count log: %v", err)
	}
	if successes != 2 {
		t.Errorf("success log rows = %d, want 2", successes)
	}

	// The item with a cover candidate gets an image-cache job.
	var imageJobs int
	for _, j := range f.queue.jobs {
		if j.JobType == enrich.JobImageCache && j.URL == "https://t.example/1.jpg" {
			imageJobs++
		}
	}
	if imageJobs != 1 {
		t.Errorf("image-cache jobs = %d, want 1 (got %+v)", imageJobs, f.queue.jobs)
	}
}

// WHAT: Polling twice, where the second response decorates item URLs with
// tracking parameters and trailing slashes, yields 2 documents, not 4.
func TestPollOnce_URLNormalizationDedup(t *testing.T) {
	first := rssWith(`
<item><link>https://t.example/a</link><description>a</description></item>
<item><link>https://t.example/b</link><description>b</description></item>`)
	second := rssWith(`
<item><link>https://t.example/a?utm_source=feed&amp;utm_medium=rss</link><description>a</description></item>
<item><link>https://t.example/b/</link><description>b</description></item>`)

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			fmt.Fprint(w, first)
		} else {
			fmt.Fprint(w, second)
		}
	}))
	defer srv.Close()

	f := newPollFixture(t, Config{})
	fd := f.addFeed(t, srv.URL)
	ctx := context.Background()

	f.poller.PollOnce(ctx)
	if got := countDocs(t, f.st); got != 2 {
		t.Fatalf("after first poll: documents = %d, want 2", got)
	}

	// Force the feed due again.
	if _, err := f.st.DB.Exec(
		`UPDATE feeds SET last_fetched_at = 0 WHERE id = ?`, fd.ID); err != nil {
		t.Fatalf("reset: %v", err)
	}
	f.poller.PollOnce(ctx)

	if got := countDocs(t, f.st); got != 2 {
		t.Fatalf("after second poll: documents = %d, want 2 (tracking decoration must dedup)", got)
	}
}

// WHAT: A feed at error_count=4 that fails one more poll reaches 5 and is
// deactivated, keeping the last error for diagnosis.
func TestPollOnce_AutoDeactivation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := newPollFixture(t, Config{})
	fd := f.addFeed(t, srv.URL)
	ctx := context.Background()

	if _, err := f.st.DB.Exec(
		`UPDATE feeds SET error_count = 4 WHERE id = ?`, fd.ID); err != nil {
		t.Fatalf("seed error count: %v", err)
	}

	f.poller.PollOnce(ctx)

	got, err := f.st.GetFeed(ctx, fd.ID)
	if err != nil || got == nil {
		t.Fatalf("get feed: %v", err)
	}
	if got.ErrorCount != 5 {
		t.Errorf("error_count = %d, want 5", got.ErrorCount)
	}
	if got.IsActive {
		t.Error("feed should be deactivated")
	}
	if got.LastError == "" {
		t.Error("last_error should be retained")
	}
	if n := countDocs(t, f.st); n != 0 {
		t.Errorf("failed poll created %d documents", n)
	}
}

// WHAT: A 304 Not Modified counts as a successful fetch with zero new items.
func TestPollOnce_NotModified(t *testing.T) {
	payload := rssWith(`<item><link>https://t.example/1</link><description>x</description></item>`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		fmt.Fprint(w, payload)
	}))
	defer srv.Close()

	f := newPollFixture(t, Config{})
	fd := f.addFeed(t, srv.URL)
	ctx := context.Background()

	f.poller.PollOnce(ctx)
	if got := countDocs(t, f.st); got != 1 {
		t.Fatalf("documents = %d, want 1", got)
	}

	if _, err := f.st.DB.Exec(
		`UPDATE feeds SET last_fetched_at = 0 WHERE id = ?`, fd.ID); err != nil {
		t.Fatalf("reset: %v", err)
	}
	f.poller.PollOnce(ctx)

	got, err := f.st.GetFeed(ctx, fd.ID)
	if err != nil || got == nil {
		t.Fatalf("get feed: %v", err)
	}
	if got.ErrorCount != 0 {
		t.Errorf("304 should not count as an error, got %d", got.ErrorCount)
	}
	if got.LastFetchedAt == nil || *got.LastFetchedAt == 0 {
		t.Error("304 should still stamp last_fetched_at")
	}
	if n := countDocs(t, f.st); n != 1 {
		t.Errorf("documents = %d, want 1 after 304", n)
	}
}

// WHAT: The quality heuristic hands low-word-count items to the enrichment
// queue as content-enrichment jobs.
func TestPollOnce_LowQualityHandoff(t *testing.T) {
	payload := rssWith(`<item><link>https://t.example/thin</link><description>thin</description></item>`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, payload)
	}))
	defer srv.Close()

	f := newPollFixture(t, Config{LowQuality: MinWordCount(50)})
	f.addFeed(t, srv.URL)

	f.poller.PollOnce(context.Background())

	var contentJobs int
	for _, j := range f.queue.jobs {
		if j.JobType == enrich.JobContentEnrichment {
			contentJobs++
			if j.URL != "https://t.example/thin" || j.Source != enrich.SourceFeedpoll {
				t.Errorf("job = %+v", j)
			}
		}
	}
	if contentJobs != 1 {
		t.Fatalf("content-enrichment jobs = %d, want 1", contentJobs)
	}
}
