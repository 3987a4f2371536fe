// CLAUDE:SUMMARY Email ingestion orchestrator: bounded retry loop around parse → dedup → validate → persist → tag → log.
// Package mailroom runs the end-to-end pipeline for one inbound email.
//
// The document identifier and event identifier are allocated before the
// retry loop starts and never regenerated inside it: every retry of the same
// logical event converges on the same document. Each invocation is stateless;
// all coordination with concurrent redeliveries goes through the store's
// insert-or-ignore unique keys.
package mailroom

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/courrier/blobstore"
	"github.com/hazyhaar/courrier/idgen"
	"github.com/hazyhaar/courrier/identity"
	"github.com/hazyhaar/courrier/mailparse"
	"github.com/hazyhaar/courrier/markup"
	"github.com/hazyhaar/courrier/store"
)

// Pipeline error codes recorded in the ingestion log.
const (
	codeRoutingError  = "routing_error"
	codeParseError    = "parse_error"
	codePipelineError = "pipeline_error"
)

// Result is the outcome of one successfully ingested message.
type Result struct {
	DocumentID string
	EventID    string
	// Deduplicated is true when the message matched an existing document and
	// only its delivery-attempt counter was bumped.
	Deduplicated bool
}

// Service ingests inbound email.
type Service struct {
	cfg    Config
	st     *store.Store
	blobs  blobstore.Store
	render *markup.Renderer
	logger *slog.Logger

	newDocID   idgen.Generator
	newEventID idgen.Generator
	newID      idgen.Generator
	sleep      func(time.Duration)
}

// New creates the email ingestion service. logger may be nil.
func New(cfg Config, st *store.Store, blobs blobstore.Store, logger *slog.Logger) *Service {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:        cfg,
		st:         st,
		blobs:      blobs,
		render:     markup.New(),
		logger:     logger,
		newDocID:   idgen.Prefixed("doc_", idgen.Default),
		newEventID: idgen.Prefixed("evt_", idgen.Default),
		newID:      idgen.Default,
		sleep:      time.Sleep,
	}
}

// event carries the per-delivery identifiers fixed before the retry loop.
type event struct {
	docID   string
	eventID string
	raw     []byte
	route   *route
}

// Ingest processes one inbound message addressed to recipient. raw is the
// full message, already read from the transport.
//
// Routing failures are terminal and logged immediately. Everything else runs
// inside a bounded retry loop; exhausting it writes a single failure log row.
func (s *Service) Ingest(ctx context.Context, recipient string, raw []byte) (*Result, error) {
	ev := &event{
		docID:   s.newDocID(),
		eventID: s.newEventID(),
		raw:     raw,
	}
	logger := s.logger.With(
		slog.String("event_id", ev.eventID),
		slog.String("recipient", recipient))

	rt, err := s.resolveRoute(ctx, recipient)
	if err != nil {
		logger.Warn("routing failed", slog.String("error", err.Error()))
		s.logFailure(ctx, ev, codeRoutingError, err)
		return nil, err
	}
	ev.route = rt

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			// attempt²×100ms after the failure of attempt N: 100, 400, 900ms.
			n := attempt - 1
			s.sleep(time.Duration(n*n) * 100 * time.Millisecond)
		}

		res, err := s.runAttempt(ctx, ev)
		if err == nil {
			logger.Info("message ingested",
				slog.String("document_id", res.DocumentID),
				slog.Bool("deduplicated", res.Deduplicated),
				slog.Int("attempt", attempt))
			return res, nil
		}
		lastErr = err
		logger.Warn("ingestion attempt failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		if errors.Is(err, mailparse.ErrMalformed) {
			// Structurally unparseable bytes stay unparseable.
			break
		}
	}

	code := codePipelineError
	if errors.Is(lastErr, mailparse.ErrMalformed) {
		code = codeParseError
	}
	s.logFailure(ctx, ev, code, lastErr)
	return nil, lastErr
}

// runAttempt executes one pass of the pipeline. Safe to call again after a
// partial failure: completed steps short-circuit on re-entry.
func (s *Service) runAttempt(ctx context.Context, ev *event) (*Result, error) {
	email, err := mailparse.Parse(ev.raw)
	if err != nil {
		return nil, err
	}

	// The fingerprint is the dedup key only when no native identifier
	// exists; HTML-only bodies feed the hash so distinct content stays
	// distinct.
	fingerprint := identity.Fingerprint(
		ev.route.address, email.From.Address, email.Subject, email.Date, email.BodyText())

	if res, err := s.dedup(ctx, ev, email.MessageID, fingerprint); res != nil || err != nil {
		return res, err
	}

	outcome, err := s.validate(ctx, email)
	if err != nil {
		return nil, err
	}
	needsConfirmation := s.isConfirmation(email)

	// A fully completed earlier attempt leaves a document with its metadata
	// attached; nothing more to write.
	existing, err := s.st.GetDocument(ctx, ev.docID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		meta, err := s.st.GetEmailMeta(ctx, ev.docID)
		if err != nil {
			return nil, err
		}
		if meta != nil {
			s.logSuccess(ctx, ev, ev.docID)
			return &Result{DocumentID: ev.docID, EventID: ev.eventID}, nil
		}
	}

	sanitized := s.render.Sanitize(email.HTML)
	resolved := s.resolveAttachments(ctx, ev.docID, email.Attachments)
	rewritten := markup.RewriteCIDReferences(sanitized, ev.docID, resolved)

	var contentMD string
	if strings.TrimSpace(rewritten) != "" {
		contentMD = s.render.ToMarkdown(rewritten)
	} else {
		contentMD = strings.TrimSpace(email.Text)
	}
	words := markup.WordCount(contentMD)
	cover := coverCandidate(email.Attachments, resolved)

	sub, err := s.ensureSubscription(ctx, ev.route, email)
	if err != nil {
		return nil, err
	}

	author := email.From.Name
	if author == "" {
		author = email.From.Address
	}
	doc := &store.Document{
		ID:             ev.docID,
		AccountID:      ev.route.account.ID,
		ContentType:    "email",
		Title:          email.Subject,
		Author:         author,
		ContentHTML:    rewritten,
		ContentMD:      contentMD,
		WordCount:      words,
		ReadingTimeMin: markup.ReadingTime(words),
		CoverImageKey:  cover,
		SourceID:       sub.ID,
		OriginType:     store.OriginSubscription,
	}
	created, err := s.st.InsertDocumentIfAbsent(ctx, doc)
	if err != nil {
		return nil, err
	}
	if !created && cover != "" {
		// The row predates this attempt's upload pass; attach the cover now.
		if err := s.st.SetCoverImage(ctx, ev.docID, cover); err != nil {
			return nil, err
		}
	}

	meta := &store.EmailMeta{
		DocumentID:        ev.docID,
		SenderAddress:     strings.ToLower(email.From.Address),
		SenderName:        email.From.Name,
		IsRejected:        outcome.rejected,
		RejectionReason:   outcome.reason,
		NeedsConfirmation: needsConfirmation,
		DeliveryAttempts:  1,
	}
	if email.MessageID != "" {
		meta.MessageID = &email.MessageID
	} else {
		meta.Fingerprint = &fingerprint
	}
	if _, err := s.st.InsertEmailMeta(ctx, meta); err != nil {
		return nil, err
	}

	if err := s.writeAttachmentRows(ctx, ev.docID, email.Attachments, resolved); err != nil {
		return nil, err
	}
	if err := s.applyTags(ctx, ev, sub, email, doc); err != nil {
		return nil, err
	}

	s.logSuccess(ctx, ev, ev.docID)
	return &Result{DocumentID: ev.docID, EventID: ev.eventID}, nil
}

// dedup short-circuits the common redelivery case: lookup by native message
// identifier first, by content fingerprint when no identifier exists. A hit
// bumps the existing document's delivery counter and logs success.
func (s *Service) dedup(ctx context.Context, ev *event, messageID, fingerprint string) (*Result, error) {
	var meta *store.EmailMeta
	var err error
	if messageID != "" {
		meta, err = s.st.GetEmailMetaByMessageID(ctx, messageID)
	} else {
		meta, err = s.st.GetEmailMetaByFingerprint(ctx, fingerprint)
	}
	if err != nil {
		return nil, err
	}
	if meta == nil || meta.DocumentID == ev.docID {
		return nil, nil
	}

	if err := s.st.IncrementDeliveryAttempts(ctx, meta.DocumentID); err != nil {
		return nil, err
	}
	s.logSuccess(ctx, ev, meta.DocumentID)
	return &Result{DocumentID: meta.DocumentID, EventID: ev.eventID, Deduplicated: true}, nil
}

// ensureSubscription resolves the subscription for the recipient
// pseudo-address, auto-creating it on first contact.
func (s *Service) ensureSubscription(ctx context.Context, rt *route, email *mailparse.Email) (*store.Subscription, error) {
	sub, err := s.st.GetSubscriptionByAddress(ctx, rt.account.ID, rt.address)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		return sub, nil
	}

	name := email.From.Name
	if name == "" {
		name = email.From.Address
	}
	if _, err := s.st.InsertSubscription(ctx, &store.Subscription{
		ID:        s.newID(),
		AccountID: rt.account.ID,
		Address:   rt.address,
		Name:      name,
	}); err != nil {
		return nil, err
	}
	// Re-read: a concurrent first delivery may have won the unique key.
	sub, err = s.st.GetSubscriptionByAddress(ctx, rt.account.ID, rt.address)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, errors.New("mailroom: subscription vanished after create")
	}
	return sub, nil
}

// writeAttachmentRows records every extracted part, including parts whose
// upload failed (storage_key stays null so metadata survives). A retry that
// finds rows already written skips the step.
func (s *Service) writeAttachmentRows(ctx context.Context, documentID string, atts []mailparse.Attachment, resolved map[string]string) error {
	if len(atts) == 0 {
		return nil
	}
	n, err := s.st.CountAttachmentsForDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for _, a := range atts {
		row := &store.Attachment{
			ID:          s.newID(),
			DocumentID:  documentID,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			SizeBytes:   int64(len(a.Data)),
		}
		if a.ContentID != "" {
			cid := a.ContentID
			row.ContentID = &cid
			if key, ok := resolved[a.ContentID]; ok {
				row.StorageKey = &key
			}
		}
		if err := s.st.InsertAttachment(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// applyTags attaches, in order: auto-tag rule matches, the subscription's
// inherited tags, and the routing-derived inline tag. All binds are
// idempotent.
func (s *Service) applyTags(ctx context.Context, ev *event, sub *store.Subscription, email *mailparse.Email, doc *store.Document) error {
	rules, err := s.st.ListAutoTagRules(ctx, sub.ID)
	if err != nil {
		return err
	}
	if len(rules) > 0 {
		haystack := strings.ToLower(strings.Join([]string{
			doc.Title, doc.Author, doc.ContentMD, email.From.Address}, "\n"))
		for _, r := range rules {
			if r.Pattern == "" {
				continue
			}
			if strings.Contains(haystack, strings.ToLower(r.Pattern)) {
				if err := s.st.AddTagToDocument(ctx, doc.ID, r.TagID); err != nil {
					return err
				}
			}
		}
	}

	inherited, err := s.st.ListTagsForSubscription(ctx, sub.ID)
	if err != nil {
		return err
	}
	for _, t := range inherited {
		if err := s.st.AddTagToDocument(ctx, doc.ID, t.ID); err != nil {
			return err
		}
	}

	if ev.route.tagToken != "" {
		t, err := s.st.EnsureTag(ctx, ev.route.account.ID, ev.route.tagToken, s.newID)
		if err != nil {
			return err
		}
		if err := s.st.AddTagToDocument(ctx, doc.ID, t.ID); err != nil {
			return err
		}
	}
	return nil
}

// logSuccess appends a success row. Best-effort: audit failures never mask
// pipeline outcomes.
func (s *Service) logSuccess(ctx context.Context, ev *event, documentID string) {
	err := s.st.LogIngestion(ctx, &store.IngestionLogEntry{
		ID:         s.newID(),
		EventID:    ev.eventID,
		DocumentID: &documentID,
		Channel:    store.ChannelEmail,
		Status:     store.StatusSuccess,
	})
	if err != nil {
		s.logger.Warn("ingestion log write failed", slog.String("error", err.Error()))
	}
}

// logFailure appends the single failure row written after retry exhaustion
// or a terminal error. Best-effort.
func (s *Service) logFailure(ctx context.Context, ev *event, code string, cause error) {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	err := s.st.LogIngestion(ctx, &store.IngestionLogEntry{
		ID:          s.newID(),
		EventID:     ev.eventID,
		Channel:     store.ChannelEmail,
		Status:      store.StatusFailure,
		ErrorCode:   code,
		ErrorDetail: detail,
	})
	if err != nil {
		s.logger.Warn("ingestion log write failed", slog.String("error", err.Error()))
	}
}
