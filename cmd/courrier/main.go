// CLAUDE:SUMMARY Entry point for the courrier ingestion service — chi router, email webhook, feed poller, enrichment consumer.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hazyhaar/courrier/blobstore"
	"github.com/hazyhaar/courrier/dbopen"
	"github.com/hazyhaar/courrier/enrich"
	"github.com/hazyhaar/courrier/feedpoll"
	"github.com/hazyhaar/courrier/mailroom"
	"github.com/hazyhaar/courrier/store"
	_ "modernc.org/sqlite"
)

// maxMessageBytes bounds one inbound email webhook body.
const maxMessageBytes = 50 * 1024 * 1024

func main() {
	configPath := env("COURRIER_CONFIG", "courrier.yaml")
	cfg, err := LoadConfig(configPath)
	if errors.Is(err, os.ErrNotExist) {
		// No config file: run on defaults.
		cfg = DefaultConfig()
	} else if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := dbopen.Open(cfg.DBPath)
	if err != nil {
		slog.Error("open db", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := store.ApplySchema(db); err != nil {
		slog.Error("apply schema", "error", err)
		os.Exit(1)
	}
	st := store.New(db)

	blobs, err := blobstore.NewFS(cfg.BlobDir)
	if err != nil {
		slog.Error("blobstore", "error", err)
		os.Exit(1)
	}

	queue := enrich.NewQueue(db, enrich.QueueOptions{Logger: logger})
	if err := queue.EnsureTable(ctx); err != nil {
		slog.Error("queue table", "error", err)
		os.Exit(1)
	}

	mail := mailroom.New(cfg.Mailroom, st, blobs, logger)

	pollCfg := feedpoll.Config{
		CheckInterval: time.Duration(cfg.Feedpoll.CheckIntervalSeconds) * time.Second,
		Fetch: feedpoll.FetchConfig{
			Timeout:  time.Duration(cfg.Feedpoll.FetchTimeoutSeconds) * time.Second,
			MaxBytes: int64(cfg.Feedpoll.MaxBytes),
		},
	}
	if cfg.Feedpoll.MinWordCount > 0 {
		pollCfg.LowQuality = feedpoll.MinWordCount(cfg.Feedpoll.MinWordCount)
	}
	poller := feedpoll.NewPoller(pollCfg, st, queue, logger)
	go poller.Run(ctx)

	consumer := enrich.NewConsumer(cfg.Enrich, st, blobs, logger)
	go queue.Run(ctx, consumer.Handle)

	r := chi.NewRouter()
	r.Post("/ingest/email", ingestEmailHandler(mail, logger))
	r.Get("/api/attachments/{documentID}/{contentID}", attachmentHandler(blobs))

	srv := &http.Server{Addr: cfg.Listen, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("courrier listening", "addr", cfg.Listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("serve", "error", err)
		os.Exit(1)
	}
}

// ingestEmailHandler accepts one raw message per request. The recipient
// comes from the envelope, passed as the "recipient" query parameter or the
// X-Recipient header by the inbound MTA hook.
func ingestEmailHandler(mail *mailroom.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recipient := r.URL.Query().Get("recipient")
		if recipient == "" {
			recipient = r.Header.Get("X-Recipient")
		}
		if recipient == "" {
			http.Error(w, "missing recipient", http.StatusBadRequest)
			return
		}

		// The transport stream is single-consumption: read it once, up front.
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxMessageBytes))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		res, err := mail.Ingest(r.Context(), recipient, raw)
		if err != nil {
			if errors.Is(err, mailroom.ErrNoRoute) {
				http.Error(w, "no route", http.StatusNotFound)
				return
			}
			http.Error(w, "ingestion failed", http.StatusInternalServerError)
			return
		}

		status := http.StatusCreated
		if res.Deduplicated {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(ingestResponse{
			DocumentID: res.DocumentID,
			EventID:    res.EventID,
		})
	}
}

type ingestResponse struct {
	DocumentID string `json:"document_id"`
	EventID    string `json:"event_id"`
}

// attachmentHandler serves stored attachment payloads with their recorded
// content type.
func attachmentHandler(blobs blobstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		documentID := chi.URLParam(r, "documentID")
		contentID, err := url.PathUnescape(chi.URLParam(r, "contentID"))
		if err != nil {
			http.Error(w, "bad content id", http.StatusBadRequest)
			return
		}

		obj, err := blobs.Get(r.Context(), blobstore.AttachmentKey(documentID, contentID))
		if errors.Is(err, blobstore.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			http.Error(w, "storage error", http.StatusInternalServerError)
			return
		}

		if obj.ContentType != "" {
			w.Header().Set("Content-Type", obj.ContentType)
		}
		w.Write(obj.Data)
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
