// CLAUDE:SUMMARY Attachment resolution: per-part upload to deterministic keys, partial success, cover candidate selection.
package mailroom

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/courrier/blobstore"
	"github.com/hazyhaar/courrier/mailparse"
)

// resolveAttachments uploads every content-addressed part to its
// deterministic key and returns contentID → storageKey for the parts that
// made it. A single part's upload failure is skipped, never propagated: the
// document must still be created when object storage is degraded. Keys are
// deterministic, so a retry overwrites the previous attempt's object.
func (s *Service) resolveAttachments(ctx context.Context, documentID string, atts []mailparse.Attachment) map[string]string {
	resolved := make(map[string]string)
	for _, a := range atts {
		if a.ContentID == "" {
			continue
		}
		key := blobstore.AttachmentKey(documentID, a.ContentID)
		if err := s.blobs.Put(ctx, key, a.Data, a.ContentType); err != nil {
			s.logger.Warn("attachment upload failed, skipping part",
				slog.String("document_id", documentID),
				slog.String("content_id", a.ContentID),
				slog.String("error", err.Error()))
			continue
		}
		resolved[a.ContentID] = key
	}
	return resolved
}

// coverCandidate returns the storage key of the first image-typed attachment
// whose upload succeeded, in original part order. Empty when none qualifies.
func coverCandidate(atts []mailparse.Attachment, resolved map[string]string) string {
	for _, a := range atts {
		if !a.IsImage() || a.ContentID == "" {
			continue
		}
		if key, ok := resolved[a.ContentID]; ok {
			return key
		}
	}
	return ""
}
