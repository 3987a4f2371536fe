// CLAUDE:SUMMARY Object storage contract for attachment payloads, keyed attachments/{documentID}/{contentID}.
// Package blobstore stores attachment payloads outside the relational store.
//
// Keys are deterministic — attachments/{documentID}/{contentID} — so a retry
// that re-uploads a part overwrites the previous attempt's object instead of
// leaking an orphan.
package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no stored object.
var ErrNotFound = errors.New("blobstore: object not found")

// Object is a stored payload with its content type.
type Object struct {
	Data        []byte
	ContentType string
}

// Store is the object storage contract.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (*Object, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// AttachmentKey builds the deterministic storage key for an attachment part.
func AttachmentKey(documentID, contentID string) string {
	return "attachments/" + documentID + "/" + contentID
}
