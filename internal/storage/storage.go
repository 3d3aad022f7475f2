package storage

import (
	"context"
	"io"
)

// ObjectStore is the file host behind form attachments. An upload is three
// calls (create, move into a folder, share publicly); the intake pipeline
// drives them in that order so a stored record never points at a private file.
type ObjectStore interface {
	CreateObject(ctx context.Context, name, mimeType string, r io.Reader) (objectID string, err error)
	// SetParent moves the object into folderID and returns its id afterwards,
	// which differs from the input for stores that address objects by path.
	SetParent(ctx context.Context, objectID, folderID string) (string, error)
	GrantPublicRead(ctx context.Context, objectID string) error
	// PublicURL is derived from the object id alone.
	PublicURL(objectID string) string
	DeleteObject(ctx context.Context, objectID string) error
}
