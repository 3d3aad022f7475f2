package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const driveFileURL = "https://drive.google.com/file/d/"

// DriveStore keeps attachments in Google Drive folders shared with "anyone".
type DriveStore struct {
	svc *drive.Service
}

// DriveCredentials holds a service account key as a file path or inline JSON.
// With neither set, application default credentials are used.
type DriveCredentials struct {
	File string
	JSON string
}

func NewDriveStore(ctx context.Context, creds DriveCredentials, opts ...option.ClientOption) (*DriveStore, error) {
	all := []option.ClientOption{option.WithScopes(drive.DriveScope)}
	switch {
	case strings.TrimSpace(creds.JSON) != "":
		all = append(all, option.WithCredentialsJSON([]byte(creds.JSON)))
	case creds.File != "":
		all = append(all, option.WithCredentialsFile(creds.File))
	}
	all = append(all, opts...)

	svc, err := drive.NewService(ctx, all...)
	if err != nil {
		return nil, err
	}
	return &DriveStore{svc: svc}, nil
}

func (d *DriveStore) CreateObject(ctx context.Context, name, mimeType string, r io.Reader) (string, error) {
	f, err := d.svc.Files.Create(&drive.File{Name: name, MimeType: mimeType}).
		Media(r, googleapi.ContentType(mimeType)).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	if f.Id == "" {
		return "", errors.New("drive: created file has no id")
	}
	return f.Id, nil
}

// SetParent replaces whatever parents Drive assigned on create with folderID.
func (d *DriveStore) SetParent(ctx context.Context, objectID, folderID string) (string, error) {
	if folderID == "" {
		return objectID, nil
	}

	cur, err := d.svc.Files.Get(objectID).
		Fields("parents").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}

	call := d.svc.Files.Update(objectID, &drive.File{}).
		AddParents(folderID).
		Fields("id, parents").
		SupportsAllDrives(true)
	if prev := without(cur.Parents, folderID); len(prev) > 0 {
		call = call.RemoveParents(strings.Join(prev, ","))
	}
	if _, err := call.Context(ctx).Do(); err != nil {
		return "", err
	}
	return objectID, nil
}

func (d *DriveStore) GrantPublicRead(ctx context.Context, objectID string) error {
	_, err := d.svc.Permissions.Create(objectID, &drive.Permission{Type: "anyone", Role: "reader"}).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	return err
}

func (d *DriveStore) PublicURL(objectID string) string {
	return driveFileURL + objectID + "/view"
}

func (d *DriveStore) DeleteObject(ctx context.Context, objectID string) error {
	return d.svc.Files.Delete(objectID).SupportsAllDrives(true).Context(ctx).Do()
}

func without(ids []string, drop string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
