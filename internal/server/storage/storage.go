// Package storage keeps user profile images. Each user owns one folder,
// named after the username, holding <username>.jpg.
package storage

import (
	"context"
	"net/http"
)

// ImageStore persists profile images by username. Load returns
// common.ErrorNotFound for missing files.
type ImageStore interface {
	Save(ctx context.Context, username string, data []byte) error
	Load(ctx context.Context, username, fileName string) ([]byte, string, error)
	DeleteAll(ctx context.Context, username string) error
}

// ProfileFileName is the file name under which a user's image is stored.
func ProfileFileName(username string) string {
	return username + ".jpg"
}

// contentType sniffs the stored bytes; images are always saved as .jpg even
// when the upload was a PNG or GIF.
func contentType(data []byte) string {
	return http.DetectContentType(data)
}
