package drivesink

import (
	"bytes"
	"context"
	"fmt"

	"golang.org/x/oauth2"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"invoice-vault-go/internal/models"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Archive implements the scanner ArchiveSink on Google Drive.
type Archive struct {
	service *drive.Service
}

// New creates a Drive archive sink authenticated by the given token source.
func New(ctx context.Context, tokens oauth2.TokenSource) (*Archive, error) {
	service, err := drive.NewService(ctx, option.WithTokenSource(tokens))
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}
	return &Archive{service: service}, nil
}

// EnsureContainer finds the named folder or creates it, returning its id.
func (a *Archive) EnsureContainer(ctx context.Context, name string) (string, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", name, folderMimeType)
	list, err := a.service.Files.List().Q(q).Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to search for folder %q: %w", name, err)
	}
	if len(list.Files) > 0 {
		return list.Files[0].Id, nil
	}

	folder := &drive.File{
		Name:     name,
		MimeType: folderMimeType,
	}
	created, err := a.service.Files.Create(folder).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create folder %q: %w", name, err)
	}
	return created.Id, nil
}

// Store uploads the document bytes under the generated filename and
// returns the stable file reference.
func (a *Archive) Store(ctx context.Context, data []byte, filename, mimeType, containerID string) (*models.ArchiveRef, error) {
	file := &drive.File{
		Name:    filename,
		Parents: []string{containerID},
	}

	created, err := a.service.Files.Create(file).
		Media(bytes.NewReader(data), googleapi.ContentType(mimeType)).
		Fields("id, webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to upload %q: %w", filename, err)
	}

	return &models.ArchiveRef{
		ID:  created.Id,
		URL: created.WebViewLink,
	}, nil
}
