package gmailsource

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"invoice-vault-go/internal/models"
	"invoice-vault-go/internal/scanner"
)

const pageSize = 100

// Source implements the scanner MailSource over the Gmail API.
type Source struct {
	service     *gmail.Service
	userEmail   string
	markerLabel string

	mu            sync.Mutex
	markerLabelID string
}

// New creates a Gmail mail source authenticated by the given token source.
func New(ctx context.Context, tokens oauth2.TokenSource, userEmail, markerLabel string) (*Source, error) {
	service, err := gmail.NewService(ctx, option.WithTokenSource(tokens))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &Source{
		service:     service,
		userEmail:   userEmail,
		markerLabel: markerLabel,
	}, nil
}

// Search lists candidate message ids for the query, excluding messages
// that already carry the processed marker label.
func (s *Source) Search(ctx context.Context, query string) ([]string, error) {
	q := fmt.Sprintf(`%s -label:"%s"`, query, s.markerLabel)

	var ids []string
	pageToken := ""
	for {
		call := s.service.Users.Messages.List(s.userEmail).Q(q).MaxResults(pageSize)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		response, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}

		for _, msg := range response.Messages {
			ids = append(ids, msg.Id)
		}
		if response.NextPageToken == "" {
			break
		}
		pageToken = response.NextPageToken
	}

	return ids, nil
}

// FetchDetails retrieves the full message and flattens it into the
// transient EmailDetails shape.
func (s *Source) FetchDetails(ctx context.Context, emailID string) (*models.EmailDetails, error) {
	msg, err := s.service.Users.Messages.Get(s.userEmail, emailID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	if msg.Payload == nil {
		return nil, scanner.ErrNoPayload
	}

	details := &models.EmailDetails{
		ID:   emailID,
		Date: time.UnixMilli(msg.InternalDate),
	}

	for _, header := range msg.Payload.Headers {
		switch strings.ToLower(header.Name) {
		case "subject":
			details.Subject = header.Value
		case "from":
			details.From = header.Value
		case "message-id":
			details.MessageID = header.Value
		}
	}

	collectAttachments(msg.Payload, details)
	return details, nil
}

// collectAttachments walks the MIME part tree in order and records every
// part that carries an attachment body.
func collectAttachments(part *gmail.MessagePart, details *models.EmailDetails) {
	if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
		details.Attachments = append(details.Attachments, models.AttachmentInfo{
			Filename:     part.Filename,
			AttachmentID: part.Body.AttachmentId,
			MIMEType:     part.MimeType,
			Size:         part.Body.Size,
		})
	}
	for _, sub := range part.Parts {
		collectAttachments(sub, details)
	}
}

// FetchAttachment downloads and decodes one attachment's raw bytes.
func (s *Source) FetchAttachment(ctx context.Context, emailID, attachmentID string) ([]byte, error) {
	att, err := s.service.Users.Messages.Attachments.Get(s.userEmail, emailID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}

	data, err := base64.URLEncoding.DecodeString(att.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode attachment data: %w", err)
	}
	return data, nil
}

// ApplyProcessedMarker attaches the marker label to the message, creating
// the label first if it does not exist yet. Both steps are idempotent.
func (s *Source) ApplyProcessedMarker(ctx context.Context, emailID string) error {
	labelID, err := s.ensureMarkerLabel(ctx)
	if err != nil {
		return err
	}

	req := &gmail.ModifyMessageRequest{AddLabelIds: []string{labelID}}
	if _, err := s.service.Users.Messages.Modify(s.userEmail, emailID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to apply marker label: %w", err)
	}
	return nil
}

func (s *Source) ensureMarkerLabel(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.markerLabelID != "" {
		return s.markerLabelID, nil
	}

	list, err := s.service.Users.Labels.List(s.userEmail).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to list labels: %w", err)
	}
	for _, label := range list.Labels {
		if label.Name == s.markerLabel {
			s.markerLabelID = label.Id
			return label.Id, nil
		}
	}

	created, err := s.service.Users.Labels.Create(s.userEmail, &gmail.Label{Name: s.markerLabel}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create label %q: %w", s.markerLabel, err)
	}

	logrus.Infof("Created marker label %q", s.markerLabel)
	s.markerLabelID = created.Id
	return created.Id, nil
}
