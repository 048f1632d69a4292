package imapsource

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"

	"invoice-vault-go/internal/models"
	"invoice-vault-go/internal/scanner"
)

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Config holds the IMAP connection settings.
type Config struct {
	Host        string
	Port        int
	User        string
	Password    string
	MarkerLabel string
}

// Source implements the scanner MailSource over IMAP. Messages are
// addressed by mailbox UID and the processed marker is an IMAP keyword
// flag, since IMAP has no labels.
type Source struct {
	client     *client.Client
	markerFlag string
}

// New connects and logs in to the IMAP server.
func New(cfg Config) (*Source, error) {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(cfg.User, cfg.Password); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	return &Source{
		client:     c,
		markerFlag: markerKeyword(cfg.MarkerLabel),
	}, nil
}

// markerKeyword reduces the configured marker label to a legal IMAP
// keyword atom.
func markerKeyword(label string) string {
	return "$" + nonAlnum.ReplaceAllString(label, "")
}

// Search returns the UIDs of inbox messages not yet carrying the marker
// keyword. IMAP cannot evaluate the Gmail-style query string; candidate
// filtering beyond the marker happens in the pipeline.
func (s *Source) Search(ctx context.Context, query string) ([]string, error) {
	_ = query

	if _, err := s.client.Select("INBOX", false); err != nil {
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{s.markerFlag}

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}

	ids := make([]string, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, strconv.FormatUint(uint64(uid), 10))
	}
	return ids, nil
}

// FetchDetails downloads the full message and lists its attachments.
// Attachment ids are the 1-based position of the attachment within the
// message, and sizes are unknown (0) until the attachment is fetched.
func (s *Source) FetchDetails(ctx context.Context, emailID string) (*models.EmailDetails, error) {
	uid, msg, err := s.fetchMessage(emailID)
	if err != nil {
		return nil, err
	}

	details := &models.EmailDetails{ID: strconv.FormatUint(uint64(uid), 10)}
	if msg.Envelope != nil {
		details.Subject = msg.Envelope.Subject
		details.MessageID = msg.Envelope.MessageId
		details.Date = msg.Envelope.Date
		if len(msg.Envelope.From) > 0 {
			details.From = msg.Envelope.From[0].Address()
		}
	}

	reader, err := s.openBody(msg)
	if err != nil {
		return nil, err
	}

	index := 0
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read message part: %w", err)
		}

		header, ok := part.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		index++

		filename, _ := header.Filename()
		mimeType, _, _ := header.ContentType()
		details.Attachments = append(details.Attachments, models.AttachmentInfo{
			Filename:     filename,
			AttachmentID: strconv.Itoa(index),
			MIMEType:     mimeType,
		})
	}

	return details, nil
}

// FetchAttachment refetches the message and extracts the attachment at the
// given position.
func (s *Source) FetchAttachment(ctx context.Context, emailID, attachmentID string) ([]byte, error) {
	want, err := strconv.Atoi(attachmentID)
	if err != nil {
		return nil, fmt.Errorf("invalid attachment id %q: %w", attachmentID, err)
	}

	_, msg, err := s.fetchMessage(emailID)
	if err != nil {
		return nil, err
	}

	reader, err := s.openBody(msg)
	if err != nil {
		return nil, err
	}

	index := 0
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read message part: %w", err)
		}

		if _, ok := part.Header.(*mail.AttachmentHeader); !ok {
			continue
		}
		index++
		if index != want {
			continue
		}

		data, err := io.ReadAll(part.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read attachment body: %w", err)
		}
		return data, nil
	}

	return nil, fmt.Errorf("attachment %s not found", attachmentID)
}

// ApplyProcessedMarker sets the marker keyword on the message. Setting an
// already-present flag is a no-op on the server.
func (s *Source) ApplyProcessedMarker(ctx context.Context, emailID string) error {
	uid, err := parseUID(emailID)
	if err != nil {
		return err
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := s.client.UidStore(seqset, item, []interface{}{s.markerFlag}, nil); err != nil {
		return fmt.Errorf("failed to set marker flag: %w", err)
	}
	return nil
}

// Close logs out of the IMAP session.
func (s *Source) Close() error {
	return s.client.Logout()
}

func (s *Source) fetchMessage(emailID string) (uint32, *imap.Message, error) {
	uid, err := parseUID(emailID)
	if err != nil {
		return 0, nil, err
	}

	if _, err := s.client.Select("INBOX", false); err != nil {
		return 0, nil, fmt.Errorf("failed to select INBOX: %w", err)
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, section.FetchItem(), imap.FetchUid}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqset, items, messages)
	}()

	var msg *imap.Message
	for m := range messages {
		msg = m
	}
	if err := <-done; err != nil {
		return 0, nil, fmt.Errorf("failed to fetch message: %w", err)
	}
	if msg == nil {
		return 0, nil, fmt.Errorf("message %s not found", emailID)
	}
	return uid, msg, nil
}

func (s *Source) openBody(msg *imap.Message) (*mail.Reader, error) {
	section := &imap.BodySectionName{}
	body := msg.GetBody(section)
	if body == nil {
		return nil, scanner.ErrNoPayload
	}

	reader, err := mail.CreateReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	return reader, nil
}

func parseUID(emailID string) (uint32, error) {
	uid, err := strconv.ParseUint(emailID, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid message uid %q: %w", emailID, err)
	}
	return uint32(uid), nil
}
