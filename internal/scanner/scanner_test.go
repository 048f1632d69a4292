package scanner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"invoice-vault-go/internal/metrics"
	"invoice-vault-go/internal/models"
)

// testMetrics is shared because promauto registers globally.
var testMetrics = metrics.NewMetrics()

type fakeMail struct {
	searchResults []string
	searchErr     error
	emails        map[string]*models.EmailDetails
	attachments   map[string][]byte
	attachmentErr map[string]error
	marked        []string
	markErr       error
}

func (f *fakeMail) Search(ctx context.Context, query string) ([]string, error) {
	return f.searchResults, f.searchErr
}

func (f *fakeMail) FetchDetails(ctx context.Context, emailID string) (*models.EmailDetails, error) {
	details, ok := f.emails[emailID]
	if !ok {
		return nil, fmt.Errorf("unknown email %s", emailID)
	}
	return details, nil
}

func (f *fakeMail) FetchAttachment(ctx context.Context, emailID, attachmentID string) ([]byte, error) {
	if err := f.attachmentErr[emailID]; err != nil {
		return nil, err
	}
	data, ok := f.attachments[emailID+"/"+attachmentID]
	if !ok {
		return nil, fmt.Errorf("unknown attachment %s on %s", attachmentID, emailID)
	}
	return data, nil
}

func (f *fakeMail) ApplyProcessedMarker(ctx context.Context, emailID string) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.marked = append(f.marked, emailID)
	return nil
}

type storedFile struct {
	filename string
	mimeType string
	size     int
}

type fakeArchive struct {
	ensureErr error
	stored    []storedFile
}

func (f *fakeArchive) EnsureContainer(ctx context.Context, name string) (string, error) {
	if f.ensureErr != nil {
		return "", f.ensureErr
	}
	return "folder-1", nil
}

func (f *fakeArchive) Store(ctx context.Context, data []byte, filename, mimeType, containerID string) (*models.ArchiveRef, error) {
	f.stored = append(f.stored, storedFile{filename: filename, mimeType: mimeType, size: len(data)})
	return &models.ArchiveRef{
		ID:  fmt.Sprintf("file-%d", len(f.stored)),
		URL: fmt.Sprintf("https://drive.example/file-%d", len(f.stored)),
	}, nil
}

type fakeLedger struct {
	ensureErr error
	rows      [][]string
}

func (f *fakeLedger) EnsureLedger(ctx context.Context, name string) (string, error) {
	if f.ensureErr != nil {
		return "", f.ensureErr
	}
	return "sheet-1", nil
}

func (f *fakeLedger) AppendRow(ctx context.Context, ledgerID string, row []string) (int64, error) {
	f.rows = append(f.rows, row)
	return int64(len(f.rows) + 1), nil // row 1 is the header
}

type fakeStore struct {
	processed map[string]struct{}
	runs      []*models.ScanRun
	docs      []*models.ProcessedDocument
	finishErr error
}

func (f *fakeStore) CreateRun(run *models.ScanRun) error {
	run.ID = uint(len(f.runs) + 1)
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeStore) FinishRun(run *models.ScanRun) error {
	return f.finishErr
}

func (f *fakeStore) ProcessedEmailIDs() (map[string]struct{}, error) {
	if f.processed == nil {
		return map[string]struct{}{}, nil
	}
	return f.processed, nil
}

func (f *fakeStore) CreateDocument(doc *models.ProcessedDocument) error {
	f.docs = append(f.docs, doc)
	return nil
}

func testEmail(id, from, subject string, atts ...models.AttachmentInfo) *models.EmailDetails {
	return &models.EmailDetails{
		ID:          id,
		MessageID:   "<" + id + "@example.com>",
		Subject:     subject,
		From:        from,
		Date:        time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
		Attachments: atts,
	}
}

func newTestOrchestrator(mail *fakeMail, archive *fakeArchive, ledger *fakeLedger, store *fakeStore) *Orchestrator {
	o := NewOrchestrator(mail, archive, ledger, store, testMetrics, Config{
		Query:         "has:attachment invoice",
		ArchiveFolder: "Invoice Vault",
		LedgerName:    "Invoice Vault Ledger",
	})
	o.now = func() time.Time { return time.Date(2024, 3, 16, 9, 0, 0, 0, time.UTC) }
	return o
}

func TestRunScanProcessesNewEmails(t *testing.T) {
	mail := &fakeMail{
		searchResults: []string{"e1"},
		emails: map[string]*models.EmailDetails{
			"e1": testEmail("e1", "Acme Billing <billing@acme.com>", "Invoice #4821 - March",
				models.AttachmentInfo{Filename: "invoice.pdf", AttachmentID: "a1", MIMEType: "application/pdf", Size: 1536}),
		},
		attachments: map[string][]byte{"e1/a1": []byte("%PDF-")},
	}
	archive := &fakeArchive{}
	ledger := &fakeLedger{}
	store := &fakeStore{}

	result, err := newTestOrchestrator(mail, archive, ledger, store).RunScan(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.Len(t, result.Documents, 1)
	assert.Empty(t, result.Errors)

	assert.Equal(t, "billing_INV4821_2024-03-15.pdf", result.Documents[0].Filename)
	assert.Equal(t, "file-1", result.Documents[0].ArchiveID)
	if assert.NotNil(t, result.Documents[0].LedgerRow) {
		assert.Equal(t, int64(2), *result.Documents[0].LedgerRow)
	}

	// Ledger row carries the derived fields in order.
	if assert.Len(t, ledger.rows, 1) {
		row := ledger.rows[0]
		assert.Len(t, row, 10)
		assert.Equal(t, "2024-03-16", row[0])
		assert.Equal(t, "2024-03-15", row[1])
		assert.Equal(t, "billing@acme.com", row[2])
		assert.Equal(t, "Acme Billing", row[3])
		assert.Equal(t, "INV4821", row[5])
		assert.Equal(t, "1.5 KB", row[9])
	}

	// Document record persisted with terminal status.
	if assert.Len(t, store.docs, 1) {
		doc := store.docs[0]
		assert.Equal(t, "e1", doc.EmailID)
		assert.Equal(t, models.DocumentStatusCompleted, doc.Status)
		if assert.NotNil(t, doc.InvoiceNumber) {
			assert.Equal(t, "INV4821", *doc.InvoiceNumber)
		}
	}

	assert.Equal(t, []string{"e1"}, mail.marked)

	run := store.runs[0]
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.EmailsProcessed)
	assert.Equal(t, 1, run.DocumentsProcessed)
	assert.Equal(t, 0, run.ErrorsCount)
	assert.Nil(t, run.ErrorDetail)
	assert.NotNil(t, run.CompletedAt)
}

func TestRunScanIsIdempotent(t *testing.T) {
	mail := &fakeMail{searchResults: []string{"e1", "e2"}}
	store := &fakeStore{processed: map[string]struct{}{"e1": {}, "e2": {}}}

	result, err := newTestOrchestrator(mail, &fakeArchive{}, &fakeLedger{}, store).RunScan(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, result.ProcessedCount)
	assert.Empty(t, result.Documents)
	assert.Empty(t, result.Errors)

	run := store.runs[0]
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 0, run.EmailsProcessed)
	assert.Equal(t, 0, run.DocumentsProcessed)
	assert.Equal(t, 0, run.ErrorsCount)
}

func TestRunScanIsolatesEmailFailures(t *testing.T) {
	attachment := models.AttachmentInfo{Filename: "doc.pdf", AttachmentID: "a1", MIMEType: "application/pdf", Size: 100}
	mail := &fakeMail{
		searchResults: []string{"e1", "e2", "e3"},
		emails: map[string]*models.EmailDetails{
			"e1": testEmail("e1", "a@one.com", "Invoice #1001", attachment),
			"e2": testEmail("e2", "b@two.com", "Invoice #1002", attachment),
			"e3": testEmail("e3", "c@three.com", "Invoice #1003", attachment),
		},
		attachments: map[string][]byte{
			"e1/a1": []byte("x"),
			"e3/a1": []byte("y"),
		},
		attachmentErr: map[string]error{"e2": errors.New("download timed out")},
	}
	store := &fakeStore{}

	result, err := newTestOrchestrator(mail, &fakeArchive{}, &fakeLedger{}, store).RunScan(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, result.ProcessedCount)
	assert.Len(t, result.Documents, 2)

	if assert.Len(t, result.Errors, 1) {
		assert.Contains(t, result.Errors[0], "e2: ")
		assert.Contains(t, result.Errors[0], `"doc.pdf"`)
	}

	// Documents for the surviving emails were persisted and marked.
	assert.Len(t, store.docs, 2)
	assert.Equal(t, []string{"e1", "e3"}, mail.marked)

	run := store.runs[0]
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.EmailsProcessed)
	assert.Equal(t, 1, run.ErrorsCount)
	if assert.NotNil(t, run.ErrorDetail) {
		assert.Contains(t, *run.ErrorDetail, "e2")
	}
}

func TestRunScanSkipsNonDocumentAttachments(t *testing.T) {
	mail := &fakeMail{
		searchResults: []string{"e1"},
		emails: map[string]*models.EmailDetails{
			"e1": testEmail("e1", "a@one.com", "Invoice #1001",
				models.AttachmentInfo{Filename: "archive.zip", AttachmentID: "a1", MIMEType: "application/zip", Size: 10}),
		},
	}
	archive := &fakeArchive{}
	store := &fakeStore{}

	result, err := newTestOrchestrator(mail, archive, &fakeLedger{}, store).RunScan(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, result.Documents)
	assert.Empty(t, result.Errors)
	assert.Empty(t, archive.stored)
	assert.Empty(t, store.docs)

	// No attachment succeeded, so the email must not be marked.
	assert.Empty(t, mail.marked)
}

func TestRunScanSetupFailureIsFatal(t *testing.T) {
	mail := &fakeMail{searchResults: []string{"e1"}}
	archive := &fakeArchive{ensureErr: errors.New("quota exceeded")}
	store := &fakeStore{}

	result, err := newTestOrchestrator(mail, archive, &fakeLedger{}, store).RunScan(context.Background())
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrSetupFailed)

	run := store.runs[0]
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Equal(t, 0, run.DocumentsProcessed)
	assert.Equal(t, 0, run.ErrorsCount)
	if assert.NotNil(t, run.ErrorDetail) {
		assert.Contains(t, *run.ErrorDetail, "quota exceeded")
	}
	assert.NotNil(t, run.CompletedAt)

	// Setup failed before any email was touched.
	assert.Empty(t, mail.marked)
	assert.Empty(t, store.docs)
}

func TestRunScanMissingInvoiceUsesSentinel(t *testing.T) {
	mail := &fakeMail{
		searchResults: []string{"e1"},
		emails: map[string]*models.EmailDetails{
			"e1": testEmail("e1", "noreply@shop.com", "Your monthly statement",
				models.AttachmentInfo{Filename: "statement.pdf", AttachmentID: "a1", MIMEType: "application/pdf"}),
		},
		attachments: map[string][]byte{"e1/a1": []byte("x")},
	}
	ledger := &fakeLedger{}
	store := &fakeStore{}

	result, err := newTestOrchestrator(mail, &fakeArchive{}, ledger, store).RunScan(context.Background())
	assert.NoError(t, err)
	assert.Len(t, result.Documents, 1)

	// Ledger uses the sentinel; the filename still carries a generated token.
	assert.Equal(t, MissingInvoiceSentinel, ledger.rows[0][5])
	assert.Regexp(t, `^noreply_INV[A-Z0-9]{6}_2024-03-15\.pdf$`, result.Documents[0].Filename)
	assert.Nil(t, store.docs[0].InvoiceNumber)

	// Size was unknown (0).
	assert.Equal(t, "Unknown", ledger.rows[0][9])
}
