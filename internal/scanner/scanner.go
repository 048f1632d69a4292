package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"invoice-vault-go/internal/metrics"
	"invoice-vault-go/internal/models"
)

// MailSource is the mailbox the orchestrator scans. Search must already
// exclude messages carrying the processed marker.
type MailSource interface {
	Search(ctx context.Context, query string) ([]string, error)
	FetchDetails(ctx context.Context, emailID string) (*models.EmailDetails, error)
	FetchAttachment(ctx context.Context, emailID, attachmentID string) ([]byte, error)
	ApplyProcessedMarker(ctx context.Context, emailID string) error
}

// ArchiveSink stores document bytes under a generated name.
type ArchiveSink interface {
	EnsureContainer(ctx context.Context, name string) (string, error)
	Store(ctx context.Context, data []byte, filename, mimeType, containerID string) (*models.ArchiveRef, error)
}

// LedgerSink appends one row per archived document.
type LedgerSink interface {
	EnsureLedger(ctx context.Context, name string) (string, error)
	AppendRow(ctx context.Context, ledgerID string, row []string) (int64, error)
}

// Store is the processing bookkeeping the orchestrator relies on.
type Store interface {
	CreateRun(run *models.ScanRun) error
	FinishRun(run *models.ScanRun) error
	ProcessedEmailIDs() (map[string]struct{}, error)
	CreateDocument(doc *models.ProcessedDocument) error
}

// Config holds the destination names and candidate query for a scan.
type Config struct {
	Query         string
	ArchiveFolder string
	LedgerName    string
}

// Orchestrator runs one scan cycle: discover candidates, deduplicate
// against prior runs, process each email in isolation, and persist a run
// record either way.
type Orchestrator struct {
	mail    MailSource
	archive ArchiveSink
	ledger  LedgerSink
	store   Store
	metrics *metrics.Metrics
	cfg     Config

	now func() time.Time
}

// NewOrchestrator creates a scan orchestrator.
func NewOrchestrator(mail MailSource, archive ArchiveSink, ledger LedgerSink, store Store, m *metrics.Metrics, cfg Config) *Orchestrator {
	return &Orchestrator{
		mail:    mail,
		archive: archive,
		ledger:  ledger,
		store:   store,
		metrics: m,
		cfg:     cfg,
		now:     time.Now,
	}
}

// RunScan executes one full scan cycle. A failed email becomes an entry in
// the result's error list; any other failure marks the run failed, persists
// it, and is returned to the caller.
func (o *Orchestrator) RunScan(ctx context.Context) (*models.ScanResult, error) {
	run := &models.ScanRun{
		Status:    models.RunStatusStarted,
		StartedAt: o.now(),
	}
	if err := o.store.CreateRun(run); err != nil {
		return nil, fmt.Errorf("failed to create scan run: %w", err)
	}

	o.metrics.ScanCount.Inc()
	start := o.now()

	result, err := o.scan(ctx, run)
	if err != nil {
		o.failRun(run, err)
		o.metrics.ScanFailures.Inc()
		return nil, err
	}

	o.metrics.ScanDuration.Observe(o.now().Sub(start).Seconds())
	return result, nil
}

func (o *Orchestrator) scan(ctx context.Context, run *models.ScanRun) (*models.ScanResult, error) {
	containerID, err := o.archive.EnsureContainer(ctx, o.cfg.ArchiveFolder)
	if err != nil {
		return nil, fmt.Errorf("%w: archive folder %q: %v", ErrSetupFailed, o.cfg.ArchiveFolder, err)
	}

	ledgerID, err := o.ledger.EnsureLedger(ctx, o.cfg.LedgerName)
	if err != nil {
		return nil, fmt.Errorf("%w: ledger %q: %v", ErrSetupFailed, o.cfg.LedgerName, err)
	}

	processedIDs, err := o.store.ProcessedEmailIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to load processed email ids: %w", err)
	}

	candidates, err := o.mail.Search(ctx, o.cfg.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to search mailbox: %w", err)
	}

	var unprocessed []string
	for _, id := range candidates {
		if _, done := processedIDs[id]; !done {
			unprocessed = append(unprocessed, id)
		}
	}

	logrus.Infof("Scan found %d candidates, %d unprocessed", len(candidates), len(unprocessed))

	result := &models.ScanResult{}
	if len(unprocessed) == 0 {
		if err := o.completeRun(run, result); err != nil {
			return nil, err
		}
		return result, nil
	}

	for _, emailID := range unprocessed {
		docs, err := o.processEmail(ctx, emailID, containerID, ledgerID)
		if err != nil {
			emailErr := &EmailError{EmailID: emailID, Err: err}
			logrus.Errorf("Failed to process email: %v", emailErr)
			result.Errors = append(result.Errors, emailErr.Error())
			o.metrics.EmailFailures.Inc()
			continue
		}

		result.Documents = append(result.Documents, docs...)
		result.ProcessedCount++
		o.metrics.EmailsProcessed.Inc()
	}

	if err := o.completeRun(run, result); err != nil {
		return nil, err
	}
	return result, nil
}

// processEmail runs the per-email pipeline. Any error aborts this email
// only and is recorded by the caller.
func (o *Orchestrator) processEmail(ctx context.Context, emailID, containerID, ledgerID string) ([]models.DocumentSummary, error) {
	details, err := o.mail.FetchDetails(ctx, emailID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch details: %w", err)
	}

	var summaries []models.DocumentSummary
	for _, att := range details.Attachments {
		if !IsDocumentAttachment(att.Filename) {
			logrus.Debugf("Skipping non-document attachment %q on email %s", att.Filename, emailID)
			continue
		}

		summary, err := o.processAttachment(ctx, details, att, containerID, ledgerID)
		if err != nil {
			return nil, &AttachmentError{Filename: att.Filename, Err: err}
		}
		summaries = append(summaries, *summary)
	}

	// Only a message with at least one archived document is marked, so a
	// skipped-only email stays eligible for future scans.
	if len(summaries) > 0 {
		if err := o.mail.ApplyProcessedMarker(ctx, emailID); err != nil {
			return nil, fmt.Errorf("failed to apply processed marker: %w", err)
		}
	}

	return summaries, nil
}

func (o *Orchestrator) processAttachment(ctx context.Context, details *models.EmailDetails, att models.AttachmentInfo, containerID, ledgerID string) (*models.DocumentSummary, error) {
	data, err := o.mail.FetchAttachment(ctx, details.ID, att.AttachmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attachment: %w", err)
	}

	filename, err := BuildFilename(details.From, details.Subject, details.Date, att.Filename)
	if err != nil {
		filename = FallbackFilename(o.now(), att.Filename)
		logrus.Warnf("Filename generation failed for email %s (%v), using %q", details.ID, err, filename)
	}

	ref, err := o.archive.Store(ctx, data, filename, att.MIMEType, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to upload to archive: %w", err)
	}

	invoiceCell := MissingInvoiceSentinel
	var invoiceNumber *string
	if digits, ok := ExtractInvoiceNumber(details.Subject); ok {
		token := "INV" + digits
		invoiceCell = token
		invoiceNumber = &token
	}

	sizeLabel := FormatSize(att.Size)
	senderName := SenderDisplayName(details.From)
	sender := SenderAddress(details.From)

	row := []string{
		o.now().Format("2006-01-02"),
		details.Date.Format("2006-01-02"),
		sender,
		senderName,
		details.Subject,
		invoiceCell,
		filename,
		ref.ID,
		ref.URL,
		sizeLabel,
	}

	rowNumber, err := o.ledger.AppendRow(ctx, ledgerID, row)
	if err != nil {
		return nil, fmt.Errorf("failed to append ledger row: %w", err)
	}

	doc := &models.ProcessedDocument{
		EmailID:          details.ID,
		MessageID:        details.MessageID,
		Sender:           sender,
		SenderName:       senderName,
		Subject:          details.Subject,
		InvoiceNumber:    invoiceNumber,
		EmailDate:        details.Date,
		Filename:         filename,
		OriginalFilename: att.Filename,
		ArchiveFileID:    ref.ID,
		ArchiveURL:       ref.URL,
		LedgerID:         ledgerID,
		LedgerRow:        &rowNumber,
		SizeLabel:        sizeLabel,
		MIMEType:         att.MIMEType,
		Status:           models.DocumentStatusCompleted,
	}
	if err := o.store.CreateDocument(doc); err != nil {
		return nil, fmt.Errorf("failed to persist document record: %w", err)
	}

	o.metrics.DocumentsArchived.Inc()
	logrus.Infof("Archived %q from email %s as %s", att.Filename, details.ID, filename)

	return &models.DocumentSummary{
		EmailID:   details.ID,
		Filename:  filename,
		ArchiveID: ref.ID,
		LedgerRow: &rowNumber,
	}, nil
}

func (o *Orchestrator) completeRun(run *models.ScanRun, result *models.ScanResult) error {
	now := o.now()
	run.Status = models.RunStatusCompleted
	run.EmailsProcessed = result.ProcessedCount
	run.DocumentsProcessed = len(result.Documents)
	run.ErrorsCount = len(result.Errors)
	run.CompletedAt = &now
	run.ErrorDetail = nil

	if len(result.Errors) > 0 {
		detail, err := json.Marshal(result.Errors)
		if err != nil {
			return fmt.Errorf("failed to serialize run errors: %w", err)
		}
		s := string(detail)
		run.ErrorDetail = &s
	}

	if err := o.store.FinishRun(run); err != nil {
		return fmt.Errorf("failed to persist scan run: %w", err)
	}

	logrus.Infof("Scan run %d completed: %d emails, %d documents, %d errors",
		run.ID, run.EmailsProcessed, run.DocumentsProcessed, run.ErrorsCount)
	return nil
}

func (o *Orchestrator) failRun(run *models.ScanRun, cause error) {
	now := o.now()
	run.Status = models.RunStatusFailed
	detail := cause.Error()
	run.ErrorDetail = &detail
	run.CompletedAt = &now

	if err := o.store.FinishRun(run); err != nil {
		logrus.Errorf("Failed to persist failed scan run %d: %v", run.ID, err)
	}
}
