package scanner

import (
	"fmt"
	"math"
	"net/mail"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	maxLocalPartLen = 20
	defaultExt      = "pdf"

	// MissingInvoiceSentinel goes into the ledger row when the subject
	// yields no invoice number. The filename never uses it; filename
	// generation always produces a token.
	MissingInvoiceSentinel = "N/A"
)

// documentExtensions is the case-insensitive allow-list of attachment types
// worth archiving.
var documentExtensions = map[string]bool{
	"pdf":  true,
	"doc":  true,
	"docx": true,
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
	"tiff": true,
}

// invoicePatterns are tried in order; the first match wins.
var invoicePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)invoice\s*#?\s*(\d+)`),
	regexp.MustCompile(`(?i)\binv\s*#?\s*(\d+)`),
	regexp.MustCompile(`(?i)\bbill\s*#?\s*(\d+)`),
	regexp.MustCompile(`(?i)receipt\s*#?\s*(\d+)`),
	regexp.MustCompile(`#(\d+)`),
	regexp.MustCompile(`(\d{4,})`),
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// IsDocumentAttachment reports whether the filename extension is in the
// recognized document allow-list.
func IsDocumentAttachment(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	return documentExtensions[ext]
}

// ExtractInvoiceNumber pulls the invoice/reference digits out of an email
// subject. The second return value is false when no pattern matched.
func ExtractInvoiceNumber(subject string) (string, bool) {
	for _, pattern := range invoicePatterns {
		if m := pattern.FindStringSubmatch(subject); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// InvoiceToken renders the invoice portion of a generated filename. When
// the subject has no recognizable number a random 6-character token keeps
// the filename unique.
func InvoiceToken(subject string) string {
	if digits, ok := ExtractInvoiceNumber(subject); ok {
		return "INV" + digits
	}
	return "INV" + randomToken()
}

func randomToken() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return id[:6]
}

// SanitizeLocalPart reduces a sender address to the alphanumeric characters
// of its local part, capped at 20 characters.
func SanitizeLocalPart(address string) string {
	local := address
	if at := strings.Index(address, "@"); at >= 0 {
		local = address[:at]
	}
	local = nonAlnum.ReplaceAllString(local, "")
	if len(local) > maxLocalPartLen {
		local = local[:maxLocalPartLen]
	}
	return local
}

// SenderDisplayName derives a human-readable sender name from a From
// header, falling back to the address local part.
func SenderDisplayName(from string) string {
	if addr, err := mail.ParseAddress(from); err == nil {
		if addr.Name != "" {
			return addr.Name
		}
		if at := strings.Index(addr.Address, "@"); at >= 0 {
			return addr.Address[:at]
		}
		return addr.Address
	}
	if at := strings.Index(from, "@"); at >= 0 {
		return from[:at]
	}
	return from
}

// SenderAddress extracts the bare address from a From header.
func SenderAddress(from string) string {
	if addr, err := mail.ParseAddress(from); err == nil {
		return addr.Address
	}
	return strings.TrimSpace(from)
}

// BuildFilename derives the structured archive filename
// <sender>_<invoiceToken>_<date>.<ext>. It fails when the sender yields no
// usable characters; callers degrade to FallbackFilename in that case.
func BuildFilename(from, subject string, date time.Time, originalFilename string) (string, error) {
	sender := SanitizeLocalPart(SenderAddress(from))
	if sender == "" {
		return "", fmt.Errorf("sender %q yields no usable filename characters", from)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(originalFilename), "."))
	if ext == "" {
		ext = defaultExt
	}

	return fmt.Sprintf("%s_%s_%s.%s", sender, InvoiceToken(subject), date.Format("2006-01-02"), ext), nil
}

// FallbackFilename is the degraded name used when structured generation
// fails: today's date plus the original filename.
func FallbackFilename(now time.Time, originalFilename string) string {
	return fmt.Sprintf("%s_%s", now.Format("2006-01-02"), originalFilename)
}

// FormatSize renders a byte count with binary scaling and at most two
// decimals. Zero renders as "Unknown" since sources report unknown sizes
// as zero.
func FormatSize(size int64) string {
	if size <= 0 {
		return "Unknown"
	}

	units := []string{"B", "KB", "MB", "GB"}
	value := float64(size)
	unit := 0
	for value >= 1024 && unit < len(units)-1 {
		value /= 1024
		unit++
	}

	value = math.Round(value*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + units[unit]
}
