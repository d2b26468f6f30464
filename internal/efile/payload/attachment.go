package payload

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"

	"eviction-tracker/efiling/internal/efile/domain"
)

// FileScheme prefixes every encoded file in the payload.
const FileScheme = "base64://"

// DefaultMaxAttachmentBytes is the largest document the service accepts.
const DefaultMaxAttachmentBytes = 10 << 20

var allowedContentTypes = map[string]bool{
	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
}

// EncodeAttachment base64-encodes content with the scheme the service requires.
func EncodeAttachment(content []byte) string {
	return FileScheme + base64.StdEncoding.EncodeToString(content)
}

// CheckAttachment verifies a's size and type. field names the form field for the error.
// Missing names and empty content are reported by Validate against the encoded document.
func CheckAttachment(field string, a domain.Attachment, maxBytes int) []domain.ValidationError {
	var errs []domain.ValidationError
	if maxBytes > 0 && len(a.Content) > maxBytes {
		errs = append(errs, domain.ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("file %s exceeds the maximum size of %d MB", a.FileName, maxBytes>>20),
		})
	}
	if !allowedType(a) {
		errs = append(errs, domain.ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("file %s is not an allowed file type; only PDF and DOCX are supported", a.FileName),
		})
	}
	return errs
}

func allowedType(a domain.Attachment) bool {
	if a.ContentType != "" {
		ct, _, _ := strings.Cut(a.ContentType, ";")
		return allowedContentTypes[strings.TrimSpace(strings.ToLower(ct))]
	}
	return allowedExtensions[strings.ToLower(filepath.Ext(a.FileName))]
}
