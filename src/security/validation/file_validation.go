package validation

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/username/easyledger/backend/src/logger"
)

// AllowedBackupContentTypes lists the client-declared MIME types accepted
// for a backup upload.
var AllowedBackupContentTypes = map[string]bool{
	"application/json":         true,
	"text/json":                true,
	"text/plain":               true,
	"application/octet-stream": false,
}

// ValidateBackupContentType checks the Content-Type header provided by the
// client. Parameters such as charset are ignored.
func ValidateBackupContentType(contentType string) error {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	if !AllowedBackupContentTypes[mediaType] {
		logger.L.Warn("Disallowed client-declared Content-Type for backup", "contentType", contentType)
		return fmt.Errorf("%w: content type '%s' is not allowed for a backup", ErrValidationFailed, contentType)
	}
	return nil
}

func isBinaryContent(buf []byte) bool {
	return bytes.IndexByte(buf, 0) != -1 || !utf8.Valid(buf)
}

// ValidateBackupContent inspects the first kilobyte of an uploaded backup:
// it must be UTF-8 text opening a JSON object. The reader is rewound.
func ValidateBackupContent(file io.ReadSeeker) error {
	if file == nil {
		return fmt.Errorf("%w: backup file is nil", ErrValidationFailed)
	}

	buffer := make([]byte, 1024)
	n, err := io.ReadFull(file, buffer)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("failed to read backup for content checking: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to reset backup read pointer: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: backup file is empty", ErrValidationFailed)
	}

	head := buffer[:n]
	// A multi-byte rune may be cut at the buffer edge.
	for i := 0; i < utf8.UTFMax && !utf8.Valid(head) && len(head) > 0; i++ {
		head = head[:len(head)-1]
	}
	if isBinaryContent(head) {
		logger.L.Warn("Backup rejected: binary content detected")
		return fmt.Errorf("%w: backup appears to be binary, not JSON", ErrValidationFailed)
	}

	trimmed := bytes.TrimLeft(head, " \t\r\n\ufeff")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: backup must be a JSON object", ErrValidationFailed)
	}
	return nil
}
