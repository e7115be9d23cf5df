package validation

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/parsers/tabular"
)

// AllowedClientContentTypes is a map for quick lookup of allowed client-declared MIME types.
var AllowedClientContentTypes = map[string]bool{
	"text/csv":                 true,
	"application/csv":          true,
	"text/plain":               true, // CSVs are often plain text
	"text/html":                true,
	"application/xhtml+xml":    true,
	"application/vnd.ms-excel": true, // Also used by browsers for .csv
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/octet-stream": true, // Browsers send this when they don't know the extension
}

var (
	zipMagic  = []byte("PK\x03\x04")
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// ValidateClientContentType checks the Content-Type header provided by the client.
// An empty header is accepted.
func ValidateClientContentType(contentType string) error {
	if strings.TrimSpace(contentType) == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	if !AllowedClientContentTypes[mediaType] {
		logger.L.Warn("Disallowed client-declared Content-Type", "contentType", contentType)
		return fmt.Errorf("%w: client-declared file type '%s' is not allowed", tabular.ErrUnsupportedFormat, contentType)
	}
	return nil
}

// isBinaryContent reports null bytes in a buffer that is supposed to be text.
// UTF-16 exports carry null bytes legitimately and are recognised by their BOM.
func isBinaryContent(buf []byte) bool {
	if bytes.HasPrefix(buf, []byte{0xFF, 0xFE}) || bytes.HasPrefix(buf, []byte{0xFE, 0xFF}) {
		return false
	}
	return bytes.IndexByte(buf, 0) != -1
}

// ValidateFileContent checks that the first bytes of an upload match the file
// type inferred from its name. Excel uploads may be zip (xlsx), OLE2 (xls) or
// an HTML statement saved with an .xls extension.
func ValidateFileContent(fileType tabular.FileType, head []byte) error {
	if len(bytes.TrimSpace(head)) == 0 {
		return tabular.ErrEmptyFile
	}

	isWorkbook := bytes.HasPrefix(head, zipMagic) || bytes.HasPrefix(head, ole2Magic)
	switch fileType {
	case tabular.FileTypeExcel:
		if isWorkbook {
			return nil
		}
		if !isBinaryContent(head) && strings.Contains(strings.ToLower(string(head)), "<") {
			return nil
		}
	case tabular.FileTypeCSV, tabular.FileTypeHTML:
		if !isWorkbook && !isBinaryContent(head) {
			return nil
		}
	default:
		return fmt.Errorf("%w: %q", tabular.ErrUnsupportedFormat, fileType)
	}

	detected := strings.ToLower(strings.Split(http.DetectContentType(head), ";")[0])
	logger.L.Warn("File rejected: content does not match extension", "fileType", fileType, "detectedContentType", detected)
	return fmt.Errorf("%w: content looks like %s, not %s", tabular.ErrUnsupportedFormat, detected, fileType)
}
