package tabular

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf16BEBOM = []byte{0xFE, 0xFF}
)

// decodeText returns the upload as UTF-8 text. MetaTrader 5 writes its
// reports as UTF-16 with a BOM and older terminals use windows-1252, so
// anything that is not already valid UTF-8 is run through charset detection.
func decodeText(data []byte, contentType string) (string, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		return string(data[len(utf8BOM):]), nil
	}
	utf16 := bytes.HasPrefix(data, utf16LEBOM) || bytes.HasPrefix(data, utf16BEBOM)
	if !utf16 && utf8.Valid(data) {
		return string(data), nil
	}

	r, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		return "", fmt.Errorf("failed to detect text encoding: %w", err)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to decode text: %w", err)
	}
	return strings.TrimPrefix(string(decoded), "\ufeff"), nil
}

// looksLikeHTML reports whether the leading bytes of a file are markup. Some
// brokers save HTML statements with an .xls extension.
func looksLikeHTML(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	text, err := decodeText(head, "text/html")
	if err != nil {
		return false
	}
	text = strings.ToLower(strings.TrimSpace(text))
	return strings.HasPrefix(text, "<!doctype html") ||
		strings.HasPrefix(text, "<html") ||
		strings.HasPrefix(text, "<table") ||
		strings.HasPrefix(text, "<?xml") && strings.Contains(text, "<html")
}
