// Package source reads indexed files as text, tolerating legacy charsets
// and extracting the text layer of PDF documents.
package source

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/korean"
)

// fallbacks are tried in order after the detected charset.
var fallbacks = []string{"utf-8", "euc-kr", "cp949"}

// Read returns the text of the file at path. PDFs are reduced to their plain
// text; everything else is decoded with Decode.
func Read(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return readPDF(path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return Decode(raw), nil
}

// Decode converts raw bytes to UTF-8. Valid UTF-8 is returned unchanged.
// Otherwise the detected charset and the fallbacks are tried in turn, and if
// none decodes cleanly invalid sequences are replaced.
func Decode(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}

	candidates := make([]string, 0, len(fallbacks)+1)
	if res, err := chardet.NewTextDetector().DetectBest(raw); err == nil && res != nil {
		candidates = append(candidates, res.Charset)
	}
	candidates = append(candidates, fallbacks...)

	for _, name := range candidates {
		if s, ok := decodeStrict(raw, name); ok {
			return s
		}
	}
	return strings.ToValidUTF8(string(raw), "�")
}

func decodeStrict(raw []byte, charset string) (string, bool) {
	enc := lookup(charset)
	if enc == nil {
		return "", false
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil || bytes.ContainsRune(out, utf8.RuneError) || !utf8.Valid(out) {
		return "", false
	}
	return string(out), true
}

func lookup(charset string) encoding.Encoding {
	switch strings.ToLower(charset) {
	case "utf-8", "utf8":
		return nil
	case "cp949", "euc-kr", "ks_c_5601-1987":
		return korean.EUCKR
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil
	}
	return enc
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	text, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(text); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}
