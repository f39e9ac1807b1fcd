package extractor

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/krabiTim/knownothing-creative-rag/internal/models"
)

// extractPlainText decodes a text file with an ordered encoding
// fallback chain; the first encoding that decodes cleanly wins and is
// recorded in the method tag. RTF files share this handler: their
// markup is plain ASCII, matching how the original system treats them.
func extractPlainText(data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, &Error{Message: "empty text file"}
	}

	text, encodingName, err := decodeText(data)
	if err != nil {
		return nil, &Error{Message: "no encoding in the fallback chain could decode the file"}
	}

	return &Result{
		Text:    text,
		Method:  "plain-text/" + encodingName,
		Notes:   []string{"decoded using " + encodingName + " encoding"},
		Quality: models.QualityExcellent,
	}, nil
}

// decodeText tries UTF-8 (BOM or valid byte sequence), then UTF-16 via
// BOM, then Windows-1252, then Latin-1 as the final fallback.
func decodeText(data []byte) (string, string, error) {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return string(data[3:]), "utf-8", nil
	}

	if len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE {
		decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		decoded, _, err := transform.Bytes(decoder, data)
		if err != nil {
			return "", "", err
		}
		return string(decoded), "utf-16", nil
	}

	if len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF {
		decoder := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		decoded, _, err := transform.Bytes(decoder, data)
		if err != nil {
			return "", "", err
		}
		return string(decoded), "utf-16", nil
	}

	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}

	decoder := charmap.Windows1252.NewDecoder()
	if decoded, _, err := transform.Bytes(decoder, data); err == nil {
		return string(decoded), "windows-1252", nil
	}

	decoder = charmap.ISO8859_1.NewDecoder()
	decoded, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return "", "", err
	}
	return string(decoded), "latin-1", nil
}
