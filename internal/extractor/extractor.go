package extractor

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/krabiTim/knownothing-creative-rag/internal/models"
	"github.com/krabiTim/knownothing-creative-rag/internal/utils"
)

// ErrUnsupported is returned when no backend is registered for a
// format; callers can tell "backend not installed" apart from "file is
// corrupt".
var ErrUnsupported = errors.New("extractor: no backend registered for format")

// Error is a decode/parse failure. Notes keep whatever per-page or
// per-section diagnostics were accumulated before the failure.
type Error struct {
	Message string
	Notes   []string
}

func (e *Error) Error() string {
	return e.Message
}

// Result is the output of one extraction pass. Text is normalized and
// the counts are computed from it by the engine, never by handlers.
type Result struct {
	Text      string
	Method    string
	PageCount *int
	WordCount int
	CharCount int
	Notes     []string
	Quality   string
}

type handlerFunc func(data []byte) (*Result, error)

// Engine dispatches extraction by file extension. Backends are
// registered once at construction; dispatch consults that static set,
// so an unavailable backend yields ErrUnsupported deterministically.
type Engine struct {
	handlers map[string]handlerFunc
	logger   *utils.Logger
}

func NewEngine(logger *utils.Logger) *Engine {
	e := &Engine{
		handlers: make(map[string]handlerFunc),
		logger:   logger,
	}

	e.register("txt", extractPlainText)
	e.register("rtf", extractPlainText)
	e.register("pdf", extractPDF)
	e.register("docx", extractDOCX)
	// "doc" (legacy binary Word) has no backend.

	logger.Info("Text extractors registered", "formats", e.Formats())

	return e
}

func (e *Engine) register(ext string, h handlerFunc) {
	e.handlers[ext] = h
}

// Supports reports whether a backend is registered for the extension.
func (e *Engine) Supports(ext string) bool {
	_, ok := e.handlers[strings.ToLower(ext)]
	return ok
}

// Formats lists the registered extensions in sorted order.
func (e *Engine) Formats() []string {
	formats := make([]string, 0, len(e.handlers))
	for ext := range e.handlers {
		formats = append(formats, ext)
	}
	sort.Strings(formats)
	return formats
}

// Extract runs the handler for the extension and funnels its output
// through the shared normalization pass. An extraction that yields no
// text at all is a failure, with the handler's notes preserved.
func (e *Engine) Extract(ext string, data []byte) (*Result, error) {
	handler, ok := e.handlers[strings.ToLower(ext)]
	if !ok {
		return nil, ErrUnsupported
	}

	result, err := handler(data)
	if err != nil {
		return nil, err
	}

	result.Text = Normalize(result.Text)
	result.WordCount = CountWords(result.Text)
	result.CharCount = utf8.RuneCountInString(result.Text)

	if result.CharCount == 0 {
		return nil, &Error{
			Message: "no text could be extracted from the document",
			Notes:   result.Notes,
		}
	}

	if result.CharCount < 100 {
		result.Quality = models.QualityLow
	} else if result.Quality == "" {
		result.Quality = models.QualityGood
	}

	return result, nil
}

var (
	reTabRuns   = regexp.MustCompile(`\t+`)
	reBlankRuns = regexp.MustCompile(`\n *\n *(?:\n *)+`)
	reSpaceRuns = regexp.MustCompile(` {2,}`)
)

// Normalize collapses runs of three or more newlines to exactly two
// (paragraph breaks survive), turns tab runs into a single space,
// collapses repeated spaces, strips non-printable control characters
// except newline, and trims the ends.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.Is(unicode.Cc, r) {
			return -1
		}
		return r
	}, text)

	text = reTabRuns.ReplaceAllString(text, " ")
	text = reBlankRuns.ReplaceAllString(text, "\n\n")
	text = reSpaceRuns.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// CountWords counts whitespace-delimited tokens.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
