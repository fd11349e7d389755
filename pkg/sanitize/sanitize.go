// Package sanitize validates and normalises untrusted text before it reaches
// storage keys, logs or rendered output. It is a deny-list filter layered in
// front of parameterised queries and output encoding, not a replacement for
// them.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

// Violation is a machine-readable rejection code.
type Violation string

const (
	TooLong        Violation = "too_long"
	InvalidUTF8    Violation = "invalid_utf8"
	InvalidType    Violation = "invalid_type"
	InvalidFormat  Violation = "invalid_format"
	ControlChars   Violation = "control_chars"
	SQLInjection   Violation = "sql_injection"
	XSS            Violation = "xss"
	HTMLNotAllowed Violation = "html_not_allowed"
	PathTraversal  Violation = "path_traversal"
	AbsolutePath   Violation = "absolute_path"
	NullByte       Violation = "null_byte"
)

// Options selects the checks applied by ValidateAndSanitize. Every enabled
// check runs; none short-circuits another.
type Options struct {
	// MaxLength is counted in runes; zero disables the limit.
	MaxLength int

	CheckSQLInjection  bool
	CheckXSS           bool
	CheckPathTraversal bool

	// AllowHTML strips markup through a UGC policy instead of rejecting it.
	AllowHTML bool

	// Pattern, when set, must match the whole normalised value.
	Pattern *regexp.Regexp
}

// Result of a validation.
type Result struct {
	Valid      bool
	Sanitized  string
	Violations []Violation
}

// Has reports whether v was recorded.
func (r Result) Has(v Violation) bool {
	for _, got := range r.Violations {
		if got == v {
			return true
		}
	}
	return false
}

// Err returns nil for a valid result, otherwise a *Error.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &Error{Violations: r.Violations}
}

// Error reports rejected input. It never echoes the input itself.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	codes := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		codes[i] = string(v)
	}
	return "sanitize: rejected input (" + strings.Join(codes, ",") + ")"
}

// Presets for the free-text fields the service accepts.
var (
	// IdentifierOptions for document ids and similar keys.
	IdentifierOptions = Options{
		MaxLength:          128,
		CheckSQLInjection:  true,
		CheckXSS:           true,
		CheckPathTraversal: true,
		Pattern:            regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`),
	}

	// FilenameOptions for the original filename of an upload.
	FilenameOptions = Options{
		MaxLength:          255,
		CheckXSS:           true,
		CheckPathTraversal: true,
	}

	// PasswordOptions for download passwords. Passwords are compared, never
	// stored or rendered, so only size and encoding are enforced.
	PasswordOptions = Options{
		MaxLength: 128,
	}

	// TokenOptions for access tokens: compact JWS characters only.
	TokenOptions = Options{
		MaxLength: 2048,
		Pattern:   regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+$`),
	}

	// MessageOptions for free text that may be rendered back to a user.
	MessageOptions = Options{
		MaxLength:         4000,
		CheckSQLInjection: true,
		CheckXSS:          true,
		AllowHTML:         true,
	}
)

var ugcPolicy = bluemonday.UGCPolicy()

// ValidateAndSanitize checks raw against opts and returns the normalised
// value together with every violation found. It never panics.
func ValidateAndSanitize(raw string, opts Options) Result {
	var violations []Violation
	add := func(v Violation) {
		for _, got := range violations {
			if got == v {
				return
			}
		}
		violations = append(violations, v)
	}

	if opts.MaxLength > 0 && utf8.RuneCountInString(raw) > opts.MaxLength {
		add(TooLong)
	}

	value := raw
	if !utf8.ValidString(value) {
		add(InvalidUTF8)
		value = strings.ToValidUTF8(value, string(utf8.RuneError))
	}

	if strings.IndexByte(raw, 0) >= 0 {
		add(NullByte)
	}
	if hasControl(value) {
		add(ControlChars)
	}

	value = strings.TrimSpace(stripControl(norm.NFC.String(value)))

	if opts.CheckSQLInjection && matchAny(sqlPatterns, value) {
		add(SQLInjection)
	}

	if opts.CheckXSS && matchAny(xssPatterns, value) {
		add(XSS)
	}

	if strings.ContainsAny(value, "<>") {
		if opts.AllowHTML {
			value = ugcPolicy.Sanitize(value)
		} else if opts.CheckXSS {
			add(HTMLNotAllowed)
		}
	}

	if opts.CheckPathTraversal {
		decoded := decodePercent(value)
		if matchAny(traversalPatterns, value) || matchAny(traversalPatterns, decoded) {
			add(PathTraversal)
		}
		if isAbsolutePath(value) || isAbsolutePath(decoded) {
			add(AbsolutePath)
		}
		if strings.Contains(strings.ToLower(value), "%00") {
			add(NullByte)
		}
	}

	if opts.Pattern != nil && !opts.Pattern.MatchString(value) {
		add(InvalidFormat)
	}

	return Result{
		Valid:      len(violations) == 0,
		Sanitized:  value,
		Violations: violations,
	}
}

// ValidateAny validates a value of unknown type. Anything other than a string
// or fmt.Stringer is rejected as invalid_type.
func ValidateAny(v any, opts Options) (res Result) {
	defer func() {
		if recover() != nil {
			res = Result{Violations: []Violation{InvalidType}}
		}
	}()

	switch s := v.(type) {
	case string:
		return ValidateAndSanitize(s, opts)
	case []byte:
		return ValidateAndSanitize(string(s), opts)
	case fmt.Stringer:
		return ValidateAndSanitize(s.String(), opts)
	}
	return Result{Violations: []Violation{InvalidType}}
}

func hasControl(s string) bool {
	for _, r := range s {
		if isDisallowedControl(r) {
			return true
		}
	}
	return false
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if isDisallowedControl(r) {
			return -1
		}
		return r
	}, s)
}

// isDisallowedControl allows tab, newline and carriage return.
func isDisallowedControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.IsControl(r) || r == '\u2028' || r == '\u2029'
}
