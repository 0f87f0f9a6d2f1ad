package settings

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

var entityPattern = regexp.MustCompile(`^&(#[0-9]{1,7}|#[xX][0-9a-fA-F]{1,6}|[a-zA-Z][a-zA-Z0-9]{1,31});`)

// EscapeAttr escapes &, <, >, " and ' for use inside an attribute. Existing
// character references are kept, so escaping twice changes nothing.
func EscapeAttr(value string) string {
	if !strings.ContainsAny(value, `&<>"'`) {
		return value
	}
	var b strings.Builder
	b.Grow(len(value) + 16)
	for i := 0; i < len(value); i++ {
		switch c := value[i]; c {
		case '&':
			if loc := entityPattern.FindStringIndex(value[i:]); loc != nil {
				b.WriteString(value[i : i+loc[1]])
				i += loc[1] - 1
				continue
			}
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&#039;")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// EncodeElement URL-encodes value in a canonical form: already encoded input
// is decoded first so repeated encoding is stable.
func EncodeElement(value string) string {
	decoded, err := url.QueryUnescape(value)
	if err != nil {
		decoded = value
	}
	return url.QueryEscape(decoded)
}

var (
	fileNameSpecial = []string{
		"?", "[", "]", "/", "\\", "=", "<", ">", ":", ";", ",", "'", "\"", "&",
		"$", "#", "*", "(", ")", "|", "~", "`", "!", "{", "}", "%", "+",
		"’", "«", "»", "”", "“", "\x00",
	}
	dashRun = regexp.MustCompile(`[\s-]+`)
)

// SanitizeFileName removes path separators and characters that are unsafe in
// file names, folds whitespace to dashes and trims leading and trailing
// dots, dashes and underscores.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "%20", " ")
	name = strings.ReplaceAll(name, "+", "-")
	for _, special := range fileNameSpecial {
		name = strings.ReplaceAll(name, special, "")
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = dashRun.ReplaceAllString(name, "-")
	return strings.Trim(name, ".-_")
}

var allowedSchemes = map[string]struct{}{
	"http": {}, "https": {}, "ftp": {}, "ftps": {}, "mailto": {},
}

// EscapeURL returns value when it is a relative reference or uses an allowed
// scheme, and an empty string otherwise. Whitespace and control characters
// are dropped.
func EscapeURL(value string) string {
	value = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
	if value == "" {
		return ""
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return ""
	}
	if parsed.Scheme == "" {
		return value
	}
	if _, ok := allowedSchemes[strings.ToLower(parsed.Scheme)]; !ok {
		return ""
	}
	return value
}

// Unslash removes backslash escaping from strings nested anywhere in value.
func Unslash(value any) any {
	switch v := value.(type) {
	case string:
		return stripSlashes(v)
	case []string:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = stripSlashes(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Unslash(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = Unslash(item)
		}
		return out
	default:
		return value
	}
}

func stripSlashes(value string) string {
	if !strings.Contains(value, `\`) {
		return value
	}
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		if value[i] == '\\' && i+1 < len(value) {
			i++
			if value[i] == '0' {
				b.WriteByte(0)
				continue
			}
		} else if value[i] == '\\' {
			continue
		}
		b.WriteByte(value[i])
	}
	return b.String()
}
