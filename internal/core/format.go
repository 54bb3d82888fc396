package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Template bodies use the replacement-field syntax of the legacy ZPL template
// files: {field} or {field:spec}, with {{ and }} standing for literal braces.
// spec is [[fill]align][sign][0][width][.precision][type].

type segment struct {
	literal string
	field   string
	spec    string
	isField bool
}

func parseBody(body string) ([]segment, error) {
	var (
		segs []segment
		lit  strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(body); i++ {
		c := body[i]
		switch c {
		case '{':
			if i+1 < len(body) && body[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(body[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("%w: unclosed '{' at offset %d", ErrTemplateMalformed, i)
			}
			inner := body[i+1 : i+1+end]
			if strings.ContainsRune(inner, '{') {
				return nil, fmt.Errorf("%w: nested '{' at offset %d", ErrTemplateMalformed, i)
			}
			name, spec, _ := strings.Cut(inner, ":")
			if name == "" {
				return nil, fmt.Errorf("%w: empty field name at offset %d", ErrTemplateMalformed, i)
			}
			flush()
			segs = append(segs, segment{field: name, spec: spec, isField: true})
			i += end + 1
		case '}':
			if i+1 < len(body) && body[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, fmt.Errorf("%w: single '}' at offset %d", ErrTemplateMalformed, i)
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return segs, nil
}

// bodyFields lists the distinct field names a body references.
func bodyFields(body string) ([]string, error) {
	segs, err := parseBody(body)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var names []string
	for _, s := range segs {
		if s.isField && !seen[s.field] {
			seen[s.field] = true
			names = append(names, s.field)
		}
	}
	return names, nil
}

func formatBody(body string, fields map[string]any) (string, error) {
	segs, err := parseBody(body)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, s := range segs {
		if !s.isField {
			sb.WriteString(s.literal)
			continue
		}
		v, ok := fields[s.field]
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrTemplateFieldMissing, s.field)
		}
		out, err := formatValue(v, s.spec)
		if err != nil {
			return "", fmt.Errorf("field %q: %w", s.field, err)
		}
		sb.WriteString(out)
	}
	return sb.String(), nil
}

type formatSpec struct {
	fill      rune
	align     byte
	sign      byte
	width     int
	precision int
	verb      byte
}

func parseSpec(spec string) (formatSpec, error) {
	fs := formatSpec{fill: ' ', precision: -1}
	s := spec

	isAlign := func(b byte) bool { return b == '<' || b == '>' || b == '^' || b == '=' }
	if r, size := utf8.DecodeRuneInString(s); size > 0 && len(s) > size && isAlign(s[size]) {
		fs.fill = r
		fs.align = s[size]
		s = s[size+1:]
	} else if len(s) > 0 && isAlign(s[0]) {
		fs.align = s[0]
		s = s[1:]
	}

	if len(s) > 0 && (s[0] == '+' || s[0] == '-' || s[0] == ' ') {
		fs.sign = s[0]
		s = s[1:]
	}

	if len(s) > 0 && s[0] == '0' {
		if fs.align == 0 {
			fs.fill = '0'
			fs.align = '='
		}
		s = s[1:]
	}

	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	if n > 0 {
		fs.width, _ = strconv.Atoi(s[:n])
		s = s[n:]
	}

	if len(s) > 0 && s[0] == '.' {
		s = s[1:]
		n = 0
		for n < len(s) && s[n] >= '0' && s[n] <= '9' {
			n++
		}
		if n == 0 {
			return fs, fmt.Errorf("%w: format spec %q missing precision", ErrTemplateMalformed, spec)
		}
		fs.precision, _ = strconv.Atoi(s[:n])
		s = s[n:]
	}

	switch s {
	case "":
	case "f", "F", "d", "s":
		fs.verb = s[0]
	default:
		return fs, fmt.Errorf("%w: unsupported format spec %q", ErrTemplateMalformed, spec)
	}
	return fs, nil
}

func formatValue(v any, spec string) (string, error) {
	if spec == "" {
		switch x := v.(type) {
		case string:
			return x, nil
		case float64:
			return pyFloat(x), nil
		case int:
			return strconv.Itoa(x), nil
		}
		return fmt.Sprint(v), nil
	}

	fs, err := parseSpec(spec)
	if err != nil {
		return "", err
	}

	switch x := v.(type) {
	case string:
		if fs.verb != 0 && fs.verb != 's' {
			return "", fmt.Errorf("%w: format %q on a string", ErrTemplateMalformed, spec)
		}
		if fs.sign != 0 || fs.align == '=' {
			return "", fmt.Errorf("%w: sign not allowed on a string in %q", ErrTemplateMalformed, spec)
		}
		if fs.precision >= 0 && utf8.RuneCountInString(x) > fs.precision {
			x = string([]rune(x)[:fs.precision])
		}
		return pad(x, "", fs, '<'), nil
	case float64:
		var digits string
		switch fs.verb {
		case 'f', 'F':
			prec := fs.precision
			if prec < 0 {
				prec = 6
			}
			digits = strconv.FormatFloat(math.Abs(x), 'f', prec, 64)
		case 0:
			if fs.precision >= 0 {
				digits = strconv.FormatFloat(math.Abs(x), 'g', fs.precision, 64)
			} else {
				digits = pyFloat(math.Abs(x))
			}
		default:
			return "", fmt.Errorf("%w: format %q on a number", ErrTemplateMalformed, spec)
		}
		return pad(digits, signOf(x < 0, fs.sign), fs, '>'), nil
	case int:
		if fs.verb != 0 && fs.verb != 'd' {
			return formatValue(float64(x), spec)
		}
		digits := strconv.Itoa(abs(x))
		return pad(digits, signOf(x < 0, fs.sign), fs, '>'), nil
	}
	return fmt.Sprint(v), nil
}

func signOf(negative bool, mode byte) string {
	switch {
	case negative:
		return "-"
	case mode == '+':
		return "+"
	case mode == ' ':
		return " "
	}
	return ""
}

func pad(body, sign string, fs formatSpec, defaultAlign byte) string {
	n := utf8.RuneCountInString(body) + len(sign)
	if n >= fs.width {
		return sign + body
	}
	fill := strings.Repeat(string(fs.fill), fs.width-n)
	align := fs.align
	if align == 0 {
		align = defaultAlign
	}
	switch align {
	case '<':
		return sign + body + fill
	case '^':
		left := (fs.width - n) / 2
		return fill[:left*len(string(fs.fill))] + sign + body + fill[left*len(string(fs.fill)):]
	case '=':
		return sign + fill + body
	default:
		return fill + sign + body
	}
}

// pyFloat prints a float the way the legacy templates expect: shortest
// representation, always with a fractional part.
func pyFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	a := math.Abs(f)
	if a != 0 && (a >= 1e16 || a < 1e-4) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
