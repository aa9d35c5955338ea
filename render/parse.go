package render

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/sardine-ai/go-device-credentials/model"
)

var declPattern = regexp.MustCompile(`const\s+char\s*\*\s*([A-Za-z_][A-Za-z0-9_]*)\s*=\s*("(?:[^"\\\n]|\\.)*")\s*;`)

// ParseHeader reads the string declarations of a firmware config header
// and maps them back to credential keys. Headers written by older builds
// use the same identifiers, so this is also how they are migrated.
func ParseHeader(raw []byte) (model.Credentials, error) {
	idents := make(map[string]string)
	for _, g := range headerGroups {
		for _, v := range g.Vars {
			idents[v.Ident] = v.Key
		}
	}

	values := make(map[string]string)
	for _, m := range declPattern.FindAllSubmatch(stripComments(raw), -1) {
		key, ok := idents[string(m[1])]
		if !ok {
			continue
		}
		v, err := unquoteC(string(m[2]))
		if err != nil {
			return model.Credentials{}, fmt.Errorf("parse %s: %w", m[1], err)
		}
		values[key] = v
	}
	return model.New(values)
}

// stripComments blanks out // and /* */ comments, leaving string and
// character literals alone. Newlines are kept so line structure survives.
func stripComments(src []byte) []byte {
	out := make([]byte, len(src))
	copy(out, src)

	const (
		code = iota
		str
		char
		line
		block
	)
	state := code
	for i := 0; i < len(out); i++ {
		ch := out[i]
		switch state {
		case code:
			switch {
			case ch == '"':
				state = str
			case ch == '\'':
				state = char
			case ch == '/' && i+1 < len(out) && out[i+1] == '/':
				state = line
				out[i], out[i+1] = ' ', ' '
				i++
			case ch == '/' && i+1 < len(out) && out[i+1] == '*':
				state = block
				out[i], out[i+1] = ' ', ' '
				i++
			}
		case str, char:
			switch {
			case ch == '\\' && i+1 < len(out):
				i++
			case ch == '"' && state == str, ch == '\'' && state == char, ch == '\n':
				state = code
			}
		case line:
			if ch == '\n' {
				state = code
			} else {
				out[i] = ' '
			}
		case block:
			if ch == '*' && i+1 < len(out) && out[i+1] == '/' {
				out[i], out[i+1] = ' ', ' '
				i++
				state = code
			} else if ch != '\n' {
				out[i] = ' '
			}
		}
	}
	return out
}

// unquoteC decodes the escapes cString produces plus the common C ones.
func unquoteC(lit string) (string, error) {
	body := lit[1 : len(lit)-1]
	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		ch := body[i]
		if ch != '\\' {
			out = append(out, ch)
			continue
		}
		i++
		if i >= len(body) {
			return "", fmt.Errorf("trailing backslash in %s", lit)
		}
		switch e := body[i]; e {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case '"', '\\', '?', '\'':
			out = append(out, e)
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(body) && j < i+3 && body[j] >= '0' && body[j] <= '7' {
				j++
			}
			n, err := strconv.ParseUint(body[i:j], 8, 8)
			if err != nil {
				return "", fmt.Errorf("bad octal escape in %s: %w", lit, err)
			}
			out = append(out, byte(n))
			i = j - 1
		default:
			return "", fmt.Errorf("unsupported escape \\%c in %s", e, lit)
		}
	}
	return string(out), nil
}
