// Package render writes credential records in the formats device builds
// consume.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/google/renameio/v2"
	"github.com/sardine-ai/go-device-credentials/model"
)

var ErrPlaceholders = errors.New("credentials still hold placeholder values")

const defaultGuard = "CONFIG_H"

// HeaderOptions controls Header output.
type HeaderOptions struct {
	// Guard is the include guard macro, CONFIG_H when empty.
	Guard string
	// AllowPlaceholders lets records with placeholder or empty values
	// through. When false Header returns ErrPlaceholders instead.
	AllowPlaceholders bool
}

type headerVar struct {
	Ident string
	Key   string
}

type headerGroup struct {
	Comment string
	Vars    []headerVar
}

var headerGroups = []headerGroup{
	{
		Comment: "WiFi Credentials",
		Vars: []headerVar{
			{Ident: "ssid", Key: model.KeyNetworkName},
			{Ident: "password", Key: model.KeyNetworkSecret},
		},
	},
	{
		Comment: "Firebase Credentials",
		Vars: []headerVar{
			{Ident: "firebaseHost", Key: model.KeyServiceHost},
			{Ident: "firebaseApiKey", Key: model.KeyServiceAPIKey},
			{Ident: "firebaseEmail", Key: model.KeyServiceAccountEmail},
			{Ident: "firebasePassword", Key: model.KeyServiceAccountSecret},
		},
	},
}

var headerTemplate = template.Must(template.New("header").Funcs(template.FuncMap{
	"value": func(c model.Credentials, key string) string {
		v, _ := c.Lookup(key)
		return cString(v)
	},
}).Parse(`#ifndef {{.Guard}}
#define {{.Guard}}
{{range .Groups}}
// {{.Comment}}
{{range .Vars}}const char* {{.Ident}} = {{value $.Credentials .Key}};
{{end}}{{end}}
#endif
`))

// Header writes c as a C header declaring one string constant per key.
func Header(w io.Writer, c model.Credentials, opts HeaderOptions) error {
	if !opts.AllowPlaceholders {
		if names := c.Placeholders(); len(names) > 0 {
			return fmt.Errorf("%w: %s", ErrPlaceholders, strings.Join(names, ", "))
		}
	}
	guard := opts.Guard
	if guard == "" {
		guard = defaultGuard
	}
	if !validIdent(guard) {
		return fmt.Errorf("invalid include guard %q", guard)
	}
	return headerTemplate.Execute(w, struct {
		Guard       string
		Groups      []headerGroup
		Credentials model.Credentials
	}{guard, headerGroups, c})
}

// WriteHeaderFile renders the header and atomically replaces path with
// it. The file is created with mode 0600 since it holds secrets.
func WriteHeaderFile(path string, c model.Credentials, opts HeaderOptions) error {
	var buf bytes.Buffer
	if err := Header(&buf, c, opts); err != nil {
		return err
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadHeaderFile is the inverse of WriteHeaderFile for headers this
// package produced. Unknown declarations are ignored.
func ReadHeaderFile(path string) (model.Credentials, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Credentials{}, err
	}
	return ParseHeader(raw)
}

// cString quotes s as a C string literal.
func cString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '?':
			// avoid trigraphs
			b.WriteString(`\?`)
		default:
			if ch < 0x20 || ch == 0x7f {
				fmt.Fprintf(&b, `\%03o`, ch)
			} else {
				b.WriteByte(ch)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
