package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Configuration keys understood by every repository.
const (
	KeyNetworkName          = "network-name"
	KeyNetworkSecret        = "network-secret"
	KeyServiceHost          = "service-host"
	KeyServiceAPIKey        = "service-api-key"
	KeyServiceAccountEmail  = "service-account-email"
	KeyServiceAccountSecret = "service-account-secret"
)

// Build-time values shipped with an unconfigured device image.
const (
	DefaultNetworkName          = "Your_WiFi_SSID"
	DefaultNetworkSecret        = "Your_WiFi_Password"
	DefaultServiceHost          = "Your_Firebase_Host"
	DefaultServiceAPIKey        = "Your_Firebase_API_Key"
	DefaultServiceAccountEmail  = "Your_Firebase_Email"
	DefaultServiceAccountSecret = "Your_Firebase_Password"
)

const maskedValue = "***"

var (
	ErrUnknownKey = errors.New("unknown credential key")
	ErrMissingKey = errors.New("missing credential key")
)

var names = []string{
	KeyNetworkName,
	KeyNetworkSecret,
	KeyServiceHost,
	KeyServiceAPIKey,
	KeyServiceAccountEmail,
	KeyServiceAccountSecret,
}

var defaults = map[string]string{
	KeyNetworkName:          DefaultNetworkName,
	KeyNetworkSecret:        DefaultNetworkSecret,
	KeyServiceHost:          DefaultServiceHost,
	KeyServiceAPIKey:        DefaultServiceAPIKey,
	KeyServiceAccountEmail:  DefaultServiceAccountEmail,
	KeyServiceAccountSecret: DefaultServiceAccountSecret,
}

var secrets = map[string]bool{
	KeyNetworkSecret:        true,
	KeyServiceAPIKey:        true,
	KeyServiceAccountSecret: true,
}

// Names returns the credential keys in declaration order.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Defaults returns a fresh copy of the build-time placeholder values.
func Defaults() map[string]string {
	out := make(map[string]string, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	return out
}

// IsSecret reports whether the value stored under name must never be
// printed or logged.
func IsSecret(name string) bool {
	return secrets[name]
}

// Network groups the values a device needs to join its wireless network.
type Network struct {
	Name   string
	Secret string
}

// Service groups the values a device needs to authenticate to the backend.
type Service struct {
	Host          string
	APIKey        string
	AccountEmail  string
	AccountSecret string
}

// Credentials is an immutable set of named credential values. The zero
// value holds empty strings. Build one with New or Placeholder and pass it
// to whatever needs it; there is no way to change a record once built.
type Credentials struct {
	networkName          string
	networkSecret        string
	serviceHost          string
	serviceAPIKey        string
	serviceAccountEmail  string
	serviceAccountSecret string
}

// New builds a record from values keyed by the Key constants. Values are
// stored exactly as given. Every key must be present and no other key is
// accepted.
func New(values map[string]string) (Credentials, error) {
	var errs []error
	unknown := make([]string, 0)
	for k := range values {
		if _, ok := defaults[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownKey, k))
	}
	for _, k := range names {
		if _, ok := values[k]; !ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrMissingKey, k))
		}
	}
	if len(errs) > 0 {
		return Credentials{}, errors.Join(errs...)
	}
	return Credentials{
		networkName:          values[KeyNetworkName],
		networkSecret:        values[KeyNetworkSecret],
		serviceHost:          values[KeyServiceHost],
		serviceAPIKey:        values[KeyServiceAPIKey],
		serviceAccountEmail:  values[KeyServiceAccountEmail],
		serviceAccountSecret: values[KeyServiceAccountSecret],
	}, nil
}

// Placeholder returns the record an unconfigured build ships with.
func Placeholder() Credentials {
	c, _ := New(defaults)
	return c
}

func (c Credentials) NetworkName() string { return c.networkName }
func (c Credentials) NetworkSecret() string { return c.networkSecret }
func (c Credentials) ServiceHost() string { return c.serviceHost }
func (c Credentials) ServiceAPIKey() string { return c.serviceAPIKey }
func (c Credentials) ServiceAccountEmail() string { return c.serviceAccountEmail }
func (c Credentials) ServiceAccountSecret() string { return c.serviceAccountSecret }

// Network returns the wireless network values.
func (c Credentials) Network() Network {
	return Network{Name: c.networkName, Secret: c.networkSecret}
}

// Service returns the backend service values.
func (c Credentials) Service() Service {
	return Service{
		Host:          c.serviceHost,
		APIKey:        c.serviceAPIKey,
		AccountEmail:  c.serviceAccountEmail,
		AccountSecret: c.serviceAccountSecret,
	}
}

// Lookup returns the value stored under name.
func (c Credentials) Lookup(name string) (string, bool) {
	switch name {
	case KeyNetworkName:
		return c.networkName, true
	case KeyNetworkSecret:
		return c.networkSecret, true
	case KeyServiceHost:
		return c.serviceHost, true
	case KeyServiceAPIKey:
		return c.serviceAPIKey, true
	case KeyServiceAccountEmail:
		return c.serviceAccountEmail, true
	case KeyServiceAccountSecret:
		return c.serviceAccountSecret, true
	}
	return "", false
}

// Map returns a copy of every value keyed by name.
func (c Credentials) Map() map[string]string {
	out := make(map[string]string, len(names))
	for _, k := range names {
		out[k], _ = c.Lookup(k)
	}
	return out
}

// Masked returns a copy of every value with secrets replaced.
func (c Credentials) Masked() map[string]string {
	out := c.Map()
	for k := range out {
		if IsSecret(k) {
			out[k] = maskedValue
		}
	}
	return out
}

// Placeholders lists, in declaration order, the keys whose value is still
// the build-time placeholder or empty. Consumers call this before trying
// a real connection.
func (c Credentials) Placeholders() []string {
	var out []string
	for _, k := range names {
		v, _ := c.Lookup(k)
		if v == "" || v == defaults[k] {
			out = append(out, k)
		}
	}
	return out
}

// String renders the record with secrets masked.
func (c Credentials) String() string {
	masked := c.Masked()
	var b strings.Builder
	b.WriteString("Credentials{")
	for i, k := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%q", k, masked[k])
	}
	b.WriteString("}")
	return b.String()
}

// GoString keeps %#v from printing the raw fields.
func (c Credentials) GoString() string {
	return c.String()
}
