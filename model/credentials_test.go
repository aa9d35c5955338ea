package model

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceholderValues(t *testing.T) {
	c := Placeholder()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{KeyNetworkName, c.NetworkName(), "Your_WiFi_SSID"},
		{KeyNetworkSecret, c.NetworkSecret(), "Your_WiFi_Password"},
		{KeyServiceHost, c.ServiceHost(), "Your_Firebase_Host"},
		{KeyServiceAPIKey, c.ServiceAPIKey(), "Your_Firebase_API_Key"},
		{KeyServiceAccountEmail, c.ServiceAccountEmail(), "Your_Firebase_Email"},
		{KeyServiceAccountSecret, c.ServiceAccountSecret(), "Your_Firebase_Password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
			v, ok := c.Lookup(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestNewStoresValuesUnmodified(t *testing.T) {
	values := map[string]string{
		KeyNetworkName:          "  home net ",
		KeyNetworkSecret:        "p@ss\"word\n",
		KeyServiceHost:          "example.firebaseio.com",
		KeyServiceAPIKey:        "AIza-123",
		KeyServiceAccountEmail:  "device@example.com",
		KeyServiceAccountSecret: "",
	}
	c, err := New(values)
	require.NoError(t, err)

	if diff := cmp.Diff(values, c.Map()); diff != "" {
		t.Errorf("Map() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Network{Name: "  home net ", Secret: "p@ss\"word\n"}, c.Network())
	assert.Equal(t, Service{
		Host:          "example.firebaseio.com",
		APIKey:        "AIza-123",
		AccountEmail:  "device@example.com",
		AccountSecret: "",
	}, c.Service())
}

func TestNewRejectsUnknownAndMissingKeys(t *testing.T) {
	values := Defaults()
	delete(values, KeyServiceHost)
	values["hostname"] = "x"

	_, err := New(values)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownKey))
	assert.True(t, errors.Is(err, ErrMissingKey))
	assert.Contains(t, err.Error(), `"hostname"`)
	assert.Contains(t, err.Error(), `"service-host"`)
}

func TestRecordIsNotAffectedByCallerMaps(t *testing.T) {
	values := Defaults()
	c, err := New(values)
	require.NoError(t, err)

	values[KeyNetworkName] = "changed"
	m := c.Map()
	m[KeyNetworkSecret] = "changed"
	d := Defaults()
	d[KeyServiceHost] = "changed"

	assert.Equal(t, DefaultNetworkName, c.NetworkName())
	assert.Equal(t, DefaultNetworkSecret, c.NetworkSecret())
	assert.Equal(t, DefaultServiceHost, Placeholder().ServiceHost())

	n := Names()
	n[0] = "changed"
	assert.Equal(t, KeyNetworkName, Names()[0])
}

func TestLookupUnknownName(t *testing.T) {
	v, ok := Placeholder().Lookup("ssid")
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestRepeatedReadsAreIdentical(t *testing.T) {
	c := Placeholder()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				for _, k := range Names() {
					v, ok := c.Lookup(k)
					if !ok || v != Defaults()[k] {
						t.Errorf("Lookup(%q) = %q, %v", k, v, ok)
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}

func TestMaskedAndString(t *testing.T) {
	c := Placeholder()
	masked := c.Masked()
	assert.Equal(t, "***", masked[KeyNetworkSecret])
	assert.Equal(t, "***", masked[KeyServiceAPIKey])
	assert.Equal(t, "***", masked[KeyServiceAccountSecret])
	assert.Equal(t, DefaultNetworkName, masked[KeyNetworkName])

	for _, s := range []string{c.String(), fmt.Sprintf("%v", c), fmt.Sprintf("%#v", c)} {
		assert.NotContains(t, s, DefaultNetworkSecret)
		assert.NotContains(t, s, DefaultServiceAPIKey)
		assert.NotContains(t, s, DefaultServiceAccountSecret)
		assert.Contains(t, s, DefaultNetworkName)
	}
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, Names(), Placeholder().Placeholders())

	values := Defaults()
	values[KeyNetworkName] = "office"
	values[KeyNetworkSecret] = "hunter2"
	values[KeyServiceHost] = ""
	c, err := New(values)
	require.NoError(t, err)
	assert.Equal(t, []string{
		KeyServiceHost,
		KeyServiceAPIKey,
		KeyServiceAccountEmail,
		KeyServiceAccountSecret,
	}, c.Placeholders())
}
