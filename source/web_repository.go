package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultWebTimeout = 30 * time.Second

// WebRepository is a struct that implements the Repository interface for
// handling credential documents fetched from a remote HTTP endpoint.
type WebRepository struct {
	sync.RWMutex                        // RWMutex to synchronize access to data during refresh
	Name         string                 // Name of the credential source
	data         map[string]interface{} // Map to store the decoded document
	URL          *url.URL               // URL of the remote HTTP endpoint
	rawData      []byte                 // Raw data of the YAML document
	APIKey       string                 // Optional API key for X-API-Key header authentication
	Client       *http.Client           // HTTP client, http.DefaultClient when nil
	Timeout      time.Duration          // Per-request timeout, 30s when zero
}

// GetName returns the name of the credential source.
func (w *WebRepository) GetName() string {
	return w.Name
}

// GetData returns the value stored under configName.
func (w *WebRepository) GetData(configName string) (config interface{}, isPresent bool) {
	w.RLock()
	defer w.RUnlock()
	config, isPresent = w.data[configName]
	return config, isPresent
}

// GetRawData returns the raw data of the YAML document.
func (w *WebRepository) GetRawData() []byte {
	w.RLock()
	defer w.RUnlock()
	return w.rawData
}

// Refresh fetches the YAML document from the remote endpoint and swaps in
// the decoded result.
func (w *WebRepository) Refresh() error {
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = defaultWebTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, w.URL.String(), nil)
	if err != nil {
		logrus.Debug("error creating request")
		return err
	}
	if w.APIKey != "" {
		request.Header.Set("X-API-Key", w.APIKey)
	}

	httpClient := w.Client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(request)
	if err != nil {
		logrus.Debug("error doing request")
		return err
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			logrus.WithError(err).Debug("error closing response body")
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fetch %s: unexpected status %s", w.URL.Redacted(), resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		logrus.Debug("error reading response body")
		return err
	}

	data, err := decode(raw)
	if err != nil {
		logrus.Debug("error unmarshalling response body")
		return err
	}

	w.Lock()
	w.data = data
	w.rawData = raw
	w.Unlock()
	return nil
}
