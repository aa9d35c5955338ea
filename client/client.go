package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sardine-ai/go-device-credentials/model"
	"github.com/sardine-ai/go-device-credentials/source"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var (
	ErrConfigNotFound = errors.New("config not found")
	ErrTypeMismatch   = errors.New("config type mismatch")
)

type Client struct {
	Repository      source.Repository
	RefreshInterval time.Duration
	cancel          context.CancelFunc
	done            chan struct{}
}

// NewClient creates a new Client with the provided context, repository,
// and refresh interval. The repository is refreshed once before NewClient
// returns, then periodically in the background until Close is called or
// ctx is canceled. A non-positive interval disables background refresh.
func NewClient(ctx context.Context, repository source.Repository, refreshInterval time.Duration) *Client {
	ctx, cancel := context.WithCancel(ctx)

	client := &Client{
		Repository:      repository,
		RefreshInterval: refreshInterval,
		cancel:          cancel,
		done:            make(chan struct{}),
	}

	err := client.Repository.Refresh()
	if err != nil {
		logrus.WithError(err).WithField("repository", repository.GetName()).Error("error refreshing repository")
	}

	if refreshInterval > 0 {
		go refresh(ctx, client)
	} else {
		close(client.done)
	}

	return client
}

// refresh periodically refreshes the repository until ctx is canceled.
func refresh(ctx context.Context, client *Client) {
	defer close(client.done)
	ticker := time.NewTicker(client.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			err := client.Repository.Refresh()
			if err != nil {
				logrus.WithError(err).WithField("repository", client.Repository.GetName()).Error("error refreshing repository")
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close stops the background refresh goroutine and waits for it to exit.
func (c *Client) Close() {
	c.cancel()
	<-c.done
}

// GetConfig retrieves the value with the given name from the repository
// and decodes it into data, which must be a non-nil pointer. Decoding goes
// through YAML so structs with yaml tags and scalar conversions work.
func (c *Client) GetConfig(name string, data interface{}) error {
	config, ok := c.Repository.GetData(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, name)
	}
	marshal, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	err = yaml.Unmarshal(marshal, data)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTypeMismatch, name, err)
	}
	return nil
}

// GetConfigArrayOfStrings retrieves a list of strings.
func (c *Client) GetConfigArrayOfStrings(name string) ([]string, error) {
	config, ok := c.Repository.GetData(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, name)
	}

	switch v := config.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s is not an array of strings", ErrTypeMismatch, name)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s is not an array of strings", ErrTypeMismatch, name)
}

// GetConfigString retrieves a string value.
func (c *Client) GetConfigString(name string) (string, error) {
	config, ok := c.Repository.GetData(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrConfigNotFound, name)
	}

	configString, ok := config.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is not a string", ErrTypeMismatch, name)
	}
	return configString, nil
}

// GetConfigInt retrieves an int value.
func (c *Client) GetConfigInt(name string) (int, error) {
	config, ok := c.Repository.GetData(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrConfigNotFound, name)
	}
	configInt, ok := config.(int)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not an int", ErrTypeMismatch, name)
	}
	return configInt, nil
}

// GetConfigFloat retrieves a float64 value.
func (c *Client) GetConfigFloat(name string) (float64, error) {
	config, ok := c.Repository.GetData(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrConfigNotFound, name)
	}
	configFloat, ok := config.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not a float", ErrTypeMismatch, name)
	}
	return configFloat, nil
}

// Credentials builds an immutable snapshot of the credential keys from
// the repository's current document. Scalars are taken as written in the
// document, so 0123 stays "0123" rather than becoming a number.
func (c *Client) Credentials() (model.Credentials, error) {
	return build(c.Repository)
}

// Load refreshes repository once and builds the record from it. Use it at
// startup when the values are needed once and never re-read.
func Load(repository source.Repository) (model.Credentials, error) {
	if err := repository.Refresh(); err != nil {
		return model.Credentials{}, fmt.Errorf("refresh %s: %w", repository.GetName(), err)
	}
	return build(repository)
}

// build reads the raw document rather than the decoded map: decoding
// resolves unquoted scalars to ints, floats and bools and loses their text.
func build(repository source.Repository) (model.Credentials, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(repository.GetRawData(), &doc); err != nil {
		return model.Credentials{}, fmt.Errorf("decode %s: %w", repository.GetName(), err)
	}

	values := make(map[string]string)
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	switch {
	case root.Kind == 0:
		// empty document
	case root.Kind == yaml.ScalarNode && root.Tag == "!!null":
	case root.Kind != yaml.MappingNode:
		return model.Credentials{}, fmt.Errorf("%w: %s: document is not a mapping", ErrTypeMismatch, repository.GetName())
	default:
		wanted := make(map[string]bool)
		for _, name := range model.Names() {
			wanted[name] = true
		}
		var errs []error
		for i := 0; i+1 < len(root.Content); i += 2 {
			name := root.Content[i].Value
			if !wanted[name] {
				continue
			}
			s, err := scalarText(root.Content[i+1])
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s: %v", ErrTypeMismatch, name, err))
				continue
			}
			values[name] = s
		}
		if len(errs) > 0 {
			return model.Credentials{}, errors.Join(errs...)
		}
	}
	return model.New(values)
}

// scalarText returns the source text of a scalar node. Quoted and block
// scalars come back with their escapes resolved, plain ones verbatim.
func scalarText(node *yaml.Node) (string, error) {
	if node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	if node.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("expected a scalar, got %s", kindName(node.Kind))
	}
	if node.Tag == "!!null" && node.Style == 0 {
		return "", nil
	}
	return node.Value, nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.MappingNode:
		return "a mapping"
	case yaml.SequenceNode:
		return "a sequence"
	}
	return "a non-scalar"
}
