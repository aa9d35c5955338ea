package source

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Repository is a source of credential documents. Implementations keep the
// last successfully decoded document in memory and replace it atomically
// on Refresh, so readers never observe a half-applied update.
type Repository interface {
	GetName() string
	GetData(configName string) (config interface{}, isPresent bool)
	GetRawData() []byte
	Refresh() error
}

// Repository types accepted by NewRepository.
const (
	TypeStatic = "static"
	TypeEnv    = "env"
	TypeFile   = "fs"
	TypeWeb    = "http"
	TypeGit    = "git"
	TypeS3     = "s3"
	TypeGCS    = "gcs"
)

var (
	ErrUnknownType   = errors.New("unknown repository type")
	ErrMissingOption = errors.New("missing repository option")
)

// Options collects the settings any repository type may need. Fields not
// used by the selected type are ignored.
type Options struct {
	Type string
	Name string

	// fs, git
	Path string
	// http, git
	URL    string
	APIKey string
	Branch string
	// s3, gcs
	Bucket          string
	Object          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	// env
	EnvPrefix  string
	DotEnvPath string
	// static
	Values map[string]string

	Timeout time.Duration
}

// NewRepository builds a repository from opts.
func NewRepository(opts Options) (Repository, error) {
	switch opts.Type {
	case TypeStatic, "":
		return &StaticRepository{Name: opts.Name, Values: opts.Values}, nil
	case TypeEnv:
		return &EnvRepository{Name: opts.Name, Prefix: opts.EnvPrefix, DotEnvPath: opts.DotEnvPath}, nil
	case TypeFile:
		if opts.Path == "" {
			return nil, fmt.Errorf("%w: path is required for %s", ErrMissingOption, opts.Type)
		}
		return &FileRepository{Name: opts.Name, Path: opts.Path}, nil
	case TypeWeb:
		u, err := requireURL(opts)
		if err != nil {
			return nil, err
		}
		return &WebRepository{Name: opts.Name, URL: u, APIKey: opts.APIKey, Timeout: opts.Timeout}, nil
	case TypeGit:
		u, err := requireURL(opts)
		if err != nil {
			return nil, err
		}
		if opts.Path == "" {
			return nil, fmt.Errorf("%w: path is required for %s", ErrMissingOption, opts.Type)
		}
		return &GitRepository{Name: opts.Name, URL: u, Path: opts.Path, Branch: opts.Branch}, nil
	case TypeS3:
		if opts.Bucket == "" || opts.Object == "" {
			return nil, fmt.Errorf("%w: bucket and object are required for %s", ErrMissingOption, opts.Type)
		}
		return &AwsS3Repository{
			Name:            opts.Name,
			BucketName:      opts.Bucket,
			ObjectName:      opts.Object,
			Region:          opts.Region,
			Endpoint:        opts.Endpoint,
			AccessKeyID:     opts.AccessKeyID,
			SecretAccessKey: opts.SecretAccessKey,
		}, nil
	case TypeGCS:
		if opts.Bucket == "" || opts.Object == "" {
			return nil, fmt.Errorf("%w: bucket and object are required for %s", ErrMissingOption, opts.Type)
		}
		return &GcpStorageRepository{Name: opts.Name, BucketName: opts.Bucket, ObjectName: opts.Object, Timeout: opts.Timeout}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, opts.Type)
}

func requireURL(opts Options) (*url.URL, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("%w: url is required for %s", ErrMissingOption, opts.Type)
	}
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	return u, nil
}

// decode unmarshals a YAML document into a fresh map. An empty document
// decodes to an empty, non-nil map.
func decode(raw []byte) (map[string]interface{}, error) {
	data := make(map[string]interface{})
	if len(strings.TrimSpace(string(raw))) == 0 {
		return data, nil
	}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if data == nil {
		data = make(map[string]interface{})
	}
	return data, nil
}
