// Package cli holds the flag and logging setup shared by the commands.
package cli

import (
	"flag"
	"os"
	"time"

	"github.com/sardine-ai/go-device-credentials/model"
	"github.com/sardine-ai/go-device-credentials/source"
	"github.com/sirupsen/logrus"
)

// RepositoryFlags registers the flags that select and configure a
// repository on fs.
type RepositoryFlags struct {
	opts     source.Options
	logLevel string
	logJSON  bool
}

func NewRepositoryFlags(fs *flag.FlagSet, defaultName string) *RepositoryFlags {
	f := &RepositoryFlags{}
	fs.StringVar(&f.opts.Type, "repo_type", source.TypeStatic, "repository type: static, env, fs, http, git, s3, gcs")
	fs.StringVar(&f.opts.Name, "name", defaultName, "repository name, also the path it is served under")
	fs.StringVar(&f.opts.Path, "path", "", "path to the file (fs) or within the repository (git)")
	fs.StringVar(&f.opts.URL, "url", "", "url of the document (http) or repository (git)")
	fs.StringVar(&f.opts.Branch, "branch", "", "git branch")
	fs.StringVar(&f.opts.Bucket, "bucket", "", "bucket name (s3, gcs)")
	fs.StringVar(&f.opts.Object, "object", "", "object name (s3, gcs)")
	fs.StringVar(&f.opts.Region, "region", "", "aws region (s3)")
	fs.StringVar(&f.opts.Endpoint, "endpoint", "", "endpoint of an s3 compatible store")
	fs.StringVar(&f.opts.EnvPrefix, "env_prefix", "DEVICE_", "variable prefix (env)")
	fs.StringVar(&f.opts.DotEnvPath, "dotenv", "", "optional dotenv file (env)")
	fs.DurationVar(&f.opts.Timeout, "timeout", 30*time.Second, "request timeout (http, gcs)")
	fs.StringVar(&f.logLevel, "log_level", "info", "log level")
	fs.BoolVar(&f.logJSON, "log_json", false, "log as JSON")
	return f
}

// Repository builds the selected repository. Secrets for remote stores are
// only read from the environment so they never show up in process lists.
func (f *RepositoryFlags) Repository() (source.Repository, error) {
	opts := f.opts
	opts.APIKey = os.Getenv("CREDENTIALS_SOURCE_API_KEY")
	opts.AccessKeyID = os.Getenv("CREDENTIALS_S3_ACCESS_KEY_ID")
	opts.SecretAccessKey = os.Getenv("CREDENTIALS_S3_SECRET_ACCESS_KEY")
	if opts.Type == source.TypeStatic || opts.Type == "" {
		opts.Values = BuildValues()
	}
	return source.NewRepository(opts)
}

// SetupLogging applies the logging flags to the standard logrus logger.
func (f *RepositoryFlags) SetupLogging() {
	level, err := logrus.ParseLevel(f.logLevel)
	if err != nil {
		logrus.WithError(err).Warn("invalid log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if f.logJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}

// Values compiled into the binary. Override at build time with
//
//	-ldflags "-X github.com/sardine-ai/go-device-credentials/internal/cli.networkName=..."
var (
	networkName          = model.DefaultNetworkName
	networkSecret        = model.DefaultNetworkSecret
	serviceHost          = model.DefaultServiceHost
	serviceAPIKey        = model.DefaultServiceAPIKey
	serviceAccountEmail  = model.DefaultServiceAccountEmail
	serviceAccountSecret = model.DefaultServiceAccountSecret
)

// BuildValues returns the table compiled into the binary.
func BuildValues() map[string]string {
	return map[string]string{
		model.KeyNetworkName:          networkName,
		model.KeyNetworkSecret:        networkSecret,
		model.KeyServiceHost:          serviceHost,
		model.KeyServiceAPIKey:        serviceAPIKey,
		model.KeyServiceAccountEmail:  serviceAccountEmail,
		model.KeyServiceAccountSecret: serviceAccountSecret,
	}
}
