package cli

import (
	"flag"
	"testing"

	"github.com/sardine-ai/go-device-credentials/model"
	"github.com/sardine-ai/go-device-credentials/source"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRepositoryIsBuildTable(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := NewRepositoryFlags(fs, "credentials")
	require.NoError(t, fs.Parse(nil))

	repo, err := f.Repository()
	require.NoError(t, err)
	require.IsType(t, &source.StaticRepository{}, repo)
	assert.Equal(t, "credentials", repo.GetName())
	assert.Equal(t, model.Defaults(), repo.(*source.StaticRepository).Values)
}

func TestRepositoryFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := NewRepositoryFlags(fs, "credentials")
	require.NoError(t, fs.Parse([]string{"-repo_type", "http", "-url", "http://localhost/c.yaml", "-name", "fleet"}))
	t.Setenv("CREDENTIALS_SOURCE_API_KEY", "k")

	repo, err := f.Repository()
	require.NoError(t, err)
	web, ok := repo.(*source.WebRepository)
	require.True(t, ok)
	assert.Equal(t, "fleet", web.GetName())
	assert.Equal(t, "k", web.APIKey)
}

func TestSetupLogging(t *testing.T) {
	defer logrus.SetLevel(logrus.GetLevel())

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := NewRepositoryFlags(fs, "credentials")
	require.NoError(t, fs.Parse([]string{"-log_level", "debug"}))
	f.SetupLogging()
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	require.NoError(t, fs.Parse([]string{"-log_level", "loud"}))
	f.SetupLogging()
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}
