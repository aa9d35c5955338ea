package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/sirupsen/logrus"
)

// GitRepository is a struct that implements the Repository interface for
// handling a credential document stored in a Git repository. The
// repository is cloned into memory on the first refresh and pulled after.
//
// Hosted git providers rate limit clones and pulls; prefer publishing the
// document to S3 or GCS from CI for fleets that refresh often.
type GitRepository struct {
	sync.RWMutex                         // RWMutex to synchronize access to data during refresh
	Name          string                 // Name of the credential source
	data          map[string]interface{} // Map to store the decoded document
	URL           *url.URL               // URL of the Git repository
	Path          string                 // Path to the YAML document within the repository
	gitRepository *git.Repository        // In-memory clone
	Branch        string                 // Branch to check out, remote HEAD when empty
	Auth          *http.BasicAuth        // Optional credentials for clone and pull
	fs            billy.Filesystem       // Worktree filesystem of the in-memory clone
	rawData       []byte                 // Raw data of the YAML document
	syncMu        sync.Mutex             // Serializes clone/pull
}

// GetName returns the name of the credential source.
func (g *GitRepository) GetName() string {
	return g.Name
}

// GetData returns the value stored under configName.
func (g *GitRepository) GetData(configName string) (config interface{}, isPresent bool) {
	g.RLock()
	defer g.RUnlock()
	config, isPresent = g.data[configName]
	return config, isPresent
}

// GetRawData returns the raw data of the YAML document.
func (g *GitRepository) GetRawData() []byte {
	g.RLock()
	defer g.RUnlock()
	return g.rawData
}

// Refresh clones or pulls the repository and decodes the document at Path.
func (g *GitRepository) Refresh() error {
	g.syncMu.Lock()
	defer g.syncMu.Unlock()

	if g.fs == nil {
		if err := g.clone(); err != nil {
			return err
		}
	} else if err := g.pull(); err != nil {
		return err
	}

	file, err := g.fs.Open(g.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", g.Path, err)
	}
	defer func(file billy.File) {
		err := file.Close()
		if err != nil {
			logrus.WithError(err).Error("error closing file")
		}
	}(file)

	raw, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", g.Path, err)
	}

	data, err := decode(raw)
	if err != nil {
		logrus.Debug("error unmarshalling file")
		return err
	}

	g.Lock()
	g.data = data
	g.rawData = raw
	g.Unlock()
	return nil
}

func (g *GitRepository) clone() error {
	fs := memfs.New()
	logrus.Debugf("Cloning %s into memory", g.URL.Redacted())
	r, err := git.CloneContext(context.Background(), memory.NewStorage(), fs, &git.CloneOptions{
		URL:  g.URL.String(),
		Auth: g.Auth,
	})
	if err != nil {
		return err
	}

	if g.Branch != "" {
		w, err := r.Worktree()
		if err != nil {
			return err
		}
		err = r.Fetch(&git.FetchOptions{
			RefSpecs: []config.RefSpec{"refs/*:refs/*", "HEAD:refs/heads/HEAD"},
			Auth:     g.Auth,
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return err
		}
		err = w.Checkout(&git.CheckoutOptions{
			Branch: plumbing.NewBranchReferenceName(g.Branch),
			Force:  true,
		})
		if err != nil {
			return err
		}
	}

	logrus.Debug("Cloned")
	g.gitRepository = r
	g.fs = fs
	return nil
}

func (g *GitRepository) pull() error {
	w, err := g.gitRepository.Worktree()
	if err != nil {
		return err
	}
	logrus.Debug("Pulling")

	pullOptions := &git.PullOptions{
		Auth: g.Auth,
	}
	if g.Branch != "" {
		pullOptions = &git.PullOptions{
			ReferenceName: plumbing.NewBranchReferenceName(g.Branch),
			Force:         true,
			SingleBranch:  true,
			Auth:          g.Auth,
		}
	}

	err = w.PullContext(context.Background(), pullOptions)
	switch {
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		logrus.Debug("Already up to date")
	case err != nil:
		return err
	default:
		logrus.Debug("Pulled")
	}
	return nil
}
