package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// FileRepository is a struct that implements the Repository interface for
// handling credential documents stored in a local YAML file.
type FileRepository struct {
	sync.RWMutex                        // RWMutex to synchronize access to data during refresh
	Name         string                 // Name of the credential source
	Path         string                 // File path of the YAML document
	data         map[string]interface{} // Map to store the decoded document
	rawData      []byte                 // Raw data of the YAML document
}

// GetName returns the name of the credential source.
func (f *FileRepository) GetName() string {
	return f.Name
}

// GetData returns the value stored under configName.
func (f *FileRepository) GetData(configName string) (config interface{}, isPresent bool) {
	f.RLock()
	defer f.RUnlock()
	config, isPresent = f.data[configName]
	return config, isPresent
}

// GetRawData returns the raw data of the YAML document.
func (f *FileRepository) GetRawData() []byte {
	f.RLock()
	defer f.RUnlock()
	return f.rawData
}

// Refresh reads the YAML file and swaps in the decoded document.
func (f *FileRepository) Refresh() error {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		logrus.WithField("path", f.Path).Debug("error reading file")
		return fmt.Errorf("read %s: %w", f.Path, err)
	}

	data, err := decode(raw)
	if err != nil {
		logrus.WithField("path", f.Path).Debug("error unmarshalling file")
		return err
	}

	f.Lock()
	f.data = data
	f.rawData = raw
	f.Unlock()
	return nil
}

// Watch refreshes the repository whenever the file is written, created or
// renamed into place, and calls onChange after each refresh attempt. The
// parent directory is watched so editors that replace the file keep
// working. Watch blocks until ctx is done.
func (f *FileRepository) Watch(ctx context.Context, onChange func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(f.Path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			err := f.Refresh()
			if err != nil {
				logrus.WithError(err).WithField("repository", f.Name).Error("error refreshing watched file")
			} else {
				logrus.WithField("repository", f.Name).Debug("watched file reloaded")
			}
			if onChange != nil {
				onChange(err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logrus.WithError(err).WithField("repository", f.Name).Error("file watcher error")
		}
	}
}
