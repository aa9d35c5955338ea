package source

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/sardine-ai/go-device-credentials/model"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// EnvRepository reads credential values from environment variables named
// Prefix followed by the upper snake case key, e.g. DEVICE_NETWORK_NAME.
// When DotEnvPath is set the file supplies values the process environment
// does not; the process environment always wins.
type EnvRepository struct {
	sync.RWMutex
	Name       string
	Prefix     string
	DotEnvPath string
	// Keys overrides the set of keys to look up. Defaults to model.Names().
	Keys    []string
	data    map[string]interface{}
	rawData []byte
}

// EnvName returns the variable consulted for key.
func EnvName(prefix, key string) string {
	return prefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// GetName returns the name of the credential source.
func (e *EnvRepository) GetName() string {
	return e.Name
}

// GetData returns the value stored under configName.
func (e *EnvRepository) GetData(configName string) (config interface{}, isPresent bool) {
	e.RLock()
	defer e.RUnlock()
	config, isPresent = e.data[configName]
	return config, isPresent
}

// GetRawData returns the values found, rendered as YAML.
func (e *EnvRepository) GetRawData() []byte {
	e.RLock()
	defer e.RUnlock()
	return e.rawData
}

// Refresh re-reads the dotenv file and the process environment.
func (e *EnvRepository) Refresh() error {
	fileValues := map[string]string{}
	if e.DotEnvPath != "" {
		var err error
		fileValues, err = godotenv.Read(e.DotEnvPath)
		if err != nil {
			logrus.WithField("path", e.DotEnvPath).Debug("error reading dotenv file")
			return fmt.Errorf("read dotenv %s: %w", e.DotEnvPath, err)
		}
	}

	keys := e.Keys
	if len(keys) == 0 {
		keys = model.Names()
	}

	values := make(map[string]string, len(keys))
	for _, key := range keys {
		name := EnvName(e.Prefix, key)
		if v, ok := os.LookupEnv(name); ok {
			values[key] = v
			continue
		}
		if v, ok := fileValues[name]; ok {
			values[key] = v
		}
	}

	raw, err := yaml.Marshal(values)
	if err != nil {
		return err
	}
	data := make(map[string]interface{}, len(values))
	for k, v := range values {
		data[k] = v
	}

	e.Lock()
	e.data = data
	e.rawData = raw
	e.Unlock()
	return nil
}
