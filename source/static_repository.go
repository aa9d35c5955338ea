package source

import (
	"sync"

	"gopkg.in/yaml.v3"
)

// StaticRepository serves a table compiled into the binary. Refresh only
// re-renders the table, it never fails for string values.
type StaticRepository struct {
	sync.RWMutex
	Name    string
	Values  map[string]string
	data    map[string]interface{}
	rawData []byte
}

// GetName returns the name of the credential source.
func (s *StaticRepository) GetName() string {
	return s.Name
}

// GetData returns the value stored under configName.
func (s *StaticRepository) GetData(configName string) (config interface{}, isPresent bool) {
	s.RLock()
	defer s.RUnlock()
	config, isPresent = s.data[configName]
	return config, isPresent
}

// GetRawData returns the table rendered as YAML.
func (s *StaticRepository) GetRawData() []byte {
	s.RLock()
	defer s.RUnlock()
	return s.rawData
}

// Refresh snapshots Values.
func (s *StaticRepository) Refresh() error {
	data := make(map[string]interface{}, len(s.Values))
	for k, v := range s.Values {
		data[k] = v
	}
	raw, err := yaml.Marshal(s.Values)
	if err != nil {
		return err
	}

	s.Lock()
	s.data = data
	s.rawData = raw
	s.Unlock()
	return nil
}
