package source

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"
)

const defaultObjectTimeout = 30 * time.Second

// GcpStorageRepository serves a credential document kept as a YAML object
// in a GCS bucket. The object is only downloaded again when its
// generation changes.
type GcpStorageRepository struct {
	sync.RWMutex
	Name       string
	BucketName string
	ObjectName string
	Client     *storage.Client
	Timeout    time.Duration // per refresh, 30s when zero

	data       map[string]interface{}
	rawData    []byte
	generation int64

	clientOnce    sync.Once
	clientInitErr error
}

func (g *GcpStorageRepository) object(ctx context.Context) (*storage.ObjectHandle, error) {
	if g.Client == nil {
		g.clientOnce.Do(func() {
			g.Client, g.clientInitErr = storage.NewClient(ctx)
		})
		if g.clientInitErr != nil {
			return nil, g.clientInitErr
		}
	}
	return g.Client.Bucket(g.BucketName).Object(g.ObjectName), nil
}

// Refresh swaps in the object's current document. An unchanged
// generation keeps the decoded document without downloading it.
func (g *GcpStorageRepository) Refresh() error {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = defaultObjectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	obj, err := g.object(ctx)
	if err != nil {
		return err
	}
	uri := fmt.Sprintf("gs://%s/%s", g.BucketName, g.ObjectName)

	attrs, err := obj.Attrs(ctx)
	if err != nil {
		return fmt.Errorf("stat %s: %w", uri, err)
	}
	if gen := g.Generation(); gen != 0 && gen == attrs.Generation {
		logrus.WithField("object", uri).Debug("object generation unchanged")
		return nil
	}

	reader, err := obj.NewReader(ctx)
	if err != nil {
		return fmt.Errorf("open %s: %w", uri, err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("read %s: %w", uri, err)
	}
	data, err := decode(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", uri, err)
	}

	g.Lock()
	g.data = data
	g.rawData = raw
	g.generation = attrs.Generation
	g.Unlock()
	return nil
}

// Generation is the object generation of the loaded document, zero
// before the first successful refresh.
func (g *GcpStorageRepository) Generation() int64 {
	g.RLock()
	defer g.RUnlock()
	return g.generation
}

func (g *GcpStorageRepository) GetName() string {
	return g.Name
}

func (g *GcpStorageRepository) GetData(configName string) (config interface{}, isPresent bool) {
	g.RLock()
	defer g.RUnlock()
	config, isPresent = g.data[configName]
	return config, isPresent
}

func (g *GcpStorageRepository) GetRawData() []byte {
	g.RLock()
	defer g.RUnlock()
	return g.rawData
}
