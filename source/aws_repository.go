package source

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

// AwsS3Repository is a struct that implements the Repository interface for
// handling a credential document stored as a YAML object in an S3 bucket.
type AwsS3Repository struct {
	sync.RWMutex                           // RWMutex to synchronize access to data during refresh
	Name            string                 // Name of the credential source
	data            map[string]interface{} // Map to store the decoded document
	BucketName      string                 // Name of the S3 bucket
	ObjectName      string                 // Key of the YAML object within the bucket
	Region          string                 // Optional region override
	Endpoint        string                 // Optional endpoint for S3 compatible stores, enables path-style addressing
	AccessKeyID     string                 // Optional static access key, default chain when empty
	SecretAccessKey string                 // Secret for AccessKeyID
	Client          *s3.Client             // S3 client instance
	rawData         []byte                 // Raw data of the YAML document
	clientOnce      sync.Once              // Ensures client is initialized only once
	clientInitErr   error                  // Stores error from client initialization
}

func (a *AwsS3Repository) initClient(ctx context.Context) {
	var loadOpts []func(*config.LoadOptions) error
	if a.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(a.Region))
	}
	if a.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(a.AccessKeyID, a.SecretAccessKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		a.clientInitErr = fmt.Errorf("failed to load AWS config: %w", err)
		return
	}
	a.Client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		if a.Endpoint != "" {
			o.BaseEndpoint = aws.String(a.Endpoint)
			o.UsePathStyle = true
		}
	})
}

// Refresh reads the YAML object from the bucket and swaps in the decoded
// document.
func (a *AwsS3Repository) Refresh() error {
	ctx := context.Background()

	// Thread-safe client initialization (only if client not pre-configured)
	if a.Client == nil {
		a.clientOnce.Do(func() { a.initClient(ctx) })
		if a.clientInitErr != nil {
			return a.clientInitErr
		}
	}

	result, err := a.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.BucketName),
		Key:    aws.String(a.ObjectName),
	})
	if err != nil {
		return fmt.Errorf("get s3://%s/%s: %w", a.BucketName, a.ObjectName, err)
	}
	defer result.Body.Close()

	raw, err := io.ReadAll(result.Body)
	if err != nil {
		return err
	}

	data, err := decode(raw)
	if err != nil {
		logrus.Debug("error unmarshalling object")
		return err
	}

	// Only lock for atomic data swap
	a.Lock()
	a.data = data
	a.rawData = raw
	a.Unlock()
	return nil
}

// GetName returns the name of the credential source.
func (a *AwsS3Repository) GetName() string {
	return a.Name
}

// GetData returns the value stored under configName.
func (a *AwsS3Repository) GetData(configName string) (config interface{}, isPresent bool) {
	a.RLock()
	defer a.RUnlock()
	config, isPresent = a.data[configName]
	return config, isPresent
}

// GetRawData returns the raw data of the YAML document.
func (a *AwsS3Repository) GetRawData() []byte {
	a.RLock()
	defer a.RUnlock()
	return a.rawData
}
