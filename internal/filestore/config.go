package filestore

import "github.com/koustreak/bucketfs/internal/config"

// Provider identifies the file storage backend.
type Provider string

const (
	ProviderMinIO  Provider = "minio"
	ProviderS3     Provider = "s3"
	ProviderMemory Provider = "memory"
)

// Config describes how a driver reaches its object store.
type Config struct {
	Provider Provider

	// Endpoint is host:port, e.g. "localhost:9000". Empty on S3 selects
	// the regional AWS endpoint.
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// Region is required by AWS S3 and ignored by MinIO.
	Region string

	// PathStyle forces path-style bucket addressing on the S3 driver.
	PathStyle bool
}

// DefaultConfig returns a plain-HTTP MinIO config for local development.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
	}
}

// ConfigFromValues resolves a Config from the "storage" section of the
// daemon configuration.
func ConfigFromValues(v config.Values) *Config {
	return &Config{
		Provider:  Provider(v.String("provider", string(ProviderMinIO))),
		Endpoint:  v.String("endpoint", ""),
		AccessKey: v.String("access_key", ""),
		SecretKey: v.String("secret_key", ""),
		UseSSL:    v.Bool("ssl", false),
		Region:    v.String("region", ""),
		PathStyle: v.Bool("path_style", false),
	}
}
