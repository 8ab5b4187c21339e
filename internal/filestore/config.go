package filestore

// Provider names an object store backend.
type Provider string

const ProviderMinIO Provider = "minio"

// Config is what a provider needs to connect.
type Config struct {
	Provider  Provider
	Endpoint  string // host:port, no scheme
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string // empty for MinIO
}

// DefaultConfig returns a MinIO config without TLS.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
	}
}
