package config

import "time"

// Audio storage backends selectable with AudioStorage.
const (
	StorageNone = "none"
	StorageHTTP = "http"
	StorageS3   = "s3"
)

// Config holds runtime settings for the fieldrec client.
//
// Durations are time.Duration values; the JSON file spells them as "3s"
// style strings or integer nanoseconds.
type Config struct {
	BaseURL  string
	Pais     string
	Sistema  string
	Ambiente string
	// VariantCountries register recordings through the country endpoint.
	VariantCountries []string

	DBPath string
	KVPath string

	AudioStorage    string
	StorageEndpoint string
	StorageFolder   string
	S3Region        string
	S3Endpoint      string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	S3PublicURL     string

	LogLevel  string
	LogFormat string
	LogFile   string

	RequestTimeout      time.Duration
	FetchTimeout        time.Duration
	QueryTimeout        time.Duration
	OnlineCheckInterval time.Duration

	PurgeBeforeSend bool
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.BaseURL = "http://127.0.0.1:8080/api"
	c.Pais = "PE"
	c.Sistema = "GRABACIONES"
	c.Ambiente = "PRD"
	c.VariantCountries = []string{"PE"}
	c.DBPath = "fieldrec.db"
	c.KVPath = "fieldrec-kv.db"
	c.AudioStorage = StorageNone
	c.StorageFolder = "grabaciones"
	c.LogLevel = "info"
	c.LogFormat = "text"
	c.RequestTimeout = 30 * time.Second
	c.FetchTimeout = 10 * time.Second
	c.QueryTimeout = 2 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
