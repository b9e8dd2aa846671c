package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/fieldrec/internal/flagx"
	"github.com/dmitrijs2005/fieldrec/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Absent keys
// leave the corresponding Config field untouched.
type JsonConfig struct {
	BaseURL          string   `json:"base_url"`
	Pais             string   `json:"pais"`
	Sistema          string   `json:"sistema"`
	Ambiente         string   `json:"ambiente"`
	VariantCountries []string `json:"variant_countries"`

	DBPath string `json:"db_path"`
	KVPath string `json:"kv_path"`

	AudioStorage    string `json:"audio_storage"`
	StorageEndpoint string `json:"storage_endpoint"`
	StorageFolder   string `json:"storage_folder"`
	S3Region        string `json:"s3_region"`
	S3Endpoint      string `json:"s3_endpoint"`
	S3Bucket        string `json:"s3_bucket"`
	S3AccessKey     string `json:"s3_access_key"`
	S3SecretKey     string `json:"s3_secret_key"`
	S3PublicURL     string `json:"s3_public_url"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
	LogFile   string `json:"log_file"`

	RequestTimeout      timex.Duration `json:"request_timeout"`
	FetchTimeout        timex.Duration `json:"fetch_timeout"`
	QueryTimeout        timex.Duration `json:"query_timeout"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`

	PurgeBeforeSend *bool `json:"purge_before_send"`
}

// parseJson overlays cfg with the file named by -c/-config. It panics on
// read or unmarshal errors; no flag means no JSON stage.
func parseJson(cfg *Config) {
	path := flagx.ConfigFile(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}
	jc.apply(cfg)
}

func (jc *JsonConfig) apply(cfg *Config) {
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	dur := func(dst *time.Duration, v timex.Duration) {
		if v.Duration > 0 {
			*dst = v.Duration
		}
	}

	str(&cfg.BaseURL, jc.BaseURL)
	str(&cfg.Pais, jc.Pais)
	str(&cfg.Sistema, jc.Sistema)
	str(&cfg.Ambiente, jc.Ambiente)
	if jc.VariantCountries != nil {
		cfg.VariantCountries = jc.VariantCountries
	}

	str(&cfg.DBPath, jc.DBPath)
	str(&cfg.KVPath, jc.KVPath)

	str(&cfg.AudioStorage, jc.AudioStorage)
	str(&cfg.StorageEndpoint, jc.StorageEndpoint)
	str(&cfg.StorageFolder, jc.StorageFolder)
	str(&cfg.S3Region, jc.S3Region)
	str(&cfg.S3Endpoint, jc.S3Endpoint)
	str(&cfg.S3Bucket, jc.S3Bucket)
	str(&cfg.S3AccessKey, jc.S3AccessKey)
	str(&cfg.S3SecretKey, jc.S3SecretKey)
	str(&cfg.S3PublicURL, jc.S3PublicURL)

	str(&cfg.LogLevel, jc.LogLevel)
	str(&cfg.LogFormat, jc.LogFormat)
	str(&cfg.LogFile, jc.LogFile)

	dur(&cfg.RequestTimeout, jc.RequestTimeout)
	dur(&cfg.FetchTimeout, jc.FetchTimeout)
	dur(&cfg.QueryTimeout, jc.QueryTimeout)
	dur(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)

	if jc.PurgeBeforeSend != nil {
		cfg.PurgeBeforeSend = *jc.PurgeBeforeSend
	}
}
