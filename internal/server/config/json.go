package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/receiptpipe/internal/flagx"
	"github.com/dmitrijs2005/receiptpipe/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "15m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config
// struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddrHTTP              string         `json:"endpoint_addr_http"`
	DatabaseDSN                   string         `json:"database_dsn"`
	SecretKey                     string         `json:"secret_key"`
	OperatorTokenValidityDuration timex.Duration `json:"operator_token_validity_duration"`
	S3RootUser                    string         `json:"s3_root_user"`
	S3RootPassword                string         `json:"s3_root_password"`
	S3Bucket                      string         `json:"s3_bucket"`
	S3Region                      string         `json:"s3_region"`
	S3BaseEndpoint                string         `json:"s3_base_endpoint"`
	QueueName                     string         `json:"queue_name"`
	UploadURLTTL                  timex.Duration `json:"upload_url_ttl"`
	DownloadURLTTL                timex.Duration `json:"download_url_ttl"`
	MaxFilesPerBatch              int            `json:"max_files_per_batch"`
	MaxFileSizeBytes              int64          `json:"max_file_size_bytes"`
	DevMode                       bool           `json:"dev_mode"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The lookup order for the JSON file path is the -c or -config command-line
// flag. If it is not set, no JSON file is loaded.
//
// If the file path is found, parseJson attempts to read and unmarshal it
// into a JsonConfig. The resulting values are copied into the target Config.
// If the file cannot be read or contains invalid JSON, the function panics.
//
// The JsonConfig is seeded from the current Config before unmarshalling, so
// a partial file overlays only the keys it contains; fields absent from the
// file keep their defaults instead of being zeroed.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{
		EndpointAddrHTTP:              config.EndpointAddrHTTP,
		DatabaseDSN:                   config.DatabaseDSN,
		SecretKey:                     config.SecretKey,
		OperatorTokenValidityDuration: timex.Duration{Duration: config.OperatorTokenValidityDuration},
		S3RootUser:                    config.S3RootUser,
		S3RootPassword:                config.S3RootPassword,
		S3Bucket:                      config.S3Bucket,
		S3Region:                      config.S3Region,
		S3BaseEndpoint:                config.S3BaseEndpoint,
		QueueName:                     config.QueueName,
		UploadURLTTL:                  timex.Duration{Duration: config.UploadURLTTL},
		DownloadURLTTL:                timex.Duration{Duration: config.DownloadURLTTL},
		MaxFilesPerBatch:              config.MaxFilesPerBatch,
		MaxFileSizeBytes:              config.MaxFileSizeBytes,
		DevMode:                       config.DevMode,
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.OperatorTokenValidityDuration = time.Duration(c.OperatorTokenValidityDuration.Duration)
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.QueueName = c.QueueName
	config.UploadURLTTL = time.Duration(c.UploadURLTTL.Duration)
	config.DownloadURLTTL = time.Duration(c.DownloadURLTTL.Duration)
	config.MaxFilesPerBatch = c.MaxFilesPerBatch
	config.MaxFileSizeBytes = c.MaxFileSizeBytes
	config.DevMode = c.DevMode
}
