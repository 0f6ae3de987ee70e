package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/receiptpipe/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   operator token HMAC secret key
//	-t int      operator token validity, minutes
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-q string   work queue name
//	-m int      max files per batch
//	-dev        enable development mode (error details in responses)
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - Duration flags are accepted as integers in minutes and then converted
//     to time.Duration values.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-u", "-p", "-b", "-g", "-e", "-q", "-m", "-dev"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	operatorTokenValidityDuration := fs.Int("t", int(config.OperatorTokenValidityDuration.Minutes()), "operator_token_validity_duration (in minutes)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.QueueName, "q", config.QueueName, "work queue name")
	fs.IntVar(&config.MaxFilesPerBatch, "m", config.MaxFilesPerBatch, "max files per batch")
	fs.BoolVar(&config.DevMode, "dev", config.DevMode, "development mode")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.OperatorTokenValidityDuration = time.Duration(*operatorTokenValidityDuration) * time.Minute
}
