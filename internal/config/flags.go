package config

import (
	"flag"
	"os"
	"time"

	"github.com/snapkeeper/snapkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-m string   metadata backend ("file" or "postgres")
//	-f string   metadata snapshot path (file backend)
//	-d string   PostgreSQL DSN (postgres backend)
//	-o string   blob backend ("fs" or "s3")
//	-l string   blob root directory (fs backend)
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-x string   detection backend ("static" or "vision")
//	-t int      detection timeout, seconds
//	-r int      detection retries for transient failures
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-m", "-f", "-d", "-o", "-l", "-u", "-p", "-b", "-g", "-e", "-x", "-t", "-r"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.MetadataBackend, "m", config.MetadataBackend, "metadata backend (file|postgres)")
	fs.StringVar(&config.MetadataPath, "f", config.MetadataPath, "metadata snapshot path")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")

	fs.StringVar(&config.BlobBackend, "o", config.BlobBackend, "blob backend (fs|s3)")
	fs.StringVar(&config.BlobDir, "l", config.BlobDir, "blob root directory")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.DetectBackend, "x", config.DetectBackend, "detection backend (static|vision)")
	detectTimeout := fs.Int("t", int(config.DetectTimeout.Seconds()), "detection timeout (in seconds)")
	fs.IntVar(&config.DetectRetries, "r", config.DetectRetries, "detection retries")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.DetectTimeout = time.Duration(*detectTimeout) * time.Second
}
