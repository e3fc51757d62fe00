package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/sealbox/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-k int      PBKDF2 iterations for new envelopes
//	-i int      reminder dispatch interval, seconds
//	-n int      reminder dispatch batch size
//	-m string   SMTP relay host
//	-o int      SMTP relay port
//	-f string   mail From address
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-w string   path to the family-membership JSON snapshot
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - The dispatch interval is accepted as an integer in seconds and then
//     converted to a time.Duration value.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-k", "-i", "-n", "-m", "-o", "-f", "-u", "-p", "-b", "-g", "-e", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.IntVar(&config.KDFIterations, "k", config.KDFIterations, "PBKDF2 iterations for new envelopes")

	dispatchInterval := fs.Int("i", int(config.ReminderDispatchInterval.Seconds()), "reminder dispatch interval (in seconds)")
	fs.IntVar(&config.ReminderDispatchBatch, "n", config.ReminderDispatchBatch, "reminder dispatch batch size")

	fs.StringVar(&config.SMTPHost, "m", config.SMTPHost, "SMTP relay host")
	fs.IntVar(&config.SMTPPort, "o", config.SMTPPort, "SMTP relay port")
	fs.StringVar(&config.SMTPFrom, "f", config.SMTPFrom, "mail From address")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.FamilyDirectoryFile, "w", config.FamilyDirectoryFile, "family membership JSON snapshot")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.ReminderDispatchInterval = time.Duration(*dispatchInterval) * time.Second
}
