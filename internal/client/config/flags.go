package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/fieldrec/internal/flagx"
)

// ValueFlags lists the flags parseFlags understands that consume the next
// token. The command dispatcher needs it to find the first positional arg.
var ValueFlags = []string{"-c", "-config", "-a", "-p", "-d", "-k", "-s", "-i", "-l", "-vc"}

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   base URL of the recordings API
//	-p string   country code sent in the Sesion header
//	-d string   structured store path
//	-k string   key-value store path
//	-s string   audio storage backend: none, http or s3
//	-i int      online check interval in seconds
//	-l string   log level
//	-vc string  comma separated countries using the country endpoint
//	-purge      purge pending rows before each send
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], append([]string{"-purge"}, ValueFlags[2:]...))

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.BaseURL, "a", cfg.BaseURL, "base URL of the recordings API")
	fs.StringVar(&cfg.Pais, "p", cfg.Pais, "country code")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "structured store path")
	fs.StringVar(&cfg.KVPath, "k", cfg.KVPath, "key-value store path")
	fs.StringVar(&cfg.AudioStorage, "s", cfg.AudioStorage, "audio storage backend (none, http, s3)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	variant := fs.String("vc", strings.Join(cfg.VariantCountries, ","), "countries using the country registration endpoint")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.BoolVar(&cfg.PurgeBeforeSend, "purge", cfg.PurgeBeforeSend, "purge pending rows before sending")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.VariantCountries = splitList(*variant)
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}
