package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	adminKey        string
	bind            string
	binID           string
	binKey          string
	binURL          string
	cleanupInterval time.Duration
	dataFile        string
	port            int
	prefix          string
	profile         bool
	sessionTTL      time.Duration
	tlsCert         string
	tlsKey          string
	verbose         bool
	version         bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.sessionTTL <= 0 {
		return fmt.Errorf("invalid session TTL (must be positive): %s", c.sessionTTL)
	}
	if c.dataFile == "" {
		return errors.New("--data-file must not be empty")
	}
	return nil
}

// remoteConfigured reports whether the shared bin credentials are present.
// Missing credentials mean local-only storage, never a startup failure.
func (c *Config) remoteConfigured() bool {
	return c.binID != "" && c.binKey != ""
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PARTYQUEST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "partyquest",
		Short:         "A party game server that deals each player a secret item and location.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.adminKey, "admin-key", "", "shared passcode for the admin API; empty disables it (env: PARTYQUEST_ADMIN_KEY)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: PARTYQUEST_BIND)")
	fs.StringVar(&cfg.binID, "bin-id", "", "remote document bin identifier (env: PARTYQUEST_BIN_ID)")
	fs.StringVar(&cfg.binKey, "bin-key", "", "remote document bin access key (env: PARTYQUEST_BIN_KEY)")
	fs.StringVar(&cfg.binURL, "bin-url", "https://api.jsonbin.io/v3/b", "remote document bin API base URL (env: PARTYQUEST_BIN_URL)")
	fs.DurationVar(&cfg.cleanupInterval, "cleanup-interval", 10*time.Minute, "how often expired sessions are swept (env: PARTYQUEST_CLEANUP_INTERVAL)")
	fs.StringVar(&cfg.dataFile, "data-file", "partyquest.json", "path to the local document file (env: PARTYQUEST_DATA_FILE)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: PARTYQUEST_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: PARTYQUEST_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: PARTYQUEST_PROFILE)")
	fs.DurationVar(&cfg.sessionTTL, "session-ttl", 2*time.Hour, "time before idle player sessions expire (env: PARTYQUEST_SESSION_TTL)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: PARTYQUEST_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: PARTYQUEST_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: PARTYQUEST_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: PARTYQUEST_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("partyquest v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
