package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DatabaseSchemePostgres is the postgres database scheme identifier
	DatabaseSchemePostgres = "postgres"

	DefaultNetworksFile   = "networks.yaml"
	DefaultRequestTimeout = 15 * time.Second
	DefaultNamadaTimeout  = 10 * time.Second
	DefaultMaxConcurrency = 8
)

// ZeroIDPolicy decides what happens to proposals whose id could not be read.
type ZeroIDPolicy string

const (
	// KeepZeroID stores them under id 0, as observed in production so far.
	KeepZeroID ZeroIDPolicy = "keep"
	SkipZeroID ZeroIDPolicy = "skip"
)

// UnresolvedVotePolicy decides what happens when no endpoint could answer a vote check.
type UnresolvedVotePolicy string

const (
	// AssumeNotVoted is fail-open: a false reminder beats a missed one.
	AssumeNotVoted UnresolvedVotePolicy = "assume-not-voted"
	// SkipUnresolved leaves the proposal out of this run without marking it voted.
	SkipUnresolved UnresolvedVotePolicy = "skip"
)

type Config struct {
	DBDialect      string // postgres only
	DBDsn          string // DSN string passed to GORM driver
	NetworksFile   string
	RequestTimeout time.Duration // per request for LCD endpoints
	NamadaTimeout  time.Duration // per request for Namada indexers
	MaxConcurrency int
	ZeroIDs        ZeroIDPolicy
	UnresolvedVote UnresolvedVotePolicy
	PushgatewayURL string
	UserAgent      string
	LogFormat      string // "plain" or "json"
	LogFile        string
	Debug          bool
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	// plain integers are seconds
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	fmt.Fprintf(os.Stderr, "warning: invalid %s=%q, using %s\n", key, v, def)
	return def
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	fmt.Fprintf(os.Stderr, "warning: invalid %s=%q, using %d\n", key, v, def)
	return def
}

// parseDatabaseURL interprets DATABASE_URL and returns (dialect, dsn).
// Supported schemes: postgres, postgresql.
func parseDatabaseURL(databaseURL string) (string, string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", "", err
	}
	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case DatabaseSchemePostgres, "postgresql":
		// GORM postgres driver accepts URL DSN as-is
		return DatabaseSchemePostgres, databaseURL, nil
	default:
		return "", "", fmt.Errorf("unsupported DATABASE_URL scheme: %s", u.Scheme)
	}
}

func parseZeroIDPolicy(v string) (ZeroIDPolicy, error) {
	switch p := ZeroIDPolicy(strings.ToLower(strings.TrimSpace(v))); p {
	case "":
		return KeepZeroID, nil
	case KeepZeroID, SkipZeroID:
		return p, nil
	default:
		return KeepZeroID, fmt.Errorf("unknown ZERO_ID_POLICY %q", v)
	}
}

func parseUnresolvedVotePolicy(v string) (UnresolvedVotePolicy, error) {
	switch p := UnresolvedVotePolicy(strings.ToLower(strings.TrimSpace(v))); p {
	case "":
		return AssumeNotVoted, nil
	case AssumeNotVoted, SkipUnresolved:
		return p, nil
	default:
		return AssumeNotVoted, fmt.Errorf("unknown UNRESOLVED_VOTE_POLICY %q", v)
	}
}

func Load() Config {
	cfg := Config{
		NetworksFile:   getenv("NETWORKS_FILE", DefaultNetworksFile),
		RequestTimeout: getenvDuration("REQUEST_TIMEOUT", DefaultRequestTimeout),
		NamadaTimeout:  getenvDuration("NAMADA_TIMEOUT", DefaultNamadaTimeout),
		MaxConcurrency: getenvInt("MAX_CONCURRENCY", DefaultMaxConcurrency),
		PushgatewayURL: strings.TrimSpace(os.Getenv("PUSHGATEWAY_URL")),
		UserAgent:      os.Getenv("USER_AGENT"),
		LogFormat:      strings.ToLower(getenv("LOG_FORMAT", "plain")),
		LogFile:        os.Getenv("LOG_FILE"),
		Debug:          getenvBool("DEBUG", false),
	}

	var err error
	if cfg.ZeroIDs, err = parseZeroIDPolicy(os.Getenv("ZERO_ID_POLICY")); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v, using %s\n", err, cfg.ZeroIDs)
	}
	if cfg.UnresolvedVote, err = parseUnresolvedVotePolicy(os.Getenv("UNRESOLVED_VOTE_POLICY")); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v, using %s\n", err, cfg.UnresolvedVote)
	}

	if dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL")); dbURL != "" {
		if dialect, dsn, err := parseDatabaseURL(dbURL); err == nil {
			cfg.DBDialect = dialect
			cfg.DBDsn = dsn
		} else {
			fmt.Fprintf(os.Stderr, "warning: invalid DATABASE_URL, disabling persistence: %v\n", err)
		}
	}

	return cfg
}

// Persistent reports whether a database is configured.
func (c Config) Persistent() bool {
	return c.DBDialect != "" && c.DBDsn != ""
}

func (c Config) String() string {
	return fmt.Sprintf("networks=%s db=%s concurrency=%d", c.NetworksFile, c.DBDialect, c.MaxConcurrency)
}

// DebugString returns a human-friendly configuration string with masked secrets.
func (c Config) DebugString() string {
	return fmt.Sprintf(
		"networks=%s db=%s dsn=%s request_timeout=%s namada_timeout=%s concurrency=%d zero_ids=%s unresolved_votes=%s pushgateway=%s",
		c.NetworksFile,
		c.DBDialect,
		maskDSN(c.DBDialect, c.DBDsn),
		c.RequestTimeout,
		c.NamadaTimeout,
		c.MaxConcurrency,
		c.ZeroIDs,
		c.UnresolvedVote,
		c.PushgatewayURL,
	)
}

func maskDSN(dialect, dsn string) string {
	switch strings.ToLower(dialect) {
	case DatabaseSchemePostgres:
		if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
			if u.User != nil {
				username := u.User.Username()
				u.User = url.User(username)
			}
			return u.String()
		}
		// Fallback for DSN as key-value list
		parts := strings.Fields(dsn)
		for i, p := range parts {
			lower := strings.ToLower(p)
			if strings.HasPrefix(lower, "password=") {
				parts[i] = "password=***"
			}
		}
		return strings.Join(parts, " ")
	default:
		return dsn
	}
}
