package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "CHECKSTORE_"

// Queue backends.
const (
	BackendRedis = "redis"
	BackendNATS  = "nats"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// MySQL (GLPI database)
	MySQLHost           string
	MySQLPort           int
	MySQLUser           string
	MySQLPassword       string
	MySQLDatabase       string
	MySQLCharset        string
	MySQLConnectTimeout time.Duration
	ConnectionRetest    time.Duration // minimum delay between reconnect attempts

	// Record features
	RecordStateTable       bool
	RecordLogEvents        bool
	RecordEntityTable      bool
	RecordAcknowledgements bool
	RecordAvailability     bool

	FlushPeriod       time.Duration // event log flush interval
	FlushMaxRows      int           // max rows per flush, also the volume trigger
	WritebackMaxQueue int           // pending event log rows kept before dropping the oldest
	TimeZone          *time.Location

	// Event queue
	QueueBackend string        // "redis" | "nats"
	BatchSize    int           // max events per batch
	PollTimeout  time.Duration // wait for the first event of a batch

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts
	RedisEventsKey        string        // list the Redis backend pops events from

	IdentityMirror    bool          // mirror identities to Redis and restore them at startup
	IdentityMirrorTTL time.Duration // expiry of mirrored identities

	// NATS
	NATSURL     string // ex: "nats://127.0.0.1:4222"
	NATSSubject string
	NATSBuffer  int // pending messages held by the subscription channel

	AllowedCIDRS []string // optional, restrict access to specific IP (e.g. "1.2.3.4, 5.6.7.8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

// overlay holds values read from CHECKSTORE_CONFIG_FILE, keyed like the
// environment variables they stand in for.
var overlay map[string]string

// Load reads the configuration from the environment, layered over the YAML
// file named by CHECKSTORE_CONFIG_FILE when set. It panics on unusable values.
func Load() *Config {
	overlay = nil
	if path := os.Getenv(envPrefix + "CONFIG_FILE"); path != "" {
		values, err := readFile(path)
		if err != nil {
			panic(fmt.Sprintf("❌ FATAL: %v", err))
		}
		overlay = values
	}

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("CHECKSTORE_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("CHECKSTORE_SHUTDOWN_TIMEOUT", 10*time.Second),

		// Logging
		LogLevel:  getenv("CHECKSTORE_LOG_LEVEL", "info"),
		PrettyLog: mustBool("CHECKSTORE_PRETTY_LOG", false),

		// MySQL
		MySQLHost:           getenv("CHECKSTORE_MYSQL_HOST", "127.0.0.1"),
		MySQLPort:           getenvInt("CHECKSTORE_MYSQL_PORT", 3306),
		MySQLUser:           getenv("CHECKSTORE_MYSQL_USER", "shinken"),
		MySQLPassword:       getenv("CHECKSTORE_MYSQL_PASSWORD", "shinken"),
		MySQLDatabase:       getenv("CHECKSTORE_MYSQL_DATABASE", "glpidb"),
		MySQLCharset:        getenv("CHECKSTORE_MYSQL_CHARSET", "utf8"),
		MySQLConnectTimeout: mustDuration("CHECKSTORE_MYSQL_CONNECT_TIMEOUT", 5*time.Second),
		ConnectionRetest:    mustDuration("CHECKSTORE_CONNECTION_RETEST", 5*time.Second),

		// Record features, all off unless asked for
		RecordStateTable:       mustBool("CHECKSTORE_RECORD_STATE_TABLE", false),
		RecordLogEvents:        mustBool("CHECKSTORE_RECORD_LOG_EVENTS", false),
		RecordEntityTable:      mustBool("CHECKSTORE_RECORD_ENTITY_TABLE", false),
		RecordAcknowledgements: mustBool("CHECKSTORE_RECORD_ACKNOWLEDGEMENTS", false),
		RecordAvailability:     mustBool("CHECKSTORE_RECORD_AVAILABILITY", false),

		FlushPeriod:       mustDuration("CHECKSTORE_FLUSH_PERIOD", 5*time.Second),
		FlushMaxRows:      getenvInt("CHECKSTORE_FLUSH_MAX_ROWS", 1000),
		WritebackMaxQueue: getenvInt("CHECKSTORE_WRITEBACK_MAX_QUEUE", 100000),
		TimeZone:          mustLocation("CHECKSTORE_TIMEZONE", "Local"),

		// Event queue
		QueueBackend: strings.ToLower(getenv("CHECKSTORE_QUEUE_BACKEND", BackendRedis)),
		BatchSize:    getenvInt("CHECKSTORE_BATCH_SIZE", 500),
		PollTimeout:  mustDuration("CHECKSTORE_POLL_TIMEOUT", time.Second),

		// Redis settings
		RedisUser:             getenv("CHECKSTORE_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("CHECKSTORE_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("CHECKSTORE_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("CHECKSTORE_REDIS_DB", 0),
		RedisDT:               mustDuration("CHECKSTORE_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("CHECKSTORE_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("CHECKSTORE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("CHECKSTORE_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("CHECKSTORE_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("CHECKSTORE_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("CHECKSTORE_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("CHECKSTORE_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("CHECKSTORE_REDIS_WARN_THRESHOLD", 3),
		RedisEventsKey:        getenv("CHECKSTORE_REDIS_EVENTS_KEY", "checkstore:events"),

		IdentityMirror:    mustBool("CHECKSTORE_IDENTITY_MIRROR", false),
		IdentityMirrorTTL: mustDuration("CHECKSTORE_IDENTITY_MIRROR_TTL", 30*24*time.Hour),

		// NATS settings
		NATSSubject: getenv("CHECKSTORE_NATS_SUBJECT", "checkstore.events"),
		NATSBuffer:  getenvInt("CHECKSTORE_NATS_BUFFER", 4096),

		// Access restrictions
		AllowedCIDRS: parseAllowedIPs(getenv("CHECKSTORE_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("CHECKSTORE_TRUST_PROXY", false),
	}

	switch cfg.QueueBackend {
	case BackendRedis:
		cfg.RedisAddr = requireEnv("CHECKSTORE_REDIS_ADDR")
	case BackendNATS:
		cfg.NATSURL = requireEnv("CHECKSTORE_NATS_URL")
		if cfg.IdentityMirror {
			cfg.RedisAddr = requireEnv("CHECKSTORE_REDIS_ADDR")
		}
	default:
		panic(fmt.Sprintf("❌ FATAL: CHECKSTORE_QUEUE_BACKEND must be %q or %q, got %q",
			BackendRedis, BackendNATS, cfg.QueueBackend))
	}

	// Validate Redis password configuration
	if cfg.RedisAddr != "" && cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: CHECKSTORE_REDIS_PASSWORD is required when CHECKSTORE_REDIS_PASSWORD_REQUIRED=true")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		cfgCopy.MySQLPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// readFile loads a YAML document and flattens it into environment-style keys:
// mysql.host becomes CHECKSTORE_MYSQL_HOST, lists are joined with commas.
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	values := make(map[string]string)
	flatten(strings.TrimSuffix(envPrefix, "_"), doc, values)
	return values, nil
}

func flatten(prefix string, node any, out map[string]string) {
	switch v := node.(type) {
	case map[string]any:
		for k, child := range v {
			key := strings.ToUpper(strings.ReplaceAll(k, "-", "_"))
			flatten(prefix+"_"+key, child, out)
		}
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		out[prefix] = strings.Join(parts, ",")
	case nil:
	default:
		out[prefix] = fmt.Sprint(v)
	}
}

// helpers
func lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return overlay[key]
}

func getenv(key, def string) string {
	if v := lookup(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := lookup(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := lookup(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := lookup(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := lookup(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func mustLocation(key, def string) *time.Location {
	name := getenv(key, def)
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid time zone for %s: %s", key, name))
	}
	return loc
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
