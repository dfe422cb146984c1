package engine

import (
	"os"
	"strconv"
	"time"

	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Engine Configuration
//
// Loaded from environment variables so deployment configuration stays
// external to the binary. The scheduling durations default to the values
// the protocol was designed around; overriding them is mostly useful for
// testing against a local hub.
// ============================================================================

// Config holds everything the sync engine needs at construction time.
type Config struct {
	HubURL          string        // Base URL of the sync server (NOTESYNC_HUB_URL)
	WebAddr         string        // Listen address for the control surface (NOTESYNC_WEB_ADDR)
	DBPath          string        // Path of the durable store file (NOTESYNC_DB_PATH)
	StorePassphrase string        // Enables at-rest value encryption when set (NOTESYNC_STORE_PASSPHRASE)
	Token           string        // Optional initial bearer token (NOTESYNC_TOKEN)
	Debounce        time.Duration // Quiet period after an edit before syncing (NOTESYNC_DEBOUNCE)
	IdleCeiling     time.Duration // Maximum interval between syncs with no edits (NOTESYNC_IDLE_CEILING)
	MinSyncInterval time.Duration // Hard rate guard between attempts (NOTESYNC_MIN_SYNC_INTERVAL)
	PollGranularity time.Duration // Upper bound on scheduler wake intervals (NOTESYNC_POLL_GRANULARITY)
	HTTPTimeout     time.Duration // Transport round-trip timeout (NOTESYNC_HTTP_TIMEOUT)
	MaxListLength   int           // Soft cap on the working list (NOTESYNC_MAX_LIST)
	MsgpackValues   bool          // Hybrid msgpack value encoding on the wire (NOTESYNC_MSGPACK_VALUES)
}

// Scheduling defaults. The debounce batches bursts of edits into one round
// trip; the idle ceiling guarantees a periodic sync with no activity; the
// min interval protects the server from abusive attempt rates regardless of
// client scheduling.
const (
	defaultDebounce        = 60 * time.Second
	defaultIdleCeiling     = 10 * time.Minute
	defaultMinSyncInterval = 15 * time.Second
	defaultPollGranularity = 60 * time.Second
	defaultHTTPTimeout     = 30 * time.Second
	defaultMaxListLength   = 10
	defaultWebAddr         = ":8000"
	defaultDBPath          = "./data/notesync.ddb"
)

// LoadConfig reads engine configuration from environment variables,
// falling back to defaults for anything unset.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		HubURL:          os.Getenv("NOTESYNC_HUB_URL"),
		WebAddr:         defaultWebAddr,
		DBPath:          defaultDBPath,
		StorePassphrase: os.Getenv("NOTESYNC_STORE_PASSPHRASE"),
		Token:           os.Getenv("NOTESYNC_TOKEN"),
		Debounce:        defaultDebounce,
		IdleCeiling:     defaultIdleCeiling,
		MinSyncInterval: defaultMinSyncInterval,
		PollGranularity: defaultPollGranularity,
		HTTPTimeout:     defaultHTTPTimeout,
		MaxListLength:   defaultMaxListLength,
	}

	if addr := os.Getenv("NOTESYNC_WEB_ADDR"); addr != "" {
		cfg.WebAddr = addr
	}
	if path := os.Getenv("NOTESYNC_DB_PATH"); path != "" {
		cfg.DBPath = path
	}

	for _, d := range []struct {
		env string
		dst *time.Duration
	}{
		{"NOTESYNC_DEBOUNCE", &cfg.Debounce},
		{"NOTESYNC_IDLE_CEILING", &cfg.IdleCeiling},
		{"NOTESYNC_MIN_SYNC_INTERVAL", &cfg.MinSyncInterval},
		{"NOTESYNC_POLL_GRANULARITY", &cfg.PollGranularity},
		{"NOTESYNC_HTTP_TIMEOUT", &cfg.HTTPTimeout},
	} {
		if s := os.Getenv(d.env); s != "" {
			v, err := time.ParseDuration(s)
			if err != nil {
				return nil, serr.Wrap(err, "invalid "+d.env+" value, expected duration like '60s' or '10m'")
			}
			*d.dst = v
		}
	}

	if s := os.Getenv("NOTESYNC_MAX_LIST"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, serr.Wrap(err, "invalid NOTESYNC_MAX_LIST value, expected integer")
		}
		cfg.MaxListLength = n
	}

	if s := os.Getenv("NOTESYNC_MSGPACK_VALUES"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, serr.Wrap(err, "invalid NOTESYNC_MSGPACK_VALUES value, expected true/false")
		}
		cfg.MsgpackValues = v
	}

	return cfg, nil
}

// Validate fails fast on misconfiguration rather than discovering it
// mid-cycle.
func (c *Config) Validate() error {
	if c.HubURL == "" {
		return serr.New("NOTESYNC_HUB_URL is required")
	}
	if c.Debounce <= 0 || c.IdleCeiling <= 0 || c.PollGranularity <= 0 || c.HTTPTimeout <= 0 {
		return serr.New("scheduling durations must be positive")
	}
	if c.MinSyncInterval < time.Second {
		return serr.New("NOTESYNC_MIN_SYNC_INTERVAL must be at least 1s to protect the server")
	}
	if c.MaxListLength < 1 {
		return serr.New("NOTESYNC_MAX_LIST must be at least 1")
	}
	return nil
}
