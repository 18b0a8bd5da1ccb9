package memo

import (
	"os"
	"strconv"
	"time"
)

// Config holds environment-driven settings for numbering, limits, and storage.
type Config struct {
	OrgPrefix          string
	DBPath             string
	DefaultTimeZone    string
	DefaultLocale      string
	MaxTitleLen        int
	MaxBodyLen         int
	MaxTags            int
	MaxRecipients      int
	MaxAttachments     int
	RateLimitPerMinute int
	RateLimitWindow    time.Duration
	EnableEventHash    bool
	ListLimit          int
}

func LoadConfig() Config {
	return Config{
		OrgPrefix:          getenv("MEMO_ORG_PREFIX", "SETDA"),
		DBPath:             getenv("MEMO_DB_PATH", ""),
		DefaultTimeZone:    getenv("DEFAULT_TZ", "Asia/Jakarta"),
		DefaultLocale:      getenv("DEFAULT_LOCALE", "id-ID"),
		MaxTitleLen:        getInt("MEMO_MAX_TITLE_LEN", 200),
		MaxBodyLen:         getInt("MEMO_MAX_BODY_LEN", 100000),
		MaxTags:            getInt("MEMO_MAX_TAGS", 16),
		MaxRecipients:      getInt("MEMO_MAX_RECIPIENTS", 100),
		MaxAttachments:     getInt("MEMO_MAX_ATTACHMENTS", 20),
		RateLimitPerMinute: getInt("MEMO_RATE_LIMIT_PER_MIN", 120),
		RateLimitWindow:    getDuration("MEMO_RATE_LIMIT_WINDOW", time.Minute),
		EnableEventHash:    getBool("MEMO_ENABLE_EVENT_HASH", true),
		ListLimit:          getInt("MEMO_LIST_LIMIT", 200),
	}
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
