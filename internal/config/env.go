package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides lets operators inject secrets and per-deployment values
// without editing the YAML file. Unset or unparsable variables leave the
// field untouched.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.LogLevel, "AUCTIOND_LOG_LEVEL")

	setInt(&cfg.Server.Port, "AUCTIOND_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "AUCTIOND_SERVER_CORS_ORIGINS")
	setBool(&cfg.Server.TrustProxy, "AUCTIOND_SERVER_TRUST_PROXY")

	setStr(&cfg.Database.Driver, "AUCTIOND_DATABASE_DRIVER")
	setStr(&cfg.Database.Host, "AUCTIOND_DATABASE_HOST")
	setInt(&cfg.Database.Port, "AUCTIOND_DATABASE_PORT")
	setStr(&cfg.Database.User, "AUCTIOND_DATABASE_USER")
	setStr(&cfg.Database.Password, "AUCTIOND_DATABASE_PASSWORD")
	setStr(&cfg.Database.DBName, "AUCTIOND_DATABASE_DBNAME")
	setStr(&cfg.Database.SSLMode, "AUCTIOND_DATABASE_SSLMODE")

	setStr(&cfg.Redis.Addr, "AUCTIOND_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AUCTIOND_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AUCTIOND_REDIS_DB")

	setStr(&cfg.Auth.SessionSecret, "AUCTIOND_AUTH_SESSION_SECRET")
	setDuration(&cfg.Auth.SessionTTL, "AUCTIOND_AUTH_SESSION_TTL")

	setBool(&cfg.Archive.Enabled, "AUCTIOND_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Bucket, "AUCTIOND_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.Endpoint, "AUCTIOND_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.AccessKey, "AUCTIOND_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "AUCTIOND_ARCHIVE_SECRET_KEY")

	setStr(&cfg.Discord.Token, "AUCTIOND_DISCORD_TOKEN")
	setStr(&cfg.Discord.GuildID, "AUCTIOND_DISCORD_GUILD_ID")
	setStr(&cfg.Discord.ChannelID, "AUCTIOND_DISCORD_CHANNEL_ID")

	setStr(&cfg.Telemetry.OTLPEndpoint, "AUCTIOND_TELEMETRY_OTLP_ENDPOINT")

	setBool(&cfg.LeaderElection.Enabled, "AUCTIOND_LEADER_ELECTION_ENABLED")
	setStr(&cfg.LeaderElection.LeaseNamespace, "AUCTIOND_LEADER_ELECTION_LEASE_NAMESPACE")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}
