package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/doclearn/doclearn/internal/flagx"
	"github.com/joho/godotenv"
)

const envPrefix = "DOCLEARN_"

// defaultEnvFile is loaded when present and no -env flag is given.
var defaultEnvFile = ".env"

// parseEnv overlays DOCLEARN_* environment variables onto config. A dotenv
// file (-env flag, or ./.env when it exists) is loaded first; variables
// already present in the process environment take precedence over it.
// Malformed values panic, like the JSON and flag layers.
func parseEnv(config *Config) {
	file := flagx.EnvFileFlags()
	explicit := file != ""
	if !explicit {
		file = defaultEnvFile
	}

	if err := godotenv.Load(file); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			panic(err)
		}
	}

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				panic(err)
			}
			*dst = d
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				panic(err)
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				panic(err)
			}
			*dst = b
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = splitList(v)
		}
	}

	str("HTTP_ADDR", &config.EndpointAddrHTTP)
	str("GRPC_ADDR", &config.EndpointAddrGRPC)
	str("DATABASE_DSN", &config.DatabaseDSN)
	str("LOG_FORMAT", &config.LogFormat)
	str("SECRET_KEY", &config.SecretKey)
	dur("ACCESS_TOKEN_TTL", &config.AccessTokenValidityDuration)
	dur("REFRESH_TOKEN_TTL", &config.RefreshTokenValidityDuration)
	dur("VERIFICATION_CODE_TTL", &config.VerificationCodeTTL)
	str("REDIS_ADDR", &config.RedisAddr)
	str("REDIS_PASSWORD", &config.RedisPassword)
	integer("REDIS_DB", &config.RedisDB)
	dur("CATALOG_CACHE_TTL", &config.CatalogCacheTTL)
	list("KAFKA_BROKERS", &config.KafkaBrokers)
	str("KAFKA_TOPIC", &config.KafkaTopic)
	str("S3_ROOT_USER", &config.S3RootUser)
	str("S3_ROOT_PASSWORD", &config.S3RootPassword)
	str("S3_BUCKET", &config.S3Bucket)
	str("S3_REGION", &config.S3Region)
	str("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	dur("AVATAR_URL_TTL", &config.AvatarURLTTL)
	list("CORS_ALLOWED_ORIGINS", &config.CORSAllowedOrigins)
	boolean("STRICT_SPECIALIZATIONS", &config.StrictSpecializations)
	integer("REJECT_COMMENT_MIN_LENGTH", &config.RejectCommentMinLength)
	integer("TX_RETRY_ATTEMPTS", &config.TxRetryAttempts)
	integer("ADMIN_RATE_LIMIT", &config.AdminRateLimit)
	dur("ADMIN_RATE_WINDOW", &config.AdminRateWindow)
}

// splitList splits a comma separated value, dropping empty items.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
