package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/doclearn/doclearn/internal/flagx"
	"github.com/doclearn/doclearn/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file. Pointer
// fields distinguish "absent" from a zero value, so a partial file only
// overrides what it names.
type JsonConfig struct {
	EndpointAddrHTTP             *string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             *string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	LogFormat                    *string         `json:"log_format"`
	SecretKey                    *string         `json:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	VerificationCodeTTL          *timex.Duration `json:"verification_code_ttl"`
	RedisAddr                    *string         `json:"redis_addr"`
	RedisPassword                *string         `json:"redis_password"`
	RedisDB                      *int            `json:"redis_db"`
	CatalogCacheTTL              *timex.Duration `json:"catalog_cache_ttl"`
	KafkaBrokers                 []string        `json:"kafka_brokers"`
	KafkaTopic                   *string         `json:"kafka_topic"`
	S3RootUser                   *string         `json:"s3_root_user"`
	S3RootPassword               *string         `json:"s3_root_password"`
	S3Bucket                     *string         `json:"s3_bucket"`
	S3Region                     *string         `json:"s3_region"`
	S3BaseEndpoint               *string         `json:"s3_base_endpoint"`
	AvatarURLTTL                 *timex.Duration `json:"avatar_url_ttl"`
	CORSAllowedOrigins           []string        `json:"cors_allowed_origins"`
	StrictSpecializations        *bool           `json:"strict_specializations"`
	RejectCommentMinLength       *int            `json:"reject_comment_min_length"`
	TxRetryAttempts              *int            `json:"tx_retry_attempts"`
	AdminRateLimit               *int            `json:"admin_rate_limit"`
	AdminRateWindow              *timex.Duration `json:"admin_rate_window"`
}

// parseJson loads the file named by -c/-config, if any, and copies every
// field it sets into config. Unreadable files or invalid JSON panic.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&config.VerificationCodeTTL, c.VerificationCodeTTL)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setInt(&config.RedisDB, c.RedisDB)
	setDuration(&config.CatalogCacheTTL, c.CatalogCacheTTL)
	if c.KafkaBrokers != nil {
		config.KafkaBrokers = c.KafkaBrokers
	}
	setString(&config.KafkaTopic, c.KafkaTopic)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setDuration(&config.AvatarURLTTL, c.AvatarURLTTL)
	if c.CORSAllowedOrigins != nil {
		config.CORSAllowedOrigins = c.CORSAllowedOrigins
	}
	if c.StrictSpecializations != nil {
		config.StrictSpecializations = *c.StrictSpecializations
	}
	setInt(&config.RejectCommentMinLength, c.RejectCommentMinLength)
	setInt(&config.TxRetryAttempts, c.TxRetryAttempts)
	setInt(&config.AdminRateLimit, c.AdminRateLimit)
	setDuration(&config.AdminRateWindow, c.AdminRateWindow)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
