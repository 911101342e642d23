package env

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv  string
	AppPort string
	TZ      string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	RedisURL string

	MongoURI string
	DBName   string

	// Call platform (Vapi-compatible API)
	VapiAPIKey        string
	VapiBaseURL       string
	VapiWebhookSecret string
	VapiPhoneNumberID string
	ServerBaseURL     string

	// Voice cloning provider (ElevenLabs)
	ElevenLabsApiKey     string
	ElevenLabsCloneModel string
	ElevenLabsTimeoutSec int
	DefaultVoiceID       string
	FeatureCloning       bool

	// Audio capture
	// CaptureTriggerSec is how much call time must elapse before the clone
	// sample is extracted. 30 is the production value; 15 is useful when
	// debugging with short test calls.
	CaptureTriggerSec          int
	CaptureRingCapacity        int
	CaptureForcedSampleRate    int // 0 = infer from the stream
	CaptureHandshakeTimeoutSec int
	CaptureMaxReconnects       int

	// Clone dispatch
	CloneMaxAttempts int

	// Call-state scheduler
	FallbackTimeoutSec     int
	PollIntervalSec        int
	PollCeilingSec         int
	ReadyDelaySec          int
	CallbackMaxDurationSec int

	StorageDriver    string
	LocalStoragePath string

	APIRateLimitRPM int

	LogLevel           string
	CORSAllowedOrigins string

	OTELEndpoint string
	OTELEnabled  bool
}

func Load(envFile string) (*Config, error) {
	if envFile != "" {
		// Missing .env is fine: production runs on real environment variables.
		if err := godotenv.Load(envFile); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		AppEnv:  getEnv("APP_ENV", "development"),
		AppPort: getEnv("APP_PORT", "8080"),
		TZ:      getEnv("TZ", "UTC"),

		JWTSecret:   mustGetEnv("JWT_SECRET"),
		JWTIssuer:   getEnv("JWT_ISSUER", "mirrorline-futureself"),
		JWTAudience: getEnv("JWT_AUDIENCE", "futureself-api"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:   getEnv("DB_NAME", "futureself"),

		VapiAPIKey:        getEnv("VAPI_API_KEY", ""),
		VapiBaseURL:       getEnv("VAPI_BASE_URL", "https://api.vapi.ai"),
		VapiWebhookSecret: getEnv("VAPI_WEBHOOK_SECRET", ""),
		VapiPhoneNumberID: getEnv("VAPI_PHONE_NUMBER_ID", ""),
		ServerBaseURL:     getEnv("SERVER_BASE_URL", ""),

		ElevenLabsApiKey:     getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsCloneModel: getEnv("ELEVENLABS_CLONE_MODEL", "eleven_multilingual_v2"),
		ElevenLabsTimeoutSec: getEnvInt("ELEVENLABS_TIMEOUT_SEC", 120),
		DefaultVoiceID:       getEnv("DEFAULT_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		FeatureCloning:       getEnvBool("FEATURE_CLONING", true),

		CaptureTriggerSec:          getEnvInt("CAPTURE_TRIGGER_SECONDS", 30),
		CaptureRingCapacity:        getEnvInt("CAPTURE_RING_CAPACITY", 1000),
		CaptureForcedSampleRate:    getEnvInt("CAPTURE_FORCED_SAMPLE_RATE", 0),
		CaptureHandshakeTimeoutSec: getEnvInt("CAPTURE_HANDSHAKE_TIMEOUT_SEC", 10),
		CaptureMaxReconnects:       getEnvInt("CAPTURE_MAX_RECONNECTS", 5),

		CloneMaxAttempts: getEnvInt("CLONE_MAX_ATTEMPTS", 3),

		FallbackTimeoutSec:     getEnvInt("SCHEDULER_FALLBACK_SEC", 60),
		PollIntervalSec:        getEnvInt("SCHEDULER_POLL_INTERVAL_SEC", 5),
		PollCeilingSec:         getEnvInt("SCHEDULER_POLL_CEILING_SEC", 300),
		ReadyDelaySec:          getEnvInt("SCHEDULER_READY_DELAY_SEC", 10),
		CallbackMaxDurationSec: getEnvInt("CALLBACK_MAX_DURATION_SEC", 600),

		StorageDriver:    getEnv("STORAGE_DRIVER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "/data/samples"),

		APIRateLimitRPM: getEnvInt("API_RATE_LIMIT_RPM", 180),

		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),

		OTELEndpoint: getEnv("OTEL_ENDPOINT", ""),
		OTELEnabled:  getEnvBool("OTEL_ENABLED", false),
	}

	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", cfg.TZ, err)
	}
	time.Local = loc

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustGetEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(strValue)
	if err != nil {
		return defaultValue
	}
	return value
}
