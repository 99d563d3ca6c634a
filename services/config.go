package services

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	AI        AIConfig
	Speech    SpeechConfig
	JWT       JWTConfig
	WebSocket WebSocketConfig
}

type ServerConfig struct {
	Port        string
	Host        string
	Environment string
}

type DatabaseConfig struct {
	URL           string
	MongoURI      string
	MongoDatabase string
	SeedDemo      bool
	LogLevel      string
	MaxIdleConns  int
	MaxOpenConns  int
}

type RedisConfig struct {
	URL      string
	LeaseTTL time.Duration
}

type AIConfig struct {
	Provider       string
	GeminiAPIKey   string
	GeminiModel    string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string
	JSONRetries    int
	RequestTimeout time.Duration
}

type SpeechConfig struct {
	ElevenLabsKey   string
	ElevenLabsModel string
	Language        string
	CacheDir        string
	FFmpegPath      string
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type WebSocketConfig struct {
	AllowedOrigins     string
	ReadBufferSize     int
	WriteBufferSize    int
	ReplyTimeout       time.Duration
	TimeoutCheckPeriod time.Duration
	MaxFollowUps       int
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.host", "")
	viper.SetDefault("server.environment", "development")
	viper.SetDefault("websocket.allowed_origins", "")
	viper.SetDefault("websocket.read_buffer_size", 4096)
	viper.SetDefault("websocket.write_buffer_size", 4096)
	viper.SetDefault("websocket.reply_timeout", "5m")
	viper.SetDefault("websocket.timeout_check_interval", "15s")
	viper.SetDefault("websocket.max_follow_ups", 2)
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.mongo_uri", "")
	viper.SetDefault("database.mongo_database", "mockinterview")
	viper.SetDefault("database.seed_demo", "false")
	viper.SetDefault("database.log_level", "silent")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")
	viper.SetDefault("redis.url", "")
	viper.SetDefault("redis.lease_ttl", "30s")
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("gemini.model", "gemini-2.5-flash")
	viper.SetDefault("openai.api_key", "")
	viper.SetDefault("openai.base_url", "")
	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("ai.json_retries", 2)
	viper.SetDefault("ai.request_timeout", "60s")
	viper.SetDefault("elevenlabs.api_key", "")
	viper.SetDefault("elevenlabs.model", "eleven_multilingual_v2")
	viper.SetDefault("speech.language", "ko-KR")
	viper.SetDefault("speech.cache_dir", "./audio_cache")
	viper.SetDefault("speech.ffmpeg_path", "ffmpeg")
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("jwt.expiration", "24h")

	// Map environment variables to config keys
	viper.BindEnv("server.port", "PORT", "SERVER_PORT")
	viper.BindEnv("server.host", "HOST")
	viper.BindEnv("server.environment", "ENVIRONMENT")
	viper.BindEnv("websocket.allowed_origins", "ALLOWED_ORIGINS", "WEBSOCKET_ALLOWED_ORIGINS")
	viper.BindEnv("websocket.read_buffer_size", "WS_READ_BUFFER_SIZE")
	viper.BindEnv("websocket.write_buffer_size", "WS_WRITE_BUFFER_SIZE")
	viper.BindEnv("websocket.reply_timeout", "WS_REPLY_TIMEOUT")
	viper.BindEnv("websocket.timeout_check_interval", "WS_TIMEOUT_CHECK_INTERVAL")
	viper.BindEnv("websocket.max_follow_ups", "MAX_FOLLOW_UPS")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.mongo_uri", "MONGO_URI")
	viper.BindEnv("database.mongo_database", "MONGO_DATABASE")
	viper.BindEnv("database.seed_demo", "SEED_DEMO_SESSION")
	viper.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	viper.BindEnv("redis.url", "REDIS_URL")
	viper.BindEnv("redis.lease_ttl", "LEASE_TTL")
	viper.BindEnv("ai.provider", "AI_PROVIDER")
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("gemini.model", "GEMINI_MODEL")
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	viper.BindEnv("openai.model", "OPENAI_MODEL")
	viper.BindEnv("ai.json_retries", "AI_JSON_RETRIES")
	viper.BindEnv("ai.request_timeout", "AI_REQUEST_TIMEOUT")
	viper.BindEnv("elevenlabs.api_key", "ELEVENLABS_API_KEY")
	viper.BindEnv("elevenlabs.model", "ELEVENLABS_MODEL")
	viper.BindEnv("speech.language", "SPEECH_LANGUAGE")
	viper.BindEnv("speech.cache_dir", "AUDIO_CACHE_DIR")
	viper.BindEnv("speech.ffmpeg_path", "FFMPEG_PATH")
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:        viper.GetString("server.port"),
			Host:        viper.GetString("server.host"),
			Environment: viper.GetString("server.environment"),
		},
		Database: DatabaseConfig{
			URL:           viper.GetString("database.url"),
			MongoURI:      viper.GetString("database.mongo_uri"),
			MongoDatabase: viper.GetString("database.mongo_database"),
			SeedDemo:      viper.GetBool("database.seed_demo"),
			LogLevel:      viper.GetString("database.log_level"),
			MaxIdleConns:  viper.GetInt("database.max_idle_conns"),
			MaxOpenConns:  viper.GetInt("database.max_open_conns"),
		},
		Redis: RedisConfig{
			URL:      viper.GetString("redis.url"),
			LeaseTTL: viper.GetDuration("redis.lease_ttl"),
		},
		AI: AIConfig{
			Provider:       viper.GetString("ai.provider"),
			GeminiAPIKey:   viper.GetString("gemini.api_key"),
			GeminiModel:    viper.GetString("gemini.model"),
			OpenAIAPIKey:   viper.GetString("openai.api_key"),
			OpenAIBaseURL:  viper.GetString("openai.base_url"),
			OpenAIModel:    viper.GetString("openai.model"),
			JSONRetries:    viper.GetInt("ai.json_retries"),
			RequestTimeout: viper.GetDuration("ai.request_timeout"),
		},
		Speech: SpeechConfig{
			ElevenLabsKey:   viper.GetString("elevenlabs.api_key"),
			ElevenLabsModel: viper.GetString("elevenlabs.model"),
			Language:        viper.GetString("speech.language"),
			CacheDir:        viper.GetString("speech.cache_dir"),
			FFmpegPath:      viper.GetString("speech.ffmpeg_path"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetDuration("jwt.expiration"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins:     viper.GetString("websocket.allowed_origins"),
			ReadBufferSize:     viper.GetInt("websocket.read_buffer_size"),
			WriteBufferSize:    viper.GetInt("websocket.write_buffer_size"),
			ReplyTimeout:       viper.GetDuration("websocket.reply_timeout"),
			TimeoutCheckPeriod: viper.GetDuration("websocket.timeout_check_interval"),
			MaxFollowUps:       viper.GetInt("websocket.max_follow_ups"),
		},
	}
}
