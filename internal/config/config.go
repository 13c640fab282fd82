package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	// TrustedProxies may set X-Forwarded-For; empty means the socket peer address is used.
	TrustedProxies []string `mapstructure:"trusted_proxies"`

	RoomCapacity        int           `mapstructure:"room_capacity"`
	RateLimitAttempts   int           `mapstructure:"rate_limit_attempts"`
	RateLimitWindow     time.Duration `mapstructure:"rate_limit_window"`
	PurgeInterval       time.Duration `mapstructure:"purge_interval"`
	CollaboratorTimeout time.Duration `mapstructure:"collaborator_timeout"`
	ICEServers          []ICEServer   `mapstructure:"ice_servers"`

	DBPath        string `mapstructure:"db_path"`
	AdminUsername string `mapstructure:"admin_username"`
	AdminPassword string `mapstructure:"admin_password"`

	GeminiAPIKey   string `mapstructure:"gemini_api_key"`
	GeminiModel    string `mapstructure:"gemini_model"`
	GeminiEndpoint string `mapstructure:"gemini_endpoint"`

	SMTPHost    string `mapstructure:"smtp_host"`
	SMTPPort    int    `mapstructure:"smtp_port"`
	SMTPUser    string `mapstructure:"smtp_user"`
	SMTPPass    string `mapstructure:"smtp_pass"`
	SMTPFrom    string `mapstructure:"smtp_from"`
	CompanyName string `mapstructure:"company_name"`

	NATSURL           string `mapstructure:"nats_url"`
	NATSSubjectPrefix string `mapstructure:"nats_subject_prefix"`
}

// WebRTCICEServers is the ICE configuration handed to browsers.
func (c *Config) WebRTCICEServers() []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(c.ICEServers))
	for _, s := range c.ICEServers {
		srv := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
		}
		out = append(out, srv)
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "change-me")
	v.SetDefault("log_level", "info")
	v.SetDefault("trusted_proxies", []string{})

	v.SetDefault("room_capacity", 5)
	v.SetDefault("rate_limit_attempts", 5)
	v.SetDefault("rate_limit_window", "60s")
	v.SetDefault("purge_interval", "10m")
	v.SetDefault("collaborator_timeout", "30s")
	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})

	v.SetDefault("db_path", "consult.db")
	v.SetDefault("admin_username", "admin")
	v.SetDefault("admin_password", "")

	v.SetDefault("gemini_api_key", "")
	v.SetDefault("gemini_model", "gemini-1.5-flash")
	v.SetDefault("gemini_endpoint", "https://generativelanguage.googleapis.com/v1beta")

	v.SetDefault("smtp_host", "")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("smtp_user", "")
	v.SetDefault("smtp_pass", "")
	v.SetDefault("smtp_from", "")
	v.SetDefault("company_name", "TeleHealth Connect")

	v.SetDefault("nats_url", "")
	v.SetDefault("nats_subject_prefix", "consult")
}

// Load reads .env, then config/config.<CONFIG_ENV>.yaml, then the environment.
// Each layer overrides the previous one.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("module", "config").Msg("failed to read .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("static", cfg.StaticPath).
		Bool("gemini", cfg.GeminiAPIKey != "").
		Bool("smtp", cfg.SMTPHost != "").
		Bool("nats", cfg.NATSURL != "").
		Msg("config ready")
	return &cfg, nil
}
