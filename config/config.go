package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env              string            `yaml:"env" env-default:"development"`
	StorageConfig    StorageConfig     `yaml:"storage" env-required:"true"`
	DbConfig         DbConfig          `yaml:"db"`
	CacheConfig      CacheConfig       `yaml:"cache"`
	HttpServerConfig HttpServerConfig  `yaml:"http_server" env-required:"true"`
	JWTConfig        JWTConfig         `yaml:"jwt" env-required:"true"`
	Eligibility      EligibilityConfig `yaml:"eligibility"`
	Scheduler        SchedulerConfig   `yaml:"scheduler"`
	SMTPConfig       SMTPConfig        `yaml:"smtp"`
	FCMConfig        FCMConfig         `yaml:"fcm_config"`
}

// StorageConfig selects the key-value backend: redis, postgres or sqlite.
type StorageConfig struct {
	Driver    string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"redis"`
	KeyPrefix string `yaml:"key_prefix" env-default:"bloodlink:"`
	// SQLitePath is used only by the sqlite driver.
	SQLitePath string `yaml:"sqlite_path" env-default:"bloodlink.db"`
}

type CacheConfig struct {
	Address string `yaml:"address" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Db      int    `yaml:"db"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled" env-default:"false"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type HttpServerConfig struct {
	Address        string        `yaml:"address" env-required:"true"`
	Timeout        time.Duration `yaml:"timeout" env-required:"true"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" env-required:"true"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	TLS            TLSConfig     `yaml:"tls"`
}

type DbConfig struct {
	Username string `yaml:"username"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	DbName   string `yaml:"dbname"`
	SSLMode  string `yaml:"ssl_mode" env-default:"disable"`
}

type JWTConfig struct {
	AccessExpire  time.Duration `yaml:"access_expire" env-required:"true"`
	RefreshExpire time.Duration `yaml:"refresh_expire" env-required:"true"`
}

type EligibilityConfig struct {
	CooldownMonths int `yaml:"cooldown_months" env-default:"3"`
	// MonthOverflow is "rollover" (Jan 31 + 1 month = Mar 2/3) or "clamp" (Feb 28/29).
	MonthOverflow string `yaml:"month_overflow" env-default:"rollover"`
	// Timezone names the location used for calendar days. Empty means time.Local.
	Timezone string `yaml:"timezone"`
}

type SchedulerConfig struct {
	Enabled               bool   `yaml:"enabled" env-default:"true"`
	AvailabilityCheckSpec string `yaml:"availability_check_spec" env-default:"0 9 * * *"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	From     string `yaml:"from"`
}

type FCMConfig struct {
	ProjectID                 string `yaml:"project_id"`
	ServiceAccountKeyJSONPath string `yaml:"service_account_key_json_path"`
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/dev.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %s", configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("error reading config file: %s. Error: %v", configPath, err)
	}

	return &cfg
}
