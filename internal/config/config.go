// config предоставляет структуру конфигурации accounts-service и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config — корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv), в том числе загруженные из ./.env.
type Config struct {
	Env      string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig    `yaml:"http"`
	API      APIConfig     `yaml:"api"`
	Auth     AuthConfig    `yaml:"auth"`
	Cookie   CookieConfig  `yaml:"cookie"`
	DB       DBConfig      `yaml:"db"`
	S3       S3Config      `yaml:"s3"`
	Media    MediaConfig   `yaml:"media"`
	Redis    RedisConfig   `yaml:"redis"`
	Kafka    KafkaConfig   `yaml:"kafka"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

// TimeoutConfig — таймауты сервиса.
type TimeoutConfig struct {
	// Request — общий дедлайн обработки HTTP-запроса API.
	Request time.Duration `yaml:"request" env:"REQUEST_TIMEOUT" env-default:"15s"`
	// Startup — дедлайн на подключение к внешним зависимостям при старте.
	Startup time.Duration `yaml:"startup" env:"STARTUP_TIMEOUT" env-default:"10s"`
	// Shutdown — дедлайн на graceful остановку серверов.
	Shutdown time.Duration `yaml:"shutdown" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// HTTPConfig — служебный HTTP (livez/healthz/metrics).
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"50085"`
}

// APIConfig — публичный HTTP API.
type APIConfig struct {
	Host     string `yaml:"host" env:"API_HOST" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"API_PORT" env-default:"8000"`
	BasePath string `yaml:"base_path" env:"API_BASE_PATH" env-default:"/api/v1"`
	// MaxBodyBytes — лимит тела запроса (включая multipart с файлами).
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"API_MAX_BODY_BYTES" env-default:"10485760"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// Addr возвращает адрес в формате host:port.
func (a APIConfig) Addr() string {
	return net.JoinHostPort(a.Host, a.Port)
}

// AuthConfig содержит параметры выпуска и валидации токенов.
// Access и refresh подписываются разными секретами и живут разное время.
type AuthConfig struct {
	AccessTokenSecret  string        `yaml:"access_token_secret" env:"ACCESS_TOKEN_SECRET" env-required:"true"`
	AccessTokenTTL     time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_EXPIRY" env-default:"15m"`
	RefreshTokenSecret string        `yaml:"refresh_token_secret" env:"REFRESH_TOKEN_SECRET" env-required:"true"`
	RefreshTokenTTL    time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_EXPIRY" env-default:"240h"`
	Issuer             string        `yaml:"issuer" env:"TOKEN_ISSUER" env-default:"accounts-service"`
	// KeepSessionOnPasswordChange — не сбрасывать сохранённый refresh-токен при смене пароля.
	// По умолчанию смена пароля завершает текущую сессию.
	KeepSessionOnPasswordChange bool `yaml:"keep_session_on_password_change" env:"KEEP_SESSION_ON_PASSWORD_CHANGE"`
}

// CookieConfig — параметры cookie, в которых клиенту отдаётся пара токенов.
type CookieConfig struct {
	Domain   string `yaml:"domain" env:"COOKIE_DOMAIN"`
	Path     string `yaml:"path" env:"COOKIE_PATH" env-default:"/"`
	// Insecure снимает флаг Secure (только для локальной разработки без TLS).
	Insecure bool   `yaml:"insecure" env:"COOKIE_INSECURE"`
	SameSite string `yaml:"same_site" env:"COOKIE_SAME_SITE" env-default:"lax"`
}

// DBConfig — настройки подключения к MongoDB.
// Имя базы берётся из пути URI; если его нет — используется значение по умолчанию.
type DBConfig struct {
	URL string `yaml:"url" env:"MONGODB_URI" env-required:"true"`
}

// S3Config — настройки MinIO/S3, куда загружаются аватары и обложки.
type S3Config struct {
	Endpoint      string `yaml:"endpoint" env:"S3_ENDPOINT" env-default:"http://localhost:9000"`
	RootUser      string `yaml:"root_user" env:"S3_ROOT_USER"`
	RootPassword  string `yaml:"root_password" env:"S3_ROOT_PASSWORD"`
	Bucket        string `yaml:"bucket" env:"S3_BUCKET" env-default:"media"`
	PublicBaseURL string `yaml:"public_base_url" env:"S3_PUBLIC_BASE_URL"`
}

// MediaConfig — ограничения на загружаемые файлы.
type MediaConfig struct {
	// TempDir — каталог для временного сохранения multipart-файлов; пусто — os.TempDir().
	TempDir             string   `yaml:"temp_dir" env:"MEDIA_TEMP_DIR"`
	Prefix              string   `yaml:"prefix" env:"MEDIA_PREFIX" env-default:"users"`
	MaxSizeBytes        int64    `yaml:"max_size_bytes" env:"MEDIA_MAX_SIZE_BYTES" env-default:"5242880"`
	AllowedContentTypes []string `yaml:"allowed_content_types" env:"MEDIA_ALLOWED_CONTENT_TYPES" env-default:"image/jpeg,image/png,image/webp,image/gif"`
}

// RedisConfig — опциональный Redis для ограничения попыток входа.
// Пустой URL отключает ограничение.
type RedisConfig struct {
	URL              string        `yaml:"url" env:"REDIS_URL"`
	Prefix           string        `yaml:"prefix" env:"REDIS_PREFIX" env-default:"accounts:login:"`
	MaxLoginAttempts int           `yaml:"max_login_attempts" env:"MAX_LOGIN_ATTEMPTS" env-default:"5"`
	LoginWindow      time.Duration `yaml:"login_window" env:"LOGIN_WINDOW" env-default:"15m"`
}

// KafkaConfig — опциональная публикация событий аккаунта.
// Пустой список брокеров отключает публикацию.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic        string        `yaml:"topic" env:"KAFKA_TOPIC" env-default:"accounts.events"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"KAFKA_WRITE_TIMEOUT" env-default:"5s"`
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// Перед чтением подгружается ./.env: уже выставленные переменные окружения не перезаписываются.
// После чтения файла поверх значений из YAML накладываются ENV-переменные.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	var cfg Config

	// чтение файла + overlay ENV.
	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file does not exist: %s", p)
			}

			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return &cfg, nil
	}

	// 1) Явный путь.
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv подгружает переменные из файла, если он существует.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	return nil
}
