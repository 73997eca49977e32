package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix は環境変数で設定を上書きする際の接頭辞です。
const EnvPrefix = "SPENDSYNC_"

const (
	defaultSyncPageSize     = 500
	defaultOverdueThreshold = 2 * time.Hour
	defaultCurrency         = "USD"
	defaultGoogleCustomerID = "my_customer"
	defaultLDAPPageSize     = 500
	defaultLDAPTimeout      = 30 * time.Second
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Sync     SyncConfig     `yaml:"sync"`
	Google   GoogleConfig   `yaml:"google"`
	LDAP     LDAPConfig     `yaml:"ldap"`
}

// ServerConfig は gRPC サーバーとメトリクス公開に関する設定です。
type ServerConfig struct {
	ListenAddr  string `yaml:"listen_addr" env:"SERVER_LISTEN_ADDR"`
	MetricsAddr string `yaml:"metrics_addr" env:"SERVER_METRICS_ADDR"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host               string        `yaml:"host" env:"DB_HOST"`
	Port               int           `yaml:"port" env:"DB_PORT"`
	User               string        `yaml:"user" env:"DB_USER"`
	Password           string        `yaml:"password" env:"DB_PASSWORD"`
	Name               string        `yaml:"name" env:"DB_NAME"`
	SSLMode            string        `yaml:"ssl_mode" env:"DB_SSL_MODE"`
	ApplicationName    string        `yaml:"application_name" env:"DB_APPLICATION_NAME"`
	MaxOpenConns       int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns       int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime    time.Duration `yaml:"-" env:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-" env:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time" env:"DB_CONN_MAX_IDLE_TIME"`
}

// LoggingConfig はロガーの出力形式とレベルです。
// env が development の場合はコンソール形式、それ以外は JSON で出力します。
type LoggingConfig struct {
	Env   string `yaml:"env" env:"LOG_ENV"`
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

// SyncConfig はディレクトリ同期に関する設定です。
type SyncConfig struct {
	PageSize            int           `yaml:"page_size" env:"SYNC_PAGE_SIZE"`
	OverdueThreshold    time.Duration `yaml:"-" env:"-"`
	OverdueThresholdRaw string        `yaml:"overdue_threshold" env:"SYNC_OVERDUE_THRESHOLD"`
	DefaultCurrency     string        `yaml:"default_currency" env:"SYNC_DEFAULT_CURRENCY"`
}

// GoogleConfig は Google Workspace Admin SDK の既定値です。
// 連携設定側に値があればそちらが優先されます。
type GoogleConfig struct {
	CustomerID   string `yaml:"customer_id" env:"GOOGLE_CUSTOMER_ID"`
	AdminSubject string `yaml:"admin_subject" env:"GOOGLE_ADMIN_SUBJECT"`
	Endpoint     string `yaml:"endpoint" env:"GOOGLE_ENDPOINT"`
}

// LDAPConfig は Active Directory への LDAP 接続の既定値です。
type LDAPConfig struct {
	URL                string        `yaml:"url" env:"LDAP_URL"`
	BaseDN             string        `yaml:"base_dn" env:"LDAP_BASE_DN"`
	BindDN             string        `yaml:"bind_dn" env:"LDAP_BIND_DN"`
	PageSize           uint32        `yaml:"page_size" env:"LDAP_PAGE_SIZE"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify" env:"LDAP_INSECURE_SKIP_VERIFY"`
	Timeout            time.Duration `yaml:"-" env:"-"`
	TimeoutRaw         string        `yaml:"timeout" env:"LDAP_TIMEOUT"`
}

// Load は指定されたパスから設定ファイルを読み込み、環境変数で上書きします。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ResolvePath は -config フラグ、CONFIG_PATH、既定パスの順に設定ファイルのパスを決定します。
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "assets/local.yaml"
}

func (c *Config) validateAndNormalize() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}

	if err := c.Database.validateAndNormalize(); err != nil {
		return err
	}

	c.Logging.normalize()

	if err := c.Sync.validateAndNormalize(); err != nil {
		return err
	}

	if c.Google.CustomerID == "" {
		c.Google.CustomerID = defaultGoogleCustomerID
	}

	if err := c.LDAP.validateAndNormalize(); err != nil {
		return err
	}

	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

func (l *LoggingConfig) normalize() {
	if l.Env == "" {
		l.Env = "production"
	}
	if l.Level == "" {
		l.Level = "info"
	}
}

func (s *SyncConfig) validateAndNormalize() error {
	if s.PageSize < 0 {
		return fmt.Errorf("config: sync.page_size must not be negative")
	}
	if s.PageSize == 0 {
		s.PageSize = defaultSyncPageSize
	}

	threshold, err := parseDurationAllowEmpty(s.OverdueThresholdRaw)
	if err != nil {
		return fmt.Errorf("config: sync.overdue_threshold: %w", err)
	}
	if threshold <= 0 {
		threshold = defaultOverdueThreshold
	}
	s.OverdueThreshold = threshold

	if s.DefaultCurrency == "" {
		s.DefaultCurrency = defaultCurrency
	}
	return nil
}

func (l *LDAPConfig) validateAndNormalize() error {
	if l.URL != "" {
		u, err := url.Parse(l.URL)
		if err != nil {
			return fmt.Errorf("config: ldap.url: %w", err)
		}
		if u.Scheme != "ldap" && u.Scheme != "ldaps" {
			return fmt.Errorf("config: ldap.url must use ldap or ldaps scheme")
		}
	}
	if l.PageSize == 0 {
		l.PageSize = defaultLDAPPageSize
	}

	timeout, err := parseDurationAllowEmpty(l.TimeoutRaw)
	if err != nil {
		return fmt.Errorf("config: ldap.timeout: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultLDAPTimeout
	}
	l.Timeout = timeout
	return nil
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// DSN は pgx 用の接続文字列を返します。ユーザー名とパスワードはエスケープされます。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Name,
	}
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	if d.ApplicationName != "" {
		q.Set("application_name", d.ApplicationName)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
