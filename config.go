package societyadmin

import (
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr       string        `mapstructure:"LISTEN_ADDR"`
	APIBaseURL       string        `mapstructure:"API_BASE_URL"`
	ImageBaseURL     string        `mapstructure:"IMAGE_BASE_URL"`
	PostgresUrl      string        `mapstructure:"POSTGRES_URL"`
	RedisAddr        string        `mapstructure:"REDIS_ADDR"`
	RedisPassword    string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB          int           `mapstructure:"REDIS_DB"`
	SessionTTL       time.Duration `mapstructure:"SESSION_TTL"`
	CacheTTL         time.Duration `mapstructure:"CACHE_TTL"`
	PageSize         int           `mapstructure:"PAGE_SIZE"`
	CurrencySymbol   string        `mapstructure:"CURRENCY_SYMBOL"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	LogFormat        string        `mapstructure:"LOG_FORMAT"`
	CSRFKey          string        `mapstructure:"CSRF_KEY"`
	CookieSecure     bool          `mapstructure:"COOKIE_SECURE"`
	AllowedOrigins   []string      `mapstructure:"ALLOWED_ORIGINS"`
	TrustedProxies   []string      `mapstructure:"TRUSTED_PROXIES"`
	LoginRateLimit   int           `mapstructure:"LOGIN_RATE_LIMIT"`
	SnapshotInterval time.Duration `mapstructure:"SNAPSHOT_INTERVAL"`
	ServiceToken     string        `mapstructure:"SERVICE_TOKEN"`
	ServiceUsername  string        `mapstructure:"SERVICE_USERNAME"`
	ServicePassword  string        `mapstructure:"SERVICE_PASSWORD"`
}

var configDefaults = map[string]interface{}{
	"LISTEN_ADDR":       ":8080",
	"API_BASE_URL":      "",
	"IMAGE_BASE_URL":    "",
	"POSTGRES_URL":      "",
	"REDIS_ADDR":        "",
	"REDIS_PASSWORD":    "",
	"REDIS_DB":          0,
	"SESSION_TTL":       8 * time.Hour,
	"CACHE_TTL":         30 * time.Second,
	"PAGE_SIZE":         20,
	"CURRENCY_SYMBOL":   "$",
	"LOG_LEVEL":         "info",
	"LOG_FORMAT":        "json",
	"CSRF_KEY":          "",
	"COOKIE_SECURE":     false,
	"ALLOWED_ORIGINS":   []string{},
	"TRUSTED_PROXIES":   []string{},
	"LOGIN_RATE_LIMIT":  5,
	"SNAPSHOT_INTERVAL": time.Hour,
	"SERVICE_TOKEN":     "",
	"SERVICE_USERNAME":  "",
	"SERVICE_PASSWORD":  "",
}

// LoadConfig reads the optional env file at path and overlays the environment. Every key
// needs a default so that viper picks it up from the environment on Unmarshal.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	for key, value := range configDefaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")

		err := v.ReadInConfig()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("unable to read config file \"%s\": %w", path, err)
		}
	}

	v.AutomaticEnv()

	c := Config{}
	err := v.Unmarshal(&c)
	if err != nil {
		return Config{}, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	c.AllowedOrigins = splitList(c.AllowedOrigins)
	c.TrustedProxies = splitList(c.TrustedProxies)
	if c.ImageBaseURL == "" {
		c.ImageBaseURL = c.APIBaseURL
	}

	return c, nil
}

func (c Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}

	for name, raw := range map[string]string{"API_BASE_URL": c.APIBaseURL, "IMAGE_BASE_URL": c.ImageBaseURL} {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid %s %q: scheme must be http or https", name, raw)
		}
	}

	for _, proxy := range c.TrustedProxies {
		if _, err := ParseTrustedProxy(proxy); err != nil {
			return err
		}
	}

	if c.PageSize < 1 || c.PageSize > MaxPerPage {
		return fmt.Errorf("PAGE_SIZE must be between 1 and %d", MaxPerPage)
	}

	return nil
}

// ParseTrustedProxy accepts a single address or a CIDR range.
func ParseTrustedProxy(proxy string) (netip.Prefix, error) {
	if strings.Contains(proxy, "/") {
		prefix, err := netip.ParsePrefix(proxy)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", proxy, err)
		}
		return prefix.Masked(), nil
	}

	addr, err := netip.ParseAddr(proxy)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", proxy, err)
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// splitList flattens entries that arrived as one comma separated string.
func splitList(values []string) []string {
	var out []string
	for _, o := range values {
		for _, part := range strings.Split(o, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
