package societyadmin

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com/v1")

	c, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.ListenAddr)
	assert.Equal(t, "https://api.example.com/v1", c.APIBaseURL)
	assert.Equal(t, c.APIBaseURL, c.ImageBaseURL)
	assert.Equal(t, 8*time.Hour, c.SessionTTL)
	assert.Equal(t, 30*time.Second, c.CacheTTL)
	assert.Equal(t, 20, c.PageSize)
	assert.Equal(t, "$", c.CurrencySymbol)
	assert.Equal(t, 5, c.LoginRateLimit)
	assert.Empty(t, c.AllowedOrigins)
	assert.NoError(t, c.Validate())
}

func TestLoadConfigFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	err := os.WriteFile(path, []byte(
		"API_BASE_URL=https://file.example.com\n"+
			"IMAGE_BASE_URL=https://files.example.com\n"+
			"PAGE_SIZE=50\n"+
			"CACHE_TTL=1m\n"+
			"ALLOWED_ORIGINS=https://a.example.com, https://b.example.com\n"+
			"TRUSTED_PROXIES=10.0.0.0/8,192.0.2.7\n",
	), 0o600)
	require.NoError(t, err)

	t.Setenv("API_BASE_URL", "https://env.example.com")
	t.Setenv("COOKIE_SECURE", "true")

	c, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", c.APIBaseURL, "the environment wins over the file")
	assert.Equal(t, "https://files.example.com", c.ImageBaseURL)
	assert.Equal(t, 50, c.PageSize)
	assert.Equal(t, time.Minute, c.CacheTTL)
	assert.True(t, c.CookieSecure)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, c.AllowedOrigins)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.7"}, c.TrustedProxies)
	assert.NoError(t, c.Validate())
}

func TestConfigValidate(t *testing.T) {
	valid := Config{APIBaseURL: "https://api.example.com", ImageBaseURL: "https://api.example.com", PageSize: 20}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"missing base url", func(c *Config) { c.APIBaseURL = "" }},
		{"relative base url", func(c *Config) { c.APIBaseURL = "api.example.com" }},
		{"unsupported scheme", func(c *Config) { c.ImageBaseURL = "ftp://files.example.com" }},
		{"malformed url", func(c *Config) { c.APIBaseURL = "http://[::1" }},
		{"page size too small", func(c *Config) { c.PageSize = 0 }},
		{"page size too large", func(c *Config) { c.PageSize = MaxPerPage + 1 }},
		{"trusted proxy is a hostname", func(c *Config) { c.TrustedProxies = []string{"proxy.internal"} }},
		{"trusted proxy bad prefix", func(c *Config) { c.TrustedProxies = []string{"10.0.0.0/40"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.modify(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestParseTrustedProxy(t *testing.T) {
	prefix, err := ParseTrustedProxy("10.1.2.3/8")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0/8", prefix.String())

	prefix, err = ParseTrustedProxy("192.0.2.7")
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.7/32", prefix.String())

	prefix, err = ParseTrustedProxy("::1")
	require.NoError(t, err)
	assert.Equal(t, "::1/128", prefix.String())
}
