package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 17, cfg.Antispam.Difficulty)
	assert.Equal(t, 10, cfg.Antispam.ProblemsParallel)
	assert.Equal(t, 6, cfg.Antispam.SolutionsRequire)
	assert.Equal(t, 80, cfg.Avatar.FullPixels())
	assert.False(t, cfg.MailEnabled())
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "perch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
antispam:
  difficulty: 12
  validity: 2m
site:
  name: Example
  admin_emails: [owner@example.com]
email:
  smtp:
    host: smtp.example.com
  identity:
    from_email: comments@example.com
`), 0o600))

	t.Setenv("PERCH_DIFFICULTY", "14")
	t.Setenv("PERCH_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("PERCH_TRUST_PROXY", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.True(t, cfg.Server.TrustProxy)
	assert.Equal(t, 14, cfg.Antispam.Difficulty)
	assert.Equal(t, 2*time.Minute, cfg.Antispam.Validity)
	assert.Equal(t, 6, cfg.Antispam.SolutionsRequire)
	assert.Equal(t, "Example", cfg.Site.Name)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Site.CORSOrigins)
	assert.Equal(t, 587, cfg.Email.SMTP.Port)
	assert.True(t, cfg.MailEnabled())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"difficulty zero", func(c *Config) { c.Antispam.Difficulty = 0 }},
		{"difficulty too large", func(c *Config) { c.Antispam.Difficulty = 256 }},
		{"require above parallel", func(c *Config) { c.Antispam.SolutionsRequire = 11 }},
		{"require zero", func(c *Config) { c.Antispam.SolutionsRequire = 0 }},
		{"short validity", func(c *Config) { c.Antispam.Validity = time.Millisecond }},
		{"page check without site", func(c *Config) {
			c.Security.CheckPagesExist = true
			c.Site.SiteURL = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
