package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     Server     `yaml:"server"`
	Database   Database   `yaml:"database"`
	Security   Security   `yaml:"security"`
	Antispam   Antispam   `yaml:"antispam"`
	Site       Site       `yaml:"site"`
	Email      Email      `yaml:"email"`
	Avatar     Avatar     `yaml:"avatar"`
	RateLimits RateLimits `yaml:"rate_limits"`
}

type Server struct {
	Addr      string `yaml:"addr"`
	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`
	// TrustProxy takes the client address from X-Forwarded-For. Enable only
	// behind a reverse proxy that appends to that header.
	TrustProxy bool `yaml:"trust_proxy"`
}

type Database struct {
	Path string `yaml:"path"`
}

type Security struct {
	SecretKey       string `yaml:"secret_key"`
	CheckPagesExist bool   `yaml:"check_pages_exist"`
}

type Antispam struct {
	Difficulty       int           `yaml:"difficulty"`
	ProblemsParallel int           `yaml:"problems_parallel"`
	SolutionsRequire int           `yaml:"solutions_require"`
	Validity         time.Duration `yaml:"validity"`
}

type Site struct {
	Name        string   `yaml:"name"`
	SiteURL     string   `yaml:"site_url"`
	CommentsURL string   `yaml:"comments_url"`
	AdminEmails []string `yaml:"admin_emails"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type Email struct {
	SMTP     SMTP     `yaml:"smtp"`
	Identity Identity `yaml:"identity"`
}

type SMTP struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	StartTLS bool   `yaml:"starttls"`
	TLS      bool   `yaml:"tls"`
}

type Identity struct {
	FromName  string `yaml:"from_name"`
	FromEmail string `yaml:"from_email"`
}

type Avatar struct {
	Gravatar    bool `yaml:"gravatar"`
	SizePixels  int  `yaml:"size_pixels"`
	ScaleFactor int  `yaml:"scale_factor"`
}

// FullPixels is the size requested upstream.
func (a Avatar) FullPixels() int {
	return a.SizePixels * a.ScaleFactor
}

type RateLimits struct {
	ChallengePerMinute int `yaml:"challenge_per_minute"`
	CommentPerMinute   int `yaml:"comment_per_minute"`
}

func Default() Config {
	return Config{
		Server:   Server{Addr: ":8080", LogLevel: "info"},
		Database: Database{Path: "perch.db"},
		Antispam: Antispam{
			Difficulty:       17,
			ProblemsParallel: 10,
			SolutionsRequire: 6,
			Validity:         5 * time.Minute,
		},
		Site: Site{
			Name:        "Perch",
			SiteURL:     "http://localhost:8000",
			CommentsURL: "http://localhost:8080",
			CORSOrigins: []string{"*"},
		},
		Email: Email{
			SMTP:     SMTP{Port: 587, StartTLS: true},
			Identity: Identity{FromName: "Comments"},
		},
		Avatar:     Avatar{Gravatar: true, SizePixels: 40, ScaleFactor: 2},
		RateLimits: RateLimits{ChallengePerMinute: 30, CommentPerMinute: 10},
	}
}

// Load reads config.env into the environment when present, then the YAML
// file at path (if any), then applies PERCH_* environment overrides.
func Load(path string) (Config, error) {
	_ = godotenv.Load("config.env")

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	cfg.Server.Addr = envString("PERCH_ADDR", cfg.Server.Addr)
	cfg.Server.LogLevel = envString("PERCH_LOG_LEVEL", cfg.Server.LogLevel)
	cfg.Server.LogPretty = envBool("PERCH_LOG_PRETTY", cfg.Server.LogPretty)
	cfg.Server.TrustProxy = envBool("PERCH_TRUST_PROXY", cfg.Server.TrustProxy)

	cfg.Database.Path = envString("PERCH_DB", cfg.Database.Path)

	cfg.Security.SecretKey = envString("PERCH_SECRET_KEY", cfg.Security.SecretKey)
	cfg.Security.CheckPagesExist = envBool("PERCH_CHECK_PAGES_EXIST", cfg.Security.CheckPagesExist)

	cfg.Antispam.Difficulty = envInt("PERCH_DIFFICULTY", cfg.Antispam.Difficulty)
	cfg.Antispam.ProblemsParallel = envInt("PERCH_PROBLEMS_PARALLEL", cfg.Antispam.ProblemsParallel)
	cfg.Antispam.SolutionsRequire = envInt("PERCH_SOLUTIONS_REQUIRE", cfg.Antispam.SolutionsRequire)
	cfg.Antispam.Validity = envDuration("PERCH_CHALLENGE_VALIDITY", cfg.Antispam.Validity)

	cfg.Site.Name = envString("PERCH_SITE_NAME", cfg.Site.Name)
	cfg.Site.SiteURL = envString("PERCH_SITE_URL", cfg.Site.SiteURL)
	cfg.Site.CommentsURL = envString("PERCH_SITE_COMMENTS_URL", cfg.Site.CommentsURL)
	cfg.Site.AdminEmails = envStringSlice("PERCH_SITE_ADMIN_EMAILS", cfg.Site.AdminEmails)
	cfg.Site.CORSOrigins = envStringSlice("PERCH_CORS_ORIGINS", cfg.Site.CORSOrigins)

	cfg.Email.SMTP.Host = envString("PERCH_SMTP_HOST", cfg.Email.SMTP.Host)
	cfg.Email.SMTP.Port = envInt("PERCH_SMTP_PORT", cfg.Email.SMTP.Port)
	cfg.Email.SMTP.Username = envString("PERCH_SMTP_USERNAME", cfg.Email.SMTP.Username)
	cfg.Email.SMTP.Password = envString("PERCH_SMTP_PASSWORD", cfg.Email.SMTP.Password)
	cfg.Email.SMTP.StartTLS = envBool("PERCH_SMTP_STARTTLS", cfg.Email.SMTP.StartTLS)
	cfg.Email.SMTP.TLS = envBool("PERCH_SMTP_TLS", cfg.Email.SMTP.TLS)
	cfg.Email.Identity.FromName = envString("PERCH_EMAIL_FROM_NAME", cfg.Email.Identity.FromName)
	cfg.Email.Identity.FromEmail = envString("PERCH_EMAIL_FROM", cfg.Email.Identity.FromEmail)

	cfg.Avatar.Gravatar = envBool("PERCH_AVATAR_GRAVATAR", cfg.Avatar.Gravatar)
	cfg.Avatar.SizePixels = envInt("PERCH_AVATAR_SIZE_PIXELS", cfg.Avatar.SizePixels)
	cfg.Avatar.ScaleFactor = envInt("PERCH_AVATAR_SCALE_FACTOR", cfg.Avatar.ScaleFactor)

	cfg.RateLimits.ChallengePerMinute = envInt("PERCH_RL_CHALLENGE_PER_MIN", cfg.RateLimits.ChallengePerMinute)
	cfg.RateLimits.CommentPerMinute = envInt("PERCH_RL_COMMENT_PER_MIN", cfg.RateLimits.CommentPerMinute)
}

func (c Config) Validate() error {
	var errs []error
	a := c.Antispam
	if a.Difficulty < 1 || a.Difficulty > 255 {
		errs = append(errs, fmt.Errorf("antispam.difficulty must be within 1..255, got %d", a.Difficulty))
	}
	if a.ProblemsParallel < 1 || a.ProblemsParallel > 255 {
		errs = append(errs, fmt.Errorf("antispam.problems_parallel must be within 1..255, got %d", a.ProblemsParallel))
	}
	if a.SolutionsRequire < 1 || a.SolutionsRequire > a.ProblemsParallel {
		errs = append(errs, fmt.Errorf("antispam.solutions_require must be within 1..problems_parallel, got %d", a.SolutionsRequire))
	}
	if a.Validity < time.Second {
		errs = append(errs, fmt.Errorf("antispam.validity must be at least 1s, got %s", a.Validity))
	}
	if c.Avatar.SizePixels < 1 || c.Avatar.ScaleFactor < 1 {
		errs = append(errs, errors.New("avatar.size_pixels and avatar.scale_factor must be positive"))
	}
	if c.Security.CheckPagesExist && c.Site.SiteURL == "" {
		errs = append(errs, errors.New("site.site_url is required when security.check_pages_exist is set"))
	}
	return errors.Join(errs...)
}

// MailEnabled reports whether enough SMTP settings exist to send alerts.
func (c Config) MailEnabled() bool {
	return c.Email.SMTP.Host != "" && c.Email.Identity.FromEmail != "" && len(c.Site.AdminEmails) > 0
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envStringSlice(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
