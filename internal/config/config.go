package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix prefixes every environment variable override
const EnvPrefix = "COLLAB_REPORT"

type Config struct {
	GitHub  GitHubConfig  `mapstructure:"github"`
	Report  ReportConfig  `mapstructure:"report"`
	Output  OutputConfig  `mapstructure:"output"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// GitHubConfig defines how to reach and authenticate against GitHub
type GitHubConfig struct {
	BaseURL string        `mapstructure:"base_url"` // API base URL
	Token   string        `mapstructure:"token"`    // Authentication token (PAT or GITHUB_TOKEN)
	Timeout time.Duration `mapstructure:"timeout"`  // Per-request HTTP timeout

	// GitHub App authentication (optional, wins over Token)
	AppID             int64  `mapstructure:"app_id"`              // GitHub App ID
	AppPrivateKey     string `mapstructure:"app_private_key"`     // Private key (file path or inline PEM)
	AppInstallationID int64  `mapstructure:"app_installation_id"` // Installation ID
}

// ReportConfig defines what the report covers and where it is committed
type ReportConfig struct {
	Organization     string `mapstructure:"organization"`
	Permission       string `mapstructure:"permission"`  // ADMIN, MAINTAIN, WRITE, TRIAGE, READ or ALL
	Affiliation      string `mapstructure:"affiliation"` // ALL, DIRECT or OUTSIDE
	Days             int    `mapstructure:"days"`        // contribution lookback window
	Variant          string `mapstructure:"variant"`     // basic or extended
	JSON             bool   `mapstructure:"json"`        // also emit the JSON report
	CommitterName    string `mapstructure:"committer_name"`
	CommitterEmail   string `mapstructure:"committer_email"`
	TargetRepository string `mapstructure:"target_repository"` // owner/name receiving the report
	Branch           string `mapstructure:"branch"`            // empty for the default branch
}

// OutputConfig redirects reports to a local directory instead of a commit
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// FetchConfig tunes request pacing and retries
type FetchConfig struct {
	PageDelay   time.Duration `mapstructure:"page_delay"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // "debug", "info", "warn", "error"
	Format     string `mapstructure:"format"` // "json" or "text"
	OutputFile string `mapstructure:"output_file"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// maxDays is the widest contributionsCollection window GitHub accepts
const maxDays = 365

var (
	permissions  = []string{"ADMIN", "MAINTAIN", "WRITE", "TRIAGE", "READ", "ALL"}
	affiliations = []string{"ALL", "DIRECT", "OUTSIDE"}
)

// flagKeys maps command line flags to configuration keys
var flagKeys = map[string]string{
	"base-url":        "github.base_url",
	"token":           "github.token",
	"app-id":          "github.app_id",
	"private-key":     "github.app_private_key",
	"installation-id": "github.app_installation_id",
	"org":             "report.organization",
	"permission":      "report.permission",
	"affiliation":     "report.affiliation",
	"days":            "report.days",
	"variant":         "report.variant",
	"json":            "report.json",
	"committer-name":  "report.committer_name",
	"committer-email": "report.committer_email",
	"target-repo":     "report.target_repository",
	"branch":          "report.branch",
	"output-dir":      "output.dir",
	"page-delay":      "fetch.page_delay",
	"log-level":       "logging.level",
}

// RegisterFlags declares the command line flags Load understands
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("base-url", "", "GitHub API base URL (GHES: https://host/api/v3)")
	fs.String("token", "", "GitHub token (defaults to GITHUB_TOKEN)")
	fs.Int64("app-id", 0, "GitHub App ID")
	fs.String("private-key", "", "GitHub App private key, as a file path or inline PEM")
	fs.Int64("installation-id", 0, "GitHub App installation ID")
	fs.String("org", "", "organization to report on (defaults to the triggering event's organization)")
	fs.String("permission", "", "repository permission to report: ADMIN, MAINTAIN, WRITE, TRIAGE, READ or ALL")
	fs.String("affiliation", "", "collaborator affiliation: ALL, DIRECT or OUTSIDE")
	fs.Int("days", 0, "contribution lookback window in days")
	fs.String("variant", "", "report variant: basic or extended")
	fs.Bool("json", false, "also write the JSON report")
	fs.String("committer-name", "", "name of the report committer")
	fs.String("committer-email", "", "email of the report committer")
	fs.String("target-repo", "", "owner/name of the repository receiving the report (defaults to GITHUB_REPOSITORY)")
	fs.String("branch", "", "branch receiving the report (defaults to the default branch)")
	fs.String("output-dir", "", "write reports under this directory instead of committing them")
	fs.Duration("page-delay", 0, "delay between GitHub requests")
	fs.String("log-level", "", "log level: debug, info, warn or error")
}

// Load reads .env, config.yaml, environment variables and flags, in
// increasing precedence, and returns a validated configuration.
func Load(fs *pflag.FlagSet) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = gotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// report.days -> COLLAB_REPORT_REPORT_DAYS
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	if err := bindEnvFallbacks(); err != nil {
		return nil, err
	}
	if fs != nil {
		if err := bindFlags(fs); err != nil {
			return nil, err
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("github.base_url", "https://api.github.com")
	viper.SetDefault("github.timeout", 60*time.Second)
	viper.SetDefault("github.app_id", 0)
	viper.SetDefault("github.app_installation_id", 0)
	viper.SetDefault("report.permission", "ADMIN")
	viper.SetDefault("report.affiliation", "ALL")
	viper.SetDefault("report.days", 90)
	viper.SetDefault("report.variant", "extended")
	viper.SetDefault("report.json", false)
	viper.SetDefault("report.committer_name", "github-actions")
	viper.SetDefault("report.committer_email", "github-actions@github.com")
	viper.SetDefault("fetch.page_delay", 5*time.Second)
	viper.SetDefault("fetch.max_attempts", 5)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output_file", "")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
}

// bindEnvFallbacks lets the variables GitHub Actions provides stand in for unset keys
func bindEnvFallbacks() error {
	fallbacks := map[string]string{
		"github.base_url":          "GITHUB_API_URL",
		"github.token":             "GITHUB_TOKEN",
		"report.target_repository": "GITHUB_REPOSITORY",
	}
	for key, env := range fallbacks {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := viper.BindEnv(key, prefixed, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// bindFlags binds only flags set on the command line so unset flags never mask lower layers
func bindFlags(fs *pflag.FlagSet) error {
	var bindErr error
	fs.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		if err := viper.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("failed to bind flag --%s: %w", f.Name, err)
		}
	})
	return bindErr
}

// resolve normalizes enumerations and fills values that come from files
func (c *Config) resolve() error {
	c.Report.Permission = strings.ToUpper(strings.TrimSpace(c.Report.Permission))
	c.Report.Affiliation = strings.ToUpper(strings.TrimSpace(c.Report.Affiliation))
	c.Report.Variant = strings.ToLower(strings.TrimSpace(c.Report.Variant))
	c.GitHub.BaseURL = strings.TrimSuffix(strings.TrimSpace(c.GitHub.BaseURL), "/")

	if c.Report.Organization == "" {
		org, err := EventOrganization(os.Getenv("GITHUB_EVENT_PATH"))
		if err != nil {
			return err
		}
		c.Report.Organization = org
	}

	if c.GitHub.AppPrivateKey != "" {
		key, err := LoadPrivateKey(c.GitHub.AppPrivateKey)
		if err != nil {
			return err
		}
		c.GitHub.AppPrivateKey = key
	}
	return nil
}

// Validate checks the configuration for a report run
func (c *Config) Validate() error {
	var errs []error

	if c.Report.Organization == "" {
		errs = append(errs, errors.New("report.organization is required (set --org or run from an organization event)"))
	}
	if !slices.Contains(permissions, c.Report.Permission) {
		errs = append(errs, fmt.Errorf("report.permission %q must be one of %s", c.Report.Permission, strings.Join(permissions, ", ")))
	}
	if !slices.Contains(affiliations, c.Report.Affiliation) {
		errs = append(errs, fmt.Errorf("report.affiliation %q must be one of %s", c.Report.Affiliation, strings.Join(affiliations, ", ")))
	}
	if c.Report.Days <= 0 || c.Report.Days > maxDays {
		errs = append(errs, fmt.Errorf("report.days must be between 1 and %d, got %d", maxDays, c.Report.Days))
	}
	if c.Report.Variant != "basic" && c.Report.Variant != "extended" {
		errs = append(errs, fmt.Errorf("report.variant %q must be basic or extended", c.Report.Variant))
	}
	if c.Output.Dir == "" {
		owner, repo, ok := strings.Cut(c.Report.TargetRepository, "/")
		if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
			errs = append(errs, fmt.Errorf("report.target_repository %q must be owner/name (or set output.dir)", c.Report.TargetRepository))
		}
	}
	if c.Fetch.PageDelay < 0 {
		errs = append(errs, errors.New("fetch.page_delay must not be negative"))
	}
	if c.Fetch.MaxAttempts < 1 {
		errs = append(errs, errors.New("fetch.max_attempts must be at least 1"))
	}

	if c.HasAppAuth() {
		if _, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(c.GitHub.AppPrivateKey)); err != nil {
			errs = append(errs, fmt.Errorf("github.app_private_key is not a valid RSA private key: %w", err))
		}
	} else {
		partial := c.GitHub.AppID != 0 || c.GitHub.AppPrivateKey != "" || c.GitHub.AppInstallationID != 0
		switch {
		case partial:
			errs = append(errs, errors.New("github app auth needs app_id, app_private_key and app_installation_id together"))
		case c.GitHub.Token == "":
			errs = append(errs, errors.New("github.token or GitHub App credentials are required"))
		}
	}

	return errors.Join(errs...)
}

// HasAppAuth reports whether all three GitHub App credentials are set
func (c *Config) HasAppAuth() bool {
	return c.GitHub.AppID > 0 && c.GitHub.AppPrivateKey != "" && c.GitHub.AppInstallationID > 0
}

// LoadPrivateKey returns value as-is when it is PEM, otherwise the contents of the file it names
func LoadPrivateKey(value string) (string, error) {
	if strings.Contains(value, "-----BEGIN") {
		return value, nil
	}
	data, err := os.ReadFile(value)
	if err != nil {
		return "", fmt.Errorf("failed to read GitHub App private key: %w", err)
	}
	return string(data), nil
}

// EventOrganization reads organization.login from a GitHub Actions event payload.
// An empty path yields an empty login.
func EventOrganization(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read event payload: %w", err)
	}

	var payload struct {
		Organization *struct {
			Login string `json:"login"`
		} `json:"organization"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("failed to parse event payload %s: %w", path, err)
	}
	if payload.Organization == nil {
		return "", nil
	}
	return payload.Organization.Login, nil
}
