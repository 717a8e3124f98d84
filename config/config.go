// Package config loads and validates the reponews configuration file.
//
// The file is YAML. Boolean activity preferences are pointer-typed so that
// "unset" falls through to the next precedence layer; see the policy package
// for how the layers are resolved.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spiffcs/reponews/internal/model"
)

// Config represents the application configuration.
type Config struct {
	Recipient     string         `yaml:"recipient,omitempty"`
	Sender        string         `yaml:"sender,omitempty"`
	Subject       string         `yaml:"subject,omitempty"`
	AuthToken     string         `yaml:"auth_token,omitempty"`
	AuthTokenFile string         `yaml:"auth_token_file,omitempty"`
	StateFile     string         `yaml:"state_file,omitempty"`
	APIURL        string         `yaml:"api_url,omitempty"`
	SMTP          SMTPConfig     `yaml:"smtp,omitempty"`
	Repos         ReposConfig    `yaml:"repos,omitempty"`
	Activity      ActivityConfig `yaml:"activity,omitempty"`

	// Populated by Validate.
	affiliations []model.Affiliation
	include      []RepoPattern
	exclude      []RepoPattern
	policyKeys   []RepoPattern
}

// SMTPConfig holds mail submission settings for the notifier.
type SMTPConfig struct {
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	StartTLS *bool  `yaml:"starttls,omitempty"`
}

// UseStartTLS reports whether the SMTP session should upgrade to TLS.
// Defaults to true when unset.
func (s SMTPConfig) UseStartTLS() bool {
	return s.StartTLS == nil || *s.StartTLS
}

// ReposConfig selects which repositories are tracked.
type ReposConfig struct {
	// Affiliations lists the affiliation kinds whose repositories are
	// tracked implicitly. Nil means all kinds; an explicit empty list
	// disables affiliation-based tracking.
	Affiliations []string `yaml:"affiliations,omitempty"`
	Include      []string `yaml:"include,omitempty"`
	Exclude      []string `yaml:"exclude,omitempty"`
}

// PolicyOverrides is one layer of the activity-preference precedence chain.
// Nil fields are unset and fall through to the next layer.
type PolicyOverrides struct {
	Issues       *bool `yaml:"issues,omitempty"`
	PullRequests *bool `yaml:"pull_requests,omitempty"`
	Discussions  *bool `yaml:"discussions,omitempty"`
	Releases     *bool `yaml:"releases,omitempty"`
	Prereleases  *bool `yaml:"prereleases,omitempty"`
	Drafts       *bool `yaml:"drafts,omitempty"`
	Tags         *bool `yaml:"tags,omitempty"`
	ReleasedTags *bool `yaml:"released_tags,omitempty"`
	Stars        *bool `yaml:"stars,omitempty"`
	Forks        *bool `yaml:"forks,omitempty"`
	MyActivity   *bool `yaml:"my_activity,omitempty"`
}

// RepoOverrides is a per-pattern policy layer. Keying a pattern under
// activity.repo implicitly includes it in the tracked set unless Include is
// explicitly false.
type RepoOverrides struct {
	PolicyOverrides `yaml:",inline"`
	Include         *bool `yaml:"include,omitempty"`
}

// ActivityConfig is the nested precedence table: global keys inline, the
// affiliated-default layer under "affiliated", and per-repo layers keyed by
// pattern under "repo".
type ActivityConfig struct {
	PolicyOverrides `yaml:",inline"`
	Affiliated      PolicyOverrides          `yaml:"affiliated,omitempty"`
	Repo            map[string]RepoOverrides `yaml:"repo,omitempty"`
}

// DefaultConfigDir returns the default config directory.
func DefaultConfigDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ".reponews"
	}
	return filepath.Join(configDir, "reponews")
}

// DefaultConfigPath returns the default path of the config file.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultStateFile returns the default path of the tracking-state file.
func DefaultStateFile() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "reponews", "state.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".reponews", "state.json")
	}
	return filepath.Join(home, ".local", "state", "reponews", "state.json")
}

const defaultSubject = "[reponews] New activity on your GitHub repositories"

// Load reads, parses, and validates the config file at path. Unknown keys
// are an error: a typoed preference must not silently fall back to a
// default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty file is a valid all-defaults config; the decoder reports it
	// as EOF.
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.applyDefaults(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults(basedir string) {
	if c.Subject == "" {
		c.Subject = defaultSubject
	}
	if c.APIURL == "" {
		c.APIURL = "https://api.github.com"
	}
	if c.StateFile == "" {
		c.StateFile = DefaultStateFile()
	} else {
		c.StateFile = resolvePath(basedir, c.StateFile)
	}
	if c.AuthTokenFile != "" {
		c.AuthTokenFile = resolvePath(basedir, c.AuthTokenFile)
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
}

// resolvePath expands a leading ~ and resolves relative paths against the
// config file's directory.
func resolvePath(basedir, path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(basedir, path)
}

// Validate checks affiliation tokens, repository patterns, and address
// syntax. It runs before any network activity so that configuration errors
// surface immediately.
func (c *Config) Validate() error {
	if c.Repos.Affiliations == nil {
		c.affiliations = model.AllAffiliations()
	} else {
		c.affiliations = make([]model.Affiliation, 0, len(c.Repos.Affiliations))
		for _, tok := range c.Repos.Affiliations {
			a, err := model.ParseAffiliation(tok)
			if err != nil {
				return err
			}
			c.affiliations = append(c.affiliations, a)
		}
	}

	var err error
	if c.include, err = parsePatterns(c.Repos.Include); err != nil {
		return err
	}
	if c.exclude, err = parsePatterns(c.Repos.Exclude); err != nil {
		return err
	}

	c.policyKeys = c.policyKeys[:0]
	for key, overrides := range c.Activity.Repo {
		p, err := ParsePattern(key)
		if err != nil {
			return err
		}
		if overrides.Include == nil || *overrides.Include {
			c.policyKeys = append(c.policyKeys, p)
		}
	}

	for _, addr := range []string{c.Recipient, c.Sender} {
		if addr == "" {
			continue
		}
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("invalid address %q: %w", addr, err)
		}
	}
	return nil
}

func parsePatterns(specs []string) ([]RepoPattern, error) {
	patterns := make([]RepoPattern, 0, len(specs))
	for _, s := range specs {
		p, err := ParsePattern(s)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// Affiliations returns the validated affiliation kinds to track.
func (c *Config) Affiliations() []model.Affiliation { return c.affiliations }

// IncludePatterns returns the validated repos.include patterns.
func (c *Config) IncludePatterns() []RepoPattern { return c.include }

// ExcludePatterns returns the validated repos.exclude patterns.
func (c *Config) ExcludePatterns() []RepoPattern { return c.exclude }

// PolicyKeyPatterns returns the patterns keyed under activity.repo that are
// implicitly included in the tracked set (include not set to false).
func (c *Config) PolicyKeyPatterns() []RepoPattern { return c.policyKeys }

// Layers returns the applicable policy layers for one repository in
// application order, lowest precedence first: global, affiliated defaults
// (affiliated repos only), owner wildcard, exact repo. Later layers override
// earlier ones key by key.
func (c *Config) Layers(owner, name string, affiliated bool) []*PolicyOverrides {
	layers := []*PolicyOverrides{&c.Activity.PolicyOverrides}
	if affiliated {
		layers = append(layers, &c.Activity.Affiliated)
	}
	if o, ok := c.Activity.Repo[owner+"/*"]; ok {
		layers = append(layers, &o.PolicyOverrides)
	}
	if o, ok := c.Activity.Repo[owner+"/"+name]; ok {
		layers = append(layers, &o.PolicyOverrides)
	}
	return layers
}

// Token returns the GitHub access token: auth_token, then auth_token_file,
// then the GITHUB_TOKEN / GH_TOKEN environment variables.
func (c *Config) Token() (string, error) {
	if c.AuthToken != "" {
		return c.AuthToken, nil
	}
	if c.AuthTokenFile != "" {
		data, err := os.ReadFile(c.AuthTokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read auth token file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	for _, env := range []string{"GITHUB_TOKEN", "GH_TOKEN"} {
		if tok := os.Getenv(env); tok != "" {
			return tok, nil
		}
	}
	return "", fmt.Errorf("GitHub access token not found: set auth_token in the config file or the GITHUB_TOKEN environment variable")
}

// ToYAML returns the config as a YAML string.
func (c *Config) ToYAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}

// MinimalConfig returns a starter config file template.
func MinimalConfig() string {
	return `# reponews configuration file

# Where the activity report is sent.
recipient: "you@example.com"
# sender: "reponews <reponews@example.com>"

# smtp:
#   host: smtp.example.com
#   port: 587
#   username: you@example.com
#   password: hunter2

# Track repositories beyond the ones affiliated with your account:
# repos:
#   include:
#     - some-org/*
#     - someone/interesting-repo
#   exclude:
#     - some-org/noisy-repo

# Tune which activity is reported. Keys set closer to a specific repo win.
# activity:
#   stars: false
#   repo:
#     "someone/interesting-repo":
#       stars: true
`
}
