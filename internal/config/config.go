package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultThreads = 20
	// Unauthenticated probing is throttled hard by the target service,
	// so more workers only burn the rate budget faster.
	UnauthenticatedThreads = 5

	DefaultQueueSize      = 1000
	DefaultUpdateInterval = 30 * time.Second
	DefaultRateLimitSleep = 5 * time.Second
	DefaultStreamURL      = "wss://certstream.calidog.io/"
	DefaultProbeEndpoint  = "s3.amazonaws.com"
	DefaultKeywordsFile   = "keywords.txt"
	DefaultLogPath        = "domains.log"
)

// defaultPatterns is the built-in permutation pattern list, used when the
// config file supplies none. %s is replaced with the domain's name label.
var defaultPatterns = []string{
	"%s",
	"dev-%s",
	"%s-dev",
	"staging-%s",
	"%s-staging",
	"test-%s",
	"%s-test",
	"prod-%s",
	"%s-prod",
	"backup-%s",
	"%s-backup",
	"%s-assets",
	"%s-data",
	"%s-files",
}

// Credentials is an optional key pair passed through to the probe target.
// Presence alone lifts the worker cap; no signing is performed.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// fileConfig mirrors config.yaml.
type fileConfig struct {
	QueueSize      int      `yaml:"queue_size"`
	UpdateInterval int      `yaml:"update_interval"`   // seconds
	RateLimitSleep int      `yaml:"rate_limit_sleep"`  // seconds
	ProbeRate      float64  `yaml:"probe_rate"`        // probes/sec, 0 = unlimited
	StreamURL      string   `yaml:"stream_url"`
	ProbeEndpoint  string   `yaml:"probe_endpoint"`
	KeywordsFile   string   `yaml:"keywords_file"`
	Permutations   []string `yaml:"permutations"`
	AWSAccessKey   string   `yaml:"aws_access_key"`
	AWSSecretKey   string   `yaml:"aws_secret_key"`
}

// Options carries the command line into Load.
type Options struct {
	ConfigPath      string
	KeywordsPath    string // overrides keywords_file from the config
	Threads         int
	OnlyInteresting bool
	SkipLetsEncrypt bool
	IgnoreRateLimit bool
	LogToFile       bool
}

// Config is built once at startup and treated as immutable afterwards.
type Config struct {
	Threads         int
	OnlyInteresting bool
	SkipIssuers     []string
	IgnoreRateLimit bool
	LogToFile       bool
	LogPath         string

	QueueSize      int
	UpdateInterval time.Duration
	RateLimitSleep time.Duration
	ProbeRate      float64
	StreamURL      string
	ProbeEndpoint  string

	Keywords []string
	Patterns []string

	Credentials *Credentials
}

// Load reads the YAML config and the keyword file and assembles a Config.
// Any failure here is fatal to startup.
func Load(opts Options) (*Config, error) {
	raw, err := os.ReadFile(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", opts.ConfigPath, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", opts.ConfigPath, err)
	}

	cfg := &Config{
		Threads:         opts.Threads,
		OnlyInteresting: opts.OnlyInteresting,
		IgnoreRateLimit: opts.IgnoreRateLimit,
		LogToFile:       opts.LogToFile,
		LogPath:         DefaultLogPath,
		QueueSize:       fc.QueueSize,
		UpdateInterval:  time.Duration(fc.UpdateInterval) * time.Second,
		RateLimitSleep:  time.Duration(fc.RateLimitSleep) * time.Second,
		ProbeRate:       fc.ProbeRate,
		StreamURL:       fc.StreamURL,
		ProbeEndpoint:   fc.ProbeEndpoint,
		Patterns:        fc.Permutations,
	}

	if opts.SkipLetsEncrypt {
		cfg.SkipIssuers = []string{"Let's Encrypt"}
	}
	if fc.AWSAccessKey != "" && fc.AWSSecretKey != "" {
		cfg.Credentials = &Credentials{
			AccessKey: fc.AWSAccessKey,
			SecretKey: fc.AWSSecretKey,
		}
	}

	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = DefaultUpdateInterval
	}
	if cfg.RateLimitSleep <= 0 {
		cfg.RateLimitSleep = DefaultRateLimitSleep
	}
	if cfg.StreamURL == "" {
		cfg.StreamURL = DefaultStreamURL
	}
	if cfg.ProbeEndpoint == "" {
		cfg.ProbeEndpoint = DefaultProbeEndpoint
	}
	if len(cfg.Patterns) == 0 {
		cfg.Patterns = defaultPatterns
	}

	cfg.Threads = ClampThreads(cfg.Threads, cfg.Credentials != nil)

	keywordsPath := opts.KeywordsPath
	if keywordsPath == "" {
		keywordsPath = fc.KeywordsFile
	}
	if keywordsPath == "" {
		keywordsPath = DefaultKeywordsFile
	}
	cfg.Keywords, err = LoadKeywords(keywordsPath)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ClampThreads applies the worker-count policy: a sane default when the
// requested count is non-positive, and a hard cap without credentials.
func ClampThreads(requested int, authenticated bool) int {
	if requested <= 0 {
		requested = DefaultThreads
	}
	if !authenticated && requested > UnauthenticatedThreads {
		return UnauthenticatedThreads
	}
	return requested
}

// LoadKeywords reads one keyword per line, skipping blanks and # comments.
// Keywords are lowercased and de-duplicated.
func LoadKeywords(filename string) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("read keywords %s: %w", filename, err)
	}
	defer file.Close()

	set := mapset.NewSet[string]()
	var kws []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.ToLower(line)
		if set.Add(line) {
			kws = append(kws, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read keywords %s: %w", filename, err)
	}
	if len(kws) == 0 {
		return nil, fmt.Errorf("no keywords found in %s", filename)
	}
	return kws, nil
}
