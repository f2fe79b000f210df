package config

import (
	"strings"
)

// Profile is the YAML run profile. Every key is optional.
type Profile struct {
	Website           string            `yaml:"website,omitempty"`
	UseSitemap        bool              `yaml:"useSitemap,omitempty"`
	Depth             int               `yaml:"depth,omitempty"`
	Concurrency       int               `yaml:"concurrency,omitempty"`
	MaxDownloadBytes  int64             `yaml:"maxDownloadBytes,omitempty"`
	IgnoreLinks       []string          `yaml:"ignoreLinks,omitempty"`
	CleanContent      bool              `yaml:"cleanContent,omitempty"`
	CleanFormat       string            `yaml:"cleanFormat,omitempty"`
	RespectRobots     bool              `yaml:"respectRobots,omitempty"`
	Render            bool              `yaml:"render,omitempty"`
	RequestsPerSecond float64           `yaml:"requestsPerSecond,omitempty"`
	Proxy             string            `yaml:"proxy,omitempty"`
	UserAgent         string            `yaml:"userAgent,omitempty"`
	Headers           map[string]string `yaml:"headers,omitempty"`
	Storage           *StorageProfile   `yaml:"storage,omitempty"`
}

// StorageProfile selects where persisted files go. Configuring storage
// turns on SaveFiles.
type StorageProfile struct {
	Type string `yaml:"type,omitempty"`
	Path string `yaml:"path,omitempty"`
}

// StorageTypeLocal writes files to a local directory.
const StorageTypeLocal = "local"

// ApplyProfile copies profile values into c for every option whose flag
// was not set. flagSet reports whether the named CLI flag was given.
func (c *Config) ApplyProfile(p *Profile, flagSet func(name string) bool) error {
	if p == nil {
		return nil
	}
	use := func(flag string) bool { return !flagSet(flag) }

	if len(c.Targets) == 0 && p.Website != "" {
		c.Targets = []string{p.Website}
	}
	if use("sitemap") && p.UseSitemap {
		c.UseSitemap = true
	}
	if use("depth") && p.Depth != 0 {
		c.Depth = p.Depth
	}
	if use("concurrency") && p.Concurrency != 0 {
		c.Concurrency = p.Concurrency
	}
	if use("max-bytes") && p.MaxDownloadBytes != 0 {
		c.MaxDownloadBytes = p.MaxDownloadBytes
	}
	if use("ignore") && len(p.IgnoreLinks) > 0 {
		c.IgnoreLinks = p.IgnoreLinks
	}
	if use("clean") && p.CleanContent {
		c.CleanContent = true
	}
	if use("clean-format") && p.CleanFormat != "" {
		c.CleanFormat = strings.ToLower(p.CleanFormat)
	}
	if use("robots") && p.RespectRobots {
		c.RespectRobots = true
	}
	if use("render") && p.Render {
		c.Render = true
	}
	if use("rps") && p.RequestsPerSecond != 0 {
		c.RequestsPerSecond = p.RequestsPerSecond
	}
	if use("proxy") && p.Proxy != "" {
		c.Proxy = p.Proxy
	}
	if use("user-agent") && p.UserAgent != "" {
		c.UserAgent = p.UserAgent
	}
	if len(p.Headers) > 0 {
		merged := make(map[string]string, len(p.Headers)+len(c.Headers))
		for k, v := range p.Headers {
			merged[k] = v
		}
		for k, v := range c.Headers {
			merged[k] = v
		}
		c.Headers = merged
	}

	if p.Storage != nil {
		if t := strings.ToLower(p.Storage.Type); t != "" && t != StorageTypeLocal {
			return ErrUnsupportedStorage
		}
		if use("save") {
			c.SaveFiles = true
		}
		if use("output-dir") && p.Storage.Path != "" {
			c.OutputDir = p.Storage.Path
		}
	}
	return nil
}
