// Package config loads pcapfilter settings using viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	pcap "github.com/packetcap/go-pcapfilter"
)

// Config maps to the `pcapfilter:` root key in YAML. Environment variables
// override it with the PCAPFILTER_ prefix, e.g. PCAPFILTER_SNAPLEN.
type Config struct {
	Interface   string        `mapstructure:"interface"`
	Snaplen     int32         `mapstructure:"snaplen"`
	Promiscuous bool          `mapstructure:"promiscuous"`
	Timeout     time.Duration `mapstructure:"timeout"`
	// LinkType used when compiling with no device: "ethernet" or "null"
	LinkType       string        `mapstructure:"link_type"`
	UnboundSnaplen int32         `mapstructure:"unbound_snaplen"`
	Log            LogConfig     `mapstructure:"log"`
	Metrics        MetricsConfig `mapstructure:"metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" | "json"
}

type MetricsConfig struct {
	// Listen address for the /metrics endpoint; empty disables it
	Listen string `mapstructure:"listen"`
}

type configRoot struct {
	PcapFilter Config `mapstructure:"pcapfilter"`
}

var linkTypes = map[string]uint32{
	"ethernet": pcap.LinkTypeEthernet,
	"en10mb":   pcap.LinkTypeEthernet,
	"null":     pcap.LinkTypeNull,
}

// Load read the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// the "pcapfilter." key prefix maps to PCAPFILTER_ through the replacer
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.PcapFilter

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pcapfilter.interface", "")
	v.SetDefault("pcapfilter.snaplen", pcap.DefaultSnaplen)
	v.SetDefault("pcapfilter.promiscuous", true)
	v.SetDefault("pcapfilter.timeout", "0s")
	v.SetDefault("pcapfilter.link_type", "ethernet")
	v.SetDefault("pcapfilter.unbound_snaplen", pcap.DefaultUnboundSnaplen)
	v.SetDefault("pcapfilter.log.level", "info")
	v.SetDefault("pcapfilter.log.format", "text")
	v.SetDefault("pcapfilter.metrics.listen", "")
}

// Validate check values that would otherwise fail later
func (c *Config) Validate() error {
	if c.Snaplen <= 0 {
		return fmt.Errorf("snaplen must be positive, got %d", c.Snaplen)
	}
	if c.UnboundSnaplen <= 0 {
		return fmt.Errorf("unbound_snaplen must be positive, got %d", c.UnboundSnaplen)
	}
	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	if _, ok := linkTypes[strings.ToLower(c.LinkType)]; !ok {
		return fmt.Errorf("unsupported link_type %q", c.LinkType)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}
	return nil
}

// UnboundParams link parameters for compiling with no device
func (c *Config) UnboundParams() pcap.LinkParams {
	return pcap.UnboundParams(linkTypes[strings.ToLower(c.LinkType)], c.UnboundSnaplen)
}

// Configure apply the log settings to logger
func (c LogConfig) Configure(logger *log.Logger) error {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	if c.Format == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
