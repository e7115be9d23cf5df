package brokers

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/username/tradejournal/backend/src/logger"
	"github.com/username/tradejournal/backend/src/parsers/tabular"
)

// AliasConfig is the on-disk format for extending the broker catalog without
// code changes:
//
//	generic:
//	  fields:
//	    ticket: ["Deal #"]
//	brokers:
//	  - key: myfx
//	    name: MyFX Markets
//	    file_types: [csv, excel]
//	    buy_keywords: [buy, long]
//	    fields:
//	      ticket: ["Trade ID"]
//	      symbol: ["Instrument"]
type AliasConfig struct {
	Generic struct {
		Fields CustomAliases `yaml:"fields"`
	} `yaml:"generic"`
	Brokers []BrokerConfig `yaml:"brokers"`
}

// BrokerConfig describes one generic-path broker.
type BrokerConfig struct {
	Key            string        `yaml:"key"`
	Name           string        `yaml:"name"`
	FileTypes      []string      `yaml:"file_types"`
	ActionKeywords []string      `yaml:"action_keywords"`
	BuyKeywords    []string      `yaml:"buy_keywords"`
	RequireTicket  bool          `yaml:"require_ticket"`
	Fields         CustomAliases `yaml:"fields"`
	Instructions   []string      `yaml:"instructions"`
}

// ParseAliasConfig decodes YAML alias configuration.
func ParseAliasConfig(data []byte) (*AliasConfig, error) {
	var cfg AliasConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAliasConfig, err)
	}
	return &cfg, nil
}

// LoadAliasConfig reads YAML alias configuration from path.
func LoadAliasConfig(path string) (*AliasConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias config %s: %w", path, err)
	}
	return ParseAliasConfig(data)
}

// Profiles expands the configuration into broker profiles layered over the
// built-in defaults. Configured brokers start from the generic profile.
func (c *AliasConfig) Profiles() ([]BrokerProfile, error) {
	profiles := DefaultProfiles()
	genericIdx := -1
	for i, p := range profiles {
		if p.Key == KeyGeneric {
			genericIdx = i
		}
	}

	generic := profiles[genericIdx]
	if len(c.Generic.Fields) > 0 {
		aliases, err := mergeAliases(generic.Aliases, c.Generic.Fields)
		if err != nil {
			return nil, fmt.Errorf("generic: %w", err)
		}
		generic.Aliases = aliases
		profiles[genericIdx] = generic
	}

	for _, bc := range c.Brokers {
		p, err := bc.profile(generic)
		if err != nil {
			return nil, fmt.Errorf("broker %q: %w", bc.Key, err)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

func (bc BrokerConfig) profile(generic BrokerProfile) (BrokerProfile, error) {
	if normalizeKey(bc.Key) == "" {
		return BrokerProfile{}, fmt.Errorf("%w: key is required", ErrInvalidAliasConfig)
	}
	aliases, err := mergeAliases(generic.Aliases, bc.Fields)
	if err != nil {
		return BrokerProfile{}, err
	}

	p := generic
	p.Key = bc.Key
	p.Name = bc.Name
	if p.Name == "" {
		p.Name = bc.Key
	}
	p.Aliases = aliases
	p.RequireTicket = bc.RequireTicket
	if len(bc.ActionKeywords) > 0 {
		p.ActionKeywords = bc.ActionKeywords
	}
	if len(bc.BuyKeywords) > 0 {
		p.BuyKeywords = bc.BuyKeywords
	}
	if len(bc.Instructions) > 0 {
		p.Instructions = bc.Instructions
	}
	if len(bc.FileTypes) > 0 {
		p.FileTypes = nil
		for _, tag := range bc.FileTypes {
			ft, err := tabular.ParseFileType(tag)
			if err != nil {
				return BrokerProfile{}, err
			}
			p.FileTypes = append(p.FileTypes, ft)
		}
	}
	return p, nil
}

// NewRegistryFromFile builds the catalog from the built-in profiles plus the
// YAML file at path. An empty path yields the built-in catalog.
func NewRegistryFromFile(path string) (*Registry, error) {
	if path == "" {
		return NewDefaultRegistry(), nil
	}
	cfg, err := LoadAliasConfig(path)
	if err != nil {
		return nil, err
	}
	profiles, err := cfg.Profiles()
	if err != nil {
		return nil, err
	}
	reg, err := NewRegistry(profiles...)
	if err != nil {
		return nil, err
	}
	logger.L.Info("Broker catalog loaded", "path", path, "profiles", len(profiles), "configured", len(cfg.Brokers))
	return reg, nil
}
