package main

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config mirrors the command-line flags; a YAML file supplies defaults
// and explicit flags override it.
type Config struct {
	Input      string `yaml:"input"`
	Format     string `yaml:"format"`
	MsgType    string `yaml:"msgtype"`
	FilterID   uint   `yaml:"filterid"`
	FilterUnit uint   `yaml:"filterunit"`
	Unique     bool   `yaml:"unique"`
	Verbose    bool   `yaml:"verbose"`
}

func LoadConfig(path string) (cfg Config, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse config")
	}

	return cfg, nil
}
