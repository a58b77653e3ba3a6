package main

import (
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port            int      `yaml:"port" env:"APPSHELL_PORT"`
	Origin          string   `yaml:"origin" env:"APPSHELL_ORIGIN"`
	OriginHost      string   `yaml:"originHost" env:"APPSHELL_ORIGIN_HOST"`
	Version         string   `yaml:"version" env:"APPSHELL_VERSION"`
	Namespace       string   `yaml:"namespace" env:"APPSHELL_NAMESPACE"`
	Provider        string   `yaml:"provider" env:"APPSHELL_PROVIDER"`
	DBFile          string   `yaml:"dbFile" env:"APPSHELL_DB_FILE"`
	Precache        []string `yaml:"precache" env:"APPSHELL_PRECACHE"`
	NoCacheHosts    []string `yaml:"noCacheHosts" env:"APPSHELL_NO_CACHE_HOSTS"`
	MaxAssetEntries int      `yaml:"maxAssetEntries" env:"APPSHELL_MAX_ASSET_ENTRIES"`
	AssetStrategy   string   `yaml:"assetStrategy" env:"APPSHELL_ASSET_STRATEGY"`
	ShellFallback   string   `yaml:"shellFallback" env:"APPSHELL_SHELL_FALLBACK"`
}

// getConfig reads the yaml config file (if given) and applies
// environment variable overrides on top.
func getConfig(filename string) (Config, error) {
	var config Config
	if filename != "" {
		configBytes, err := os.ReadFile(filename)
		if err != nil {
			return config, err
		}
		if err := yaml.Unmarshal(configBytes, &config); err != nil {
			return config, err
		}
	}
	if err := env.Parse(&config); err != nil {
		return config, err
	}
	return config, nil
}
