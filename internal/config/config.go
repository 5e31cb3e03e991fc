// Package config loads the TOML session definition: global environment,
// server entries, log capture, history sinks, and the optional HTTP API.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/loykin/devserver/internal/logger"
	"github.com/loykin/devserver/internal/manager"
)

// FileConfig represents the top-level TOML structure.
type FileConfig struct {
	Env          []string       `toml:"env" mapstructure:"env"`
	EnvFiles     []string       `toml:"env_files" mapstructure:"env_files"`
	UseOSEnv     bool           `toml:"use_os_env" mapstructure:"use_os_env"`
	PostTeardown string         `toml:"post_teardown" mapstructure:"post_teardown"`
	Log          *LogConfig     `toml:"log" mapstructure:"log"`
	History      *HistoryConfig `toml:"history" mapstructure:"history"`
	HTTP         *HTTPConfig    `toml:"http" mapstructure:"http"`
	Servers      []manager.Spec `toml:"servers" mapstructure:"servers"`
}

type LogConfig struct {
	Dir        string `toml:"dir" mapstructure:"dir"`
	Stdout     string `toml:"stdout" mapstructure:"stdout"`
	Stderr     string `toml:"stderr" mapstructure:"stderr"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

// HistoryConfig lists lifecycle event sink DSNs.
type HistoryConfig struct {
	DSNs []string `toml:"dsns" mapstructure:"dsns"`
}

// HTTPConfig enables the embedded status API.
type HTTPConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

// Load parses path and applies top-level log defaults onto each server entry.
func Load(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, err
	}
	for i := range fc.Servers {
		if fc.Servers[i].Command == "" {
			return nil, fmt.Errorf("server entry %d (%s) has no command", i, fc.Servers[i].Name)
		}
		fc.Servers[i].Log = mergeLog(fc.Log, fc.Servers[i].Log)
	}
	return &fc, nil
}

// mergeLog overlays a per-server log config on the top-level defaults.
func mergeLog(top *LogConfig, per logger.Config) logger.Config {
	if top == nil {
		return per
	}
	out := logger.Config{
		Dir:        top.Dir,
		StdoutPath: top.Stdout,
		StderrPath: top.Stderr,
		MaxSizeMB:  top.MaxSizeMB,
		MaxBackups: top.MaxBackups,
		MaxAgeDays: top.MaxAgeDays,
		Compress:   top.Compress,
	}
	if per.Dir != "" {
		out.Dir = per.Dir
	}
	if per.StdoutPath != "" {
		out.StdoutPath = per.StdoutPath
	}
	if per.StderrPath != "" {
		out.StderrPath = per.StderrPath
	}
	if per.MaxSizeMB != 0 {
		out.MaxSizeMB = per.MaxSizeMB
	}
	if per.MaxBackups != 0 {
		out.MaxBackups = per.MaxBackups
	}
	if per.MaxAgeDays != 0 {
		out.MaxAgeDays = per.MaxAgeDays
	}
	if per.Compress {
		out.Compress = true
	}
	return out
}

// GlobalEnv merges the session environment from the config:
// OS env (when use_os_env) as base, then env_files in order, then the
// top-level env list last.
func (fc *FileConfig) GlobalEnv() ([]string, error) {
	m := make(map[string]string)
	if fc.UseOSEnv {
		for _, kv := range os.Environ() {
			if i := strings.IndexByte(kv, '='); i >= 0 {
				m[kv[:i]] = kv[i+1:]
			}
		}
	}
	for _, p := range fc.EnvFiles {
		pairs, err := loadEnvFile(p)
		if err != nil {
			return nil, err
		}
		for k, v := range pairs {
			m[k] = v
		}
	}
	for _, kv := range fc.Env {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out, nil
}

// loadEnvFile parses a simple .env file with KEY=VALUE lines (no export, no
// quotes). Lines starting with # are ignored.
func loadEnvFile(path string) (map[string]string, error) {
	// Mitigate G304: sanitize user-provided path by cleaning it before use.
	clean := filepath.Clean(path)
	b, err := os.ReadFile(clean)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i >= 0 {
			k := strings.TrimSpace(line[:i])
			v := strings.TrimSpace(line[i+1:])
			m[k] = v
		}
	}
	return m, nil
}
