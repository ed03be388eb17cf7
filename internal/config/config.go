// Package config manages the single persisted configuration file
//: the screenshot hotkey, nothing else. Grounded on
// LanternOps-breeze's viper-based config loading.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hdrsnip/hdrsnip/internal/logx"
)

const (
	appDirName  = "hdrsnip"
	configName  = "config"
	configType  = "toml"
	defaultKey  = "PrintScreen"
	hotkeyField = "hotkey"
)

// Config is the persisted state: the hotkey, nothing else.
type Config struct {
	Hotkey string
}

// Path returns the OS-appropriate config file path.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDirName, configName+"."+configType), nil
}

// Prompt asks the caller (via stdin) whether to reset an invalid
// config to defaults. Declining returns false and the caller must
// exit rather than silently overwrite.
type Prompt func(message string) (accept bool, err error)

// StdinPrompt reads a y/n answer from stdin.
func StdinPrompt(message string) (bool, error) {
	fmt.Printf("%s [y/N]: ", message)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "y" || line == "yes", nil
}

// Load reads the config file, prompting to reset on invalid contents.
// If the file does not exist, defaults are written and returned
// without prompting.
func Load(prompt Prompt) (Config, error) {
	log := logx.Named("config")
	path, err := Path()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(configType)
	v.SetDefault(hotkeyField, defaultKey)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Info("no config file found, writing defaults", zap.String("path", path))
		if err := writeDefault(path); err != nil {
			return Config{}, err
		}
		return Config{Hotkey: defaultKey}, nil
	}

	if err := v.ReadInConfig(); err != nil {
		return resetOrFail(path, prompt, fmt.Errorf("parse config: %w", err))
	}

	hotkey := v.GetString(hotkeyField)
	if hotkey == "" {
		return resetOrFail(path, prompt, fmt.Errorf("config missing %q", hotkeyField))
	}

	return Config{Hotkey: hotkey}, nil
}

func resetOrFail(path string, prompt Prompt, cause error) (Config, error) {
	log := logx.Named("config")
	log.Warn("config file is invalid", zap.String("path", path), zap.Error(cause))

	if prompt == nil {
		prompt = StdinPrompt
	}
	accept, err := prompt("Your config file is invalid or from an incompatible version. Reset to defaults?")
	if err != nil {
		return Config{}, fmt.Errorf("reading reset prompt answer: %w", err)
	}
	if !accept {
		return Config{}, fmt.Errorf("config invalid and reset declined: %w", cause)
	}

	if err := writeDefault(path); err != nil {
		return Config{}, err
	}
	return Config{Hotkey: defaultKey}, nil
}

func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	v := viper.New()
	v.SetConfigType(configType)
	v.Set(hotkeyField, defaultKey)
	return v.WriteConfigAs(path)
}

// Save persists the given config, overwriting the existing file.
func Save(cfg Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	v := viper.New()
	v.SetConfigType(configType)
	v.Set(hotkeyField, cfg.Hotkey)
	return v.WriteConfigAs(path)
}
