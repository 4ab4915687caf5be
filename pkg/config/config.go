// Package config loads the musclectl settings file.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the resolved tool configuration.
type Config struct {
	// Reader is the PC/SC reader name; empty picks the first reader.
	Reader string
	// AID selects the applet; nil means the applet default.
	AID []byte
	// Class is the CLA byte of applet commands.
	Class byte

	Log LogConfig
}

// LogConfig mirrors the logging flags.
type LogConfig struct {
	Debug bool
	JSON  bool
	UID   bool
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{Class: 0xB0}
}

// File is the on-disk layout.
type File struct {
	Card CardSection `yaml:"card"`
	Log  LogSection  `yaml:"log"`
}

type CardSection struct {
	Reader string `yaml:"reader"`
	AID    string `yaml:"aid"`
	Class  string `yaml:"class"`
}

type LogSection struct {
	Debug *bool `yaml:"debug"`
	JSON  *bool `yaml:"json"`
	UID   *bool `yaml:"uid"`
}

// Load reads path over the defaults. An empty path returns the defaults, a
// missing file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	var parsed File
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := Merge(&cfg, parsed); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Merge applies the values set in src onto dst.
func Merge(dst *Config, src File) error {
	if src.Card.Reader != "" {
		dst.Reader = src.Card.Reader
	}
	if src.Card.AID != "" {
		aid, err := ParseAID(src.Card.AID)
		if err != nil {
			return err
		}
		dst.AID = aid
	}
	if src.Card.Class != "" {
		cla, err := ParseByte(src.Card.Class)
		if err != nil {
			return fmt.Errorf("class: %w", err)
		}
		dst.Class = cla
	}

	if src.Log.Debug != nil {
		dst.Log.Debug = *src.Log.Debug
	}
	if src.Log.JSON != nil {
		dst.Log.JSON = *src.Log.JSON
	}
	if src.Log.UID != nil {
		dst.Log.UID = *src.Log.UID
	}
	return nil
}

// ParseAID decodes a hex AID such as "A0 00 00 00 01 01" or "A00000000101".
func ParseAID(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", ":", "").Replace(strings.TrimSpace(s))
	aid, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("aid %q: %w", s, err)
	}
	if len(aid) < 5 || len(aid) > 16 {
		return nil, fmt.Errorf("aid %q: %d bytes, want 5..16", s, len(aid))
	}
	return aid, nil
}

// ParseByte accepts "0xB0", a two-digit hex value such as "B0", or a decimal
// value such as "176".
func ParseByte(s string) (byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty value")
	}

	base := 10
	if rest, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		s, base = rest, 16
	} else if strings.ContainsAny(s, "abcdefABCDEF") || len(s) == 2 {
		base = 16
	}

	v, err := strconv.ParseUint(s, base, 8)
	if err != nil {
		return 0, fmt.Errorf("%q is not a byte", s)
	}
	return byte(v), nil
}
