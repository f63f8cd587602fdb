package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// ErrInvalidConfig wraps every schema violation.
var ErrInvalidConfig = errors.New("invalid config")

type Credentials struct {
	AccessKeyID     string `mapstructure:"accessKeyId"`
	SecretAccessKey string `mapstructure:"secretAccessKey"`
}

// Config is the environment document passed as the single positional argument.
type Config struct {
	Schema              string      `mapstructure:"$schema"`
	Region              string      `mapstructure:"region"`
	Bucket              string      `mapstructure:"bucket"`
	CopySourceDirectory string      `mapstructure:"copySourceDirectory"`
	MetadataFile        string      `mapstructure:"metadataFile"`
	Credentials         Credentials `mapstructure:"credentials"`

	// Prefix is the root key prefix inside the bucket.
	Prefix string `mapstructure:"prefix"`
	// Exclude holds doublestar patterns relative to the source directory.
	Exclude []string `mapstructure:"exclude"`
}

// Load reads and validates the config document. Relative paths are resolved against the
// directory containing the document.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// viper folds key case, so the exact spelling is checked on the raw document.
	if err := checkKeys(data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}

	var cfg Config
	err = v.UnmarshalExact(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = false
		dc.DecodeHook = nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	baseDir := filepath.Dir(path)
	cfg.CopySourceDirectory = resolve(baseDir, cfg.CopySourceDirectory)
	cfg.MetadataFile = resolve(baseDir, cfg.MetadataFile)

	return &cfg, nil
}

// Validate checks the required fields.
func (c *Config) Validate() error {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"region", c.Region},
		{"bucket", c.Bucket},
		{"copySourceDirectory", c.CopySourceDirectory},
		{"metadataFile", c.MetadataFile},
		{"credentials.accessKeyId", c.Credentials.AccessKeyID},
		{"credentials.secretAccessKey", c.Credentials.SecretAccessKey},
	}
	for _, field := range required {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	return nil
}

// checkKeys rejects keys whose exact spelling is not a mapstructure tag of Config, at
// the top level and inside credentials.
func checkKeys(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	unknown := unknownKeys("", doc, reflect.TypeOf(Config{}))

	var creds map[string]json.RawMessage
	if raw, ok := doc["credentials"]; ok && json.Unmarshal(raw, &creds) == nil {
		unknown = append(unknown, unknownKeys("credentials.", creds, reflect.TypeOf(Credentials{}))...)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown fields: %s", strings.Join(unknown, ", "))
	}
	return nil
}

func unknownKeys(scope string, doc map[string]json.RawMessage, t reflect.Type) []string {
	allowed := make(map[string]bool, t.NumField())
	for i := range t.NumField() {
		if tag := t.Field(i).Tag.Get("mapstructure"); tag != "" {
			allowed[tag] = true
		}
	}

	var unknown []string
	for key := range doc {
		if !allowed[key] {
			unknown = append(unknown, scope+key)
		}
	}
	return unknown
}

func resolve(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(baseDir, p)
}
