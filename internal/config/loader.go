package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Load reads configuration from environment variables, applies defaults for
// unset values and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct walks v and fills every field tagged with env from the
// environment, recursing into nested structs.
//
// Tags:
//
//	env:"NAME"      primary variable
//	envAlt:"NAME"   fallback variable
//	default:"VAL"   used when both are unset
//	required:"true" fail when no value is found
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)
		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value, ok := os.LookupEnv(envName)
		if (!ok || value == "") && field.Tag.Get("envAlt") != "" {
			value = os.Getenv(field.Tag.Get("envAlt"))
		}
		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField parses value into field according to the field's type.
func setField(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		var items []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		field.Set(reflect.ValueOf(items))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid and reports every failing
// field at once.
func (c *Config) Validate() error {
	return validation.Errors{
		"server":     c.Server.validate(),
		"database":   c.Database.validate(),
		"upload":     c.Upload.validate(),
		"processing": c.Processing.validate(),
		"rate":       c.Rate.validate(),
		"logging":    c.Logging.validate(),
	}.Filter()
}

func (c *ServerConfig) validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.ReadTimeout, validation.Min(0)),
		validation.Field(&c.WriteTimeout, validation.Min(0)),
		validation.Field(&c.ShutdownTimeout, validation.Required, validation.Min(1)),
		validation.Field(&c.RequestTimeout, validation.Required, validation.Min(1)),
	)
}

func (c *DatabaseConfig) validate() error {
	enabled := c.Enabled()
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxConns, validation.When(enabled, validation.Required, validation.Min(1))),
		validation.Field(&c.MinConns, validation.Min(0), validation.By(func(any) error {
			if enabled && c.MinConns > c.MaxConns {
				return errors.New("must not exceed MaxConns")
			}
			return nil
		})),
	)
}

func (c *UploadConfig) validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxFileSize, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.MaxConcurrent, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxWait, validation.Required),
	)
}

func (c *ProcessingConfig) validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Column, validation.Required),
		validation.Field(&c.DefaultSaveName, validation.Required, validation.By(func(any) error {
			if strings.ContainsAny(c.DefaultSaveName, `/\`) {
				return errors.New("must be a file name, not a path")
			}
			switch strings.ToLower(filepath.Ext(c.DefaultSaveName)) {
			case ".csv", ".xlsx":
				return nil
			}
			return errors.New("must end in .csv or .xlsx")
		})),
		validation.Field(&c.GridPageSize, validation.Required, validation.Min(1)),
		validation.Field(&c.HistoryLimit, validation.Required, validation.Min(1)),
	)
}

func (c *RateLimitConfig) validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RequestsPerMinute, validation.When(c.Enabled, validation.Required, validation.Min(1))),
	)
}

func (c *LoggingConfig) validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Level, validation.Required, validation.In("debug", "info", "warn", "warning", "error")),
		validation.Field(&c.Format, validation.Required, validation.In("text", "json")),
	)
}
