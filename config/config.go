// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds the configuration of a pipeline run. The configuration
// is read once at process entry and passed explicitly to every component.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/stockparfait/errors"
	"gopkg.in/yaml.v3"
)

// Source is the upstream SODA resource.
type Source struct {
	URL        string `toml:"url" yaml:"url"`                 // required; CSV resource endpoint
	AppToken   string `toml:"app_token" yaml:"app_token"`     // optional
	DateColumn string `toml:"date_column" yaml:"date_column"` // default: date
	OrderBy    string `toml:"order_by" yaml:"order_by"`       // default: :id
	PageSize   int    `toml:"page_size" yaml:"page_size"`     // default: 50000
}

// Database is the destination PostgreSQL table.
type Database struct {
	Host       string `toml:"host" yaml:"host"` // required
	Port       int    `toml:"port" yaml:"port"` // default: 5432
	Name       string `toml:"name" yaml:"name"` // required
	User       string `toml:"user" yaml:"user"` // required
	Password   string `toml:"password" yaml:"password"`
	SSLMode    string `toml:"sslmode" yaml:"sslmode"`         // default: disable
	Table      string `toml:"table" yaml:"table"`             // default: iowa_liquor_sales
	SchemaFile string `toml:"schema_file" yaml:"schema_file"` // required; CREATE TABLE IF NOT EXISTS ...
}

// Config of a pipeline run.
type Config struct {
	Source           Source   `toml:"source" yaml:"source"`
	Database         Database `toml:"database" yaml:"database"`
	StorageRoot      string   `toml:"storage_root" yaml:"storage_root"`           // default: /tmp/iowa_liquor_etl
	TransformWorkers int      `toml:"transform_workers" yaml:"transform_workers"` // default: 1
	Retries          int      `toml:"retries" yaml:"retries"`                     // default: 1
	RetryDelay       string   `toml:"retry_delay" yaml:"retry_delay"`             // default: 5m

	retryDelay time.Duration
}

// Default values.
const (
	DefaultDateColumn  = "date"
	DefaultOrderBy     = ":id"
	DefaultPageSize    = 50000
	DefaultPort        = 5432
	DefaultSSLMode     = "disable"
	DefaultTable       = "iowa_liquor_sales"
	DefaultStorageRoot = "/tmp/iowa_liquor_etl"
	DefaultRetryDelay  = "5m"
)

// Load reads the config file, in TOML or YAML depending on its extension, and
// validates it.
func Load(fileName string) (*Config, error) {
	return LoadEnv(fileName, nil)
}

// LoadEnv is like Load, but applies the environment overrides looked up by
// getenv before validation, so the environment may supply required fields
// missing from the file. A nil getenv applies no overrides.
func LoadEnv(fileName string, getenv func(string) string) (*Config, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open config file '%s'", fileName)
	}
	defer f.Close()

	c := Config{Retries: -1}
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".toml":
		d := toml.NewDecoder(f)
		d.DisallowUnknownFields()
		if err := d.Decode(&c); err != nil {
			return nil, errors.Annotate(err, "failed to read config file '%s'", fileName)
		}
	case ".yaml", ".yml":
		d := yaml.NewDecoder(f)
		d.KnownFields(true)
		if err := d.Decode(&c); err != nil {
			return nil, errors.Annotate(err, "failed to read config file '%s'", fileName)
		}
	default:
		return nil, errors.Reason("unsupported config file extension '%s'", ext)
	}
	c.setDefaults()
	if getenv != nil {
		if err := c.applyEnv(getenv); err != nil {
			return nil, errors.Annotate(err, "invalid environment")
		}
	}
	if err := c.validate(); err != nil {
		return nil, errors.Annotate(err, "invalid config file '%s'", fileName)
	}
	return &c, nil
}

// Init sets the default values and validates the config. A negative Retries
// means "not set".
func (c *Config) Init() error {
	c.setDefaults()
	return c.validate()
}

func (c *Config) setDefaults() {
	if c.Source.DateColumn == "" {
		c.Source.DateColumn = DefaultDateColumn
	}
	if c.Source.OrderBy == "" {
		c.Source.OrderBy = DefaultOrderBy
	}
	if c.Source.PageSize == 0 {
		c.Source.PageSize = DefaultPageSize
	}
	if c.Database.Port == 0 {
		c.Database.Port = DefaultPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultSSLMode
	}
	if c.Database.Table == "" {
		c.Database.Table = DefaultTable
	}
	if c.StorageRoot == "" {
		c.StorageRoot = DefaultStorageRoot
	}
	if c.TransformWorkers == 0 {
		c.TransformWorkers = 1
	}
	if c.Retries < 0 {
		c.Retries = 1
	}
	if c.RetryDelay == "" {
		c.RetryDelay = DefaultRetryDelay
	}
}

func (c *Config) validate() error {
	missing := []string{}
	for name, v := range map[string]string{
		"source.url":           c.Source.URL,
		"database.host":        c.Database.Host,
		"database.name":        c.Database.Name,
		"database.user":        c.Database.User,
		"database.schema_file": c.Database.SchemaFile,
	} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.Reason("missing required fields: %s", strings.Join(missing, ", "))
	}
	if c.Source.PageSize <= 0 {
		return errors.Reason("source.page_size must be positive, got %d", c.Source.PageSize)
	}
	if c.Database.Port <= 0 {
		return errors.Reason("database.port must be positive, got %d", c.Database.Port)
	}
	if c.TransformWorkers < 0 {
		return errors.Reason("transform_workers must be positive, got %d", c.TransformWorkers)
	}
	d, err := time.ParseDuration(c.RetryDelay)
	if err != nil {
		return errors.Annotate(err, "invalid retry_delay")
	}
	if d < 0 {
		return errors.Reason("retry_delay must not be negative: %s", c.RetryDelay)
	}
	c.retryDelay = d
	return nil
}

// Delay between run-level retries. Valid after Init.
func (c *Config) Delay() time.Duration {
	return c.retryDelay
}

// Environment variables overriding the config file.
const (
	EnvSourceURL   = "IOWA_LIQUOR_API"
	EnvAppToken    = "SOCRATA_APP_TOKEN"
	EnvPageSize    = "CHUNK_ROWS"
	EnvStorageRoot = "TMP_DIR"
	EnvDBHost      = "POSTGRES_HOST"
	EnvDBPort      = "POSTGRES_PORT"
	EnvDBName      = "POSTGRES_DB"
	EnvDBUser      = "POSTGRES_USER"
	EnvDBPassword  = "POSTGRES_PASSWORD"
)

// ApplyEnv overrides the config with the non-empty environment variables
// looked up by getenv, and validates the result. Only the process entry calls
// it, typically with os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if err := c.applyEnv(getenv); err != nil {
		return err
	}
	return c.validate()
}

func (c *Config) applyEnv(getenv func(string) string) error {
	for name, p := range map[string]*string{
		EnvSourceURL:   &c.Source.URL,
		EnvAppToken:    &c.Source.AppToken,
		EnvStorageRoot: &c.StorageRoot,
		EnvDBHost:      &c.Database.Host,
		EnvDBName:      &c.Database.Name,
		EnvDBUser:      &c.Database.User,
		EnvDBPassword:  &c.Database.Password,
	} {
		if v := getenv(name); v != "" {
			*p = v
		}
	}
	for name, p := range map[string]*int{
		EnvPageSize: &c.Source.PageSize,
		EnvDBPort:   &c.Database.Port,
	} {
		v := getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Annotate(err, "invalid %s", name)
		}
		*p = n
	}
	return nil
}

// quoteDSN quotes a value for a key=value connection string.
func quoteDSN(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// DSN is the lib/pq connection string of the destination database.
func (d *Database) DSN() string {
	parts := []string{
		"host=" + quoteDSN(d.Host),
		fmt.Sprintf("port=%d", d.Port),
		"dbname=" + quoteDSN(d.Name),
		"user=" + quoteDSN(d.User),
	}
	if d.Password != "" {
		parts = append(parts, "password="+quoteDSN(d.Password))
	}
	parts = append(parts, "sslmode="+quoteDSN(d.SSLMode))
	return strings.Join(parts, " ")
}

// ReadSchema reads the DDL statement creating the destination table.
func (d *Database) ReadSchema() (string, error) {
	data, err := os.ReadFile(d.SchemaFile)
	if err != nil {
		return "", errors.Annotate(err, "failed to read schema file '%s'", d.SchemaFile)
	}
	return string(data), nil
}
