package internal

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/sm/internal/resolve"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Workspace WorkspaceConfig   `yaml:"workspace"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	Resolve   ResolveConfig     `yaml:"resolve"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Workspace.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Resolve.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// WorkspaceConfig points at the directory holding node_modules and .deps.
type WorkspaceConfig struct {
	Root string `yaml:"root"`
}

// Validate validates the workspace configuration.
func (c *WorkspaceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// ResolveConfig holds module path normalisation settings.
type ResolveConfig struct {
	LibDir     string   `yaml:"lib_dir"`
	DefaultExt string   `yaml:"default_ext"`
	Extensions []string `yaml:"extensions"`
}

// Validate validates the resolve configuration.
func (c *ResolveConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LibDir, validation.Required, validation.By(relativeDir)),
		validation.Field(&c.DefaultExt, validation.Required, validation.By(extension)),
		validation.Field(&c.Extensions, validation.Required, validation.Each(validation.By(extension))),
	)
}

// ModuleOptions converts the section into resolver options. DefaultExt is
// always recognised, even when Extensions omits it.
func (c *ResolveConfig) ModuleOptions() resolve.ModuleOptions {
	exts := slices.Clone(c.Extensions)
	if !slices.Contains(exts, c.DefaultExt) {
		exts = append(exts, c.DefaultExt)
	}
	return resolve.ModuleOptions{
		Dir:        strings.Trim(c.LibDir, "/"),
		Ext:        c.DefaultExt,
		Extensions: exts,
	}
}

func relativeDir(value interface{}) error {
	s, _ := value.(string)
	if strings.HasPrefix(s, "/") || s == ".." || strings.HasPrefix(s, "../") || strings.Contains(s, "/../") {
		return fmt.Errorf("must be a directory inside the package")
	}
	return nil
}

func extension(value interface{}) error {
	s, _ := value.(string)
	if len(s) < 2 || s[0] != '.' || strings.ContainsAny(s[1:], "./") {
		return fmt.Errorf("must look like .ext")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	mod := resolve.DefaultModuleOptions()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Workspace: WorkspaceConfig{
			Root: ".",
		},
		SQLite: SQLiteConfig{
			Path: "./sm.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Resolve: ResolveConfig{
			LibDir:     mod.Dir,
			DefaultExt: mod.Ext,
			Extensions: mod.Extensions,
		},
	}
}
