package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
	AppLogName        = "app.log"
	AppName           = "pipesh"
)

type Configuration struct {
	configFs afero.Fs
	dir      string

	// Prompt supports the \u (user), \h (host), \w (working directory) and \$
	// escapes.
	Prompt      string `json:"prompt" validate:"required"`
	ColorPrompt bool   `json:"color_prompt"`

	// HistoryFile is relative to the configuration directory, blank disables
	// persistent history.
	HistoryFile  string `json:"history_file"`
	HistoryLimit int    `json:"history_limit" validate:"gte=-1"`

	// EchoParse prints the parsed form of every line before running it.
	EchoParse bool `json:"echo_parse"`

	// CancelSignal is sent to the most recent background job on interrupt.
	CancelSignal string `json:"cancel_signal" validate:"required,signal"`

	// Aliases map a program name to the words replacing it.
	Aliases map[string]string `json:"aliases" validate:"dive,required"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})
	if err := validate.RegisterValidation("signal", func(fl validator.FieldLevel) bool {
		return unix.SignalNum(fl.Field().String()) != 0
	}); err != nil {
		return err
	}

	return validate.Struct(c)
}

func (c *Configuration) fs() afero.Fs {
	if c.configFs == nil {
		c.configFs = afero.NewMemMapFs()
	}
	return c.configFs
}

// Dir returns the configuration directory.
func (c *Configuration) Dir() string {
	return c.dir
}

// OpenAppLog opens the application log in an append only state.
func (c *Configuration) OpenAppLog() (afero.File, error) {
	if err := c.fs().MkdirAll(".", 0700); err != nil {
		return nil, err
	}
	return c.fs().OpenFile(AppLogName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

func (c *Configuration) ReadAppLog() (afero.File, error) {
	return c.fs().OpenFile(AppLogName, os.O_RDONLY, 0600)
}

// HistoryPath returns the path of the line history file on the host, or
// blank if history isn't persisted.
func (c *Configuration) HistoryPath() string {
	switch {
	case c.HistoryFile == "":
		return ""
	case filepath.IsAbs(c.HistoryFile):
		return c.HistoryFile
	case c.dir == "":
		return ""
	default:
		return filepath.Join(c.dir, c.HistoryFile)
	}
}

// Signal resolves CancelSignal.
func (c *Configuration) Signal() (syscall.Signal, error) {
	sig := unix.SignalNum(c.CancelSignal)
	if sig == 0 {
		return 0, fmt.Errorf("unknown signal %q", c.CancelSignal)
	}
	return sig, nil
}

// Default returns the built-in configuration rooted at dir.
func Default(dir string) *Configuration {
	out := defaultConfig()
	out.setDir(dir)
	return out
}

func (c *Configuration) setDir(dir string) {
	// BasePathFs needs an absolute base to confine relative names.
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	c.dir = dir
	c.configFs = afero.NewBasePathFs(afero.NewOsFs(), dir)
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}

// DefaultDir returns the per-user configuration directory.
func DefaultDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, AppName)
	}
	return filepath.Join(".", "."+AppName)
}
