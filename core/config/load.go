package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

// Load loads the configuration from the directory. Fields missing from the
// file keep their default values.
func Load(path string) (*Configuration, error) {
	// If given the path to a config.yaml file, move back up a level.
	if filepath.Base(path) == ConfigurationName {
		path = filepath.Dir(path)
	}

	out := Default(path)
	configContents, err := afero.ReadFile(out.fs(), ConfigurationName)
	if err != nil {
		return nil, err
	}
	if err := yaml.UnmarshalStrict(configContents, out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Join(path, ConfigurationName), err)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", filepath.Join(path, ConfigurationName), err)
	}
	return out, nil
}

// Initialize writes the default configuration to dir unless one already
// exists, then loads it.
func Initialize(dir string, logger *log.Logger) (*Configuration, error) {
	if err := initializeFs(Default(dir).fs(), logger); err != nil {
		return nil, err
	}

	return Load(dir)
}

func initializeFs(cfgFs afero.Fs, logger *log.Logger) error {
	if err := cfgFs.MkdirAll(".", 0700); err != nil {
		return err
	}

	switch _, err := cfgFs.Stat(ConfigurationName); {
	case err == nil:
		logger.Printf("%s already exists, leaving it untouched", ConfigurationName)
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}

	logger.Printf("Writing %s", ConfigurationName)
	return afero.WriteFile(cfgFs, ConfigurationName, defaultConfigData, 0600)
}
