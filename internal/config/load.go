package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Source records where a loaded configuration came from.
type Source struct {
	Path string
	// Found is false when no file existed and defaults were used.
	Found bool
}

// Load reads the file at path, or the first existing default location when
// path is empty, applies environment overrides and validates the result.
// Unknown keys are rejected.
func Load(path string) (*Config, Source, error) {
	src, err := locate(path)
	if err != nil {
		return nil, Source{}, err
	}

	cfg := Default()
	if src.Found {
		if err := decodeFile(src.Path, &cfg); err != nil {
			return nil, src, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, src, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, src, err
	}
	return &cfg, src, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	dec := toml.NewDecoder(file)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("parse config %s: %s", path, strict.String())
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// locate resolves an explicit path, or else tries the user config path and
// then ./storyteller.toml. A missing explicit file is not an error.
func locate(path string) (Source, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return Source{}, err
		}
		found, err := isFile(expanded)
		if err != nil {
			return Source{}, err
		}
		return Source{Path: expanded, Found: found}, nil
	}

	userPath, err := DefaultConfigPath()
	if err != nil {
		return Source{}, err
	}
	localPath, err := ExpandPath("storyteller.toml")
	if err != nil {
		return Source{}, err
	}
	for _, candidate := range []string{userPath, localPath} {
		found, err := isFile(candidate)
		if err != nil {
			return Source{}, err
		}
		if found {
			return Source{Path: candidate, Found: true}, nil
		}
	}
	return Source{Path: userPath}, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat config: %w", err)
	default:
		return !info.IsDir(), nil
	}
}
