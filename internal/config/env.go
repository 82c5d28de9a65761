package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// envFiles are tried in order; all that exist are loaded.
var envFiles = []string{".env", ".env.local"}

// LoadEnvFiles loads .env and .env.local from dir into the process environment.
// Variables already present in the environment are not overwritten.
// It returns the files that were loaded.
func LoadEnvFiles(dir string) ([]string, error) {
	var loaded []string
	for _, name := range envFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, err
		}
		slog.Debug("Loaded environment file", "path", path)
		loaded = append(loaded, path)
	}
	return loaded, nil
}
