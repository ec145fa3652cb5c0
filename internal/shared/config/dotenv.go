package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"

	"submission-backend/internal/shared/telemetry"
)

// loadEnvFiles loads KEY=VALUE files if they exist, overriding the process
// environment. Missing files are skipped; malformed ones are logged.
func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		err := godotenv.Overload(path)
		if err == nil {
			continue
		}
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		telemetry.Warn("config.env_file.invalid", map[string]any{"path": path, "error": err.Error()})
	}
}
