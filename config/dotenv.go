package config

import (
	"errors"
	"io/fs"

	"github.com/HydroTrack/hydrotrack-backend/logger"
	"github.com/joho/godotenv"
)

// LoadDotEnv loads local .env files into the process environment before LoadConfig
// runs. Variables already set are never overridden and missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		logger.GetLogger().Infow("Loaded environment file", "path", path)
	}
	return nil
}
