package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/treestate/internal/logfields"
)

var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads the first present .env file. Variables already set in
// the process environment win.
func loadEnvFiles() {
	for _, name := range envFiles {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			slog.Warn("Failed to load environment file", logfields.File(name), logfields.Error(err))
			continue
		}
		slog.Debug("Loaded environment file", logfields.File(name))
		return
	}
}
