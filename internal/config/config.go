// Package config bridges viper settings and environment variables into
// component configurations.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/docket/internal/bus"
	"github.com/Veraticus/docket/internal/sheets"
)

// ExpandPath expands a leading ~ and $VAR environment references in a
// file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	} else if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}

// DatabasePath returns the configured SQLite database location,
// defaulting to the XDG data directory.
func DatabasePath() string {
	path := viper.GetString("database.path")
	if path == "" {
		path = "~/.local/share/docket/docket.db"
	}
	return ExpandPath(path)
}

// ArtifactsDir returns the directory holding trained scoring model
// artifacts.
func ArtifactsDir() string {
	dir := viper.GetString("scoring.artifacts_dir")
	if dir == "" {
		dir = "~/.local/share/docket/models"
	}
	return ExpandPath(dir)
}

// LoadBusConfig assembles the event bus configuration. An unset type
// leaves publishing disabled.
func LoadBusConfig() bus.Config {
	return bus.Config{
		Type:       viper.GetString("bus.type"),
		URL:        viper.GetString("bus.url"),
		Token:      viper.GetString("bus.token"),
		BufferSize: viper.GetInt("bus.buffer_size"),
	}
}

// LoadReportConfig loads the Google Sheets report configuration.
// It follows this precedence:
// 1. Viper configuration (from the config file or DOCKET_ env vars)
// 2. Direct environment variables (GOOGLE_SHEETS_*)
// 3. Default values
func LoadReportConfig() (*sheets.Config, error) {
	cfg := sheets.DefaultConfig()

	// Load from viper first
	if v := viper.GetString("sheets.service_account_path"); v != "" {
		cfg.ServiceAccountPath = ExpandPath(v)
	}
	if v := viper.GetString("sheets.client_id"); v != "" {
		cfg.ClientID = v
	}
	if v := viper.GetString("sheets.client_secret"); v != "" {
		cfg.ClientSecret = v
	}
	if v := viper.GetString("sheets.refresh_token"); v != "" {
		cfg.RefreshToken = v
	}
	if v := viper.GetString("sheets.spreadsheet_id"); v != "" {
		cfg.SpreadsheetID = v
	}
	if v := viper.GetString("sheets.spreadsheet_name"); v != "" {
		cfg.SpreadsheetName = v
	}

	// Fall back to direct environment variables
	if cfg.ServiceAccountPath == "" {
		if v := os.Getenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"); v != "" {
			cfg.ServiceAccountPath = ExpandPath(v)
		}
	}
	if cfg.ClientID == "" {
		cfg.ClientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
	}
	if cfg.ClientSecret == "" {
		cfg.ClientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
	}
	if cfg.RefreshToken == "" {
		cfg.RefreshToken = os.Getenv("GOOGLE_SHEETS_REFRESH_TOKEN")
	}
	if cfg.SpreadsheetID == "" {
		cfg.SpreadsheetID = os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID")
	}
	if cfg.SpreadsheetName == "" {
		if v := os.Getenv("GOOGLE_SHEETS_SPREADSHEET_NAME"); v != "" {
			cfg.SpreadsheetName = v
		} else {
			cfg.SpreadsheetName = "Fraud Decision Report"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
