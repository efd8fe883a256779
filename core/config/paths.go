package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// AppName names the per-OS configuration and log directories.
const AppName = "stompsock"

// DefaultConfigPath returns the default config file path for the given file
// name (e.g. "client.yaml").
func DefaultConfigPath(name string) string {
	home, _ := os.UserHomeDir()
	programData := os.Getenv("ProgramData")
	return ResolveConfigPath(runtime.GOOS, home, programData, name)
}

// ResolveConfigPath constructs a config file path for the given OS and base
// directories.
func ResolveConfigPath(goos, home, programData, name string) string {
	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppName, name)
	case "windows":
		if programData == "" {
			programData = "C:/ProgramData"
		}
		programData = strings.TrimRight(programData, "\\/")
		return filepath.Join(programData, AppName, name)
	default:
		return filepath.Join("/etc", AppName, name)
	}
}
