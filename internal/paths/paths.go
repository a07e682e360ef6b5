// Package paths resolves the filesystem locations used by linesearch.
package paths

import (
	"os"
	"path/filepath"
)

const (
	// HomeEnvVar overrides the linesearch home directory
	HomeEnvVar = "LINESEARCH_HOME"
	// DefaultHome is the home directory name below the user's home
	DefaultHome = ".linesearch"

	logsDirName = "logs"
	pidFileName = "linesearch.pid"
)

// configNames lists the config file names searched for, in precedence order.
var configNames = []string{
	"config.toml",
	"config.yaml",
	"config.yml",
	"config.json",
	"config.ini",
}

// GetHome returns the linesearch home directory.
// LINESEARCH_HOME wins over ~/.linesearch.
func GetHome() (string, error) {
	if env := os.Getenv(HomeEnvVar); env != "" {
		return env, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userHome, DefaultHome), nil
}

// GetLogsDir returns <home>/logs
func GetLogsDir() (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, logsDirName), nil
}

// EnsureLogsDir creates the logs directory if needed and returns it
func EnsureLogsDir() (string, error) {
	dir, err := GetLogsDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// GetDefaultPIDPath returns <home>/linesearch.pid
func GetDefaultPIDPath() (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, pidFileName), nil
}

// ConfigCandidates returns the config file paths to try, working directory
// first, then the linesearch home.
func ConfigCandidates() []string {
	dirs := []string{"."}
	if home, err := GetHome(); err == nil {
		dirs = append(dirs, home)
	}

	candidates := make([]string, 0, len(dirs)*len(configNames))
	for _, dir := range dirs {
		for _, name := range configNames {
			candidates = append(candidates, filepath.Join(dir, name))
		}
	}
	return candidates
}

// FindConfig returns the first existing config candidate
func FindConfig() (string, bool) {
	for _, c := range ConfigCandidates() {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, true
		}
	}
	return "", false
}

// ResolveRelative joins a relative path onto baseDir. Absolute paths and an
// empty baseDir leave p unchanged.
func ResolveRelative(baseDir, p string) string {
	if p == "" || baseDir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}
