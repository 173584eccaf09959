// Package env locates the directories pkgsmith works in.
package env

import (
	"os"
	"path/filepath"
)

// WorkDir returns the default work directory, <UserCacheDir>/.pkgsmith.
func WorkDir() (string, error) {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userCacheDir, ".pkgsmith"), nil
}

// RecipeRepoDir returns the directory of workDir a remote recipe repository
// is synced into, creating it if needed. The leading dot keeps it apart from
// the per-recipe directories.
func RecipeRepoDir(workDir string) (string, error) {
	dir := filepath.Join(workDir, ".recipes")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// ConfigFile returns the path of the configuration file: $PKGSMITH_CONFIG
// if set, otherwise <UserConfigDir>/pkgsmith/config.toml. The file need not
// exist.
func ConfigFile() (string, error) {
	if path := os.Getenv("PKGSMITH_CONFIG"); path != "" {
		return path, nil
	}
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userConfigDir, "pkgsmith", "config.toml"), nil
}
