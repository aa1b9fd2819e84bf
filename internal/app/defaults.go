package app

import (
	"os"
	"path/filepath"
)

// Defaults carries the environment-derived defaults for the container
// entrypoint: DATA/SOURCE_DIR/TARGET_DIR/RSYNC_URI/HTTPS_URI/RRDPD_CONFIG.
// All are optional; the CLI flags always win when set.
type Defaults struct {
	ConfigPath string
	LogDir     string
	Source     string
	Target     string
	RsyncBase  string
	HTTPSBase  string
}

// GetDefaults reads the environment variables that default the rrdpd
// flags for container-style deployment. The core engine never reads the
// environment itself; it only ever sees fully resolved flag values.
func GetDefaults() Defaults {
	data := os.Getenv("DATA")
	logDir := ""
	if data != "" {
		logDir = filepath.Join(data, "log")
	}
	return Defaults{
		ConfigPath: os.Getenv("RRDPD_CONFIG"),
		LogDir:     logDir,
		Source:     os.Getenv("SOURCE_DIR"),
		Target:     os.Getenv("TARGET_DIR"),
		RsyncBase:  os.Getenv("RSYNC_URI"),
		HTTPSBase:  os.Getenv("HTTPS_URI"),
	}
}
