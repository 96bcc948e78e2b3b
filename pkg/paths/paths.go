package paths

import (
	"os"
)

// GetDataDir returns the directory used for config and log files.
// STREAMTOR_DATA_DIR wins when set; inside Docker (/.dockerenv exists)
// it is /app/data; otherwise the current directory.
func GetDataDir() string {
	if dir := os.Getenv("STREAMTOR_DATA_DIR"); dir != "" {
		return dir
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "/app/data"
	}
	return "."
}
