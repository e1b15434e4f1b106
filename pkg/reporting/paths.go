package reporting

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultReportPath returns results/decisions_<date>.xlsx
func DefaultReportPath(now time.Time) string {
	return filepath.Join("results", "decisions_"+now.Format("2006-01-02")+".xlsx")
}

// EnsureDirectoryExists creates the parent directory of path if needed
func EnsureDirectoryExists(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
