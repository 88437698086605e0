package browser

import (
	"fmt"
	"os"

	"github.com/go-rod/rod/lib/launcher"
)

// EnsureBrowser resolves a usable browser executable, downloading the managed
// revision on first run when nothing is installed. preferred is checked
// first; an empty or missing path falls through to the system browser, then
// to the download.
func EnsureBrowser(preferred string) (string, error) {
	if preferred != "" {
		if _, err := os.Stat(preferred); err == nil {
			return preferred, nil
		}
	}
	if path, ok := launcher.LookPath(); ok {
		return path, nil
	}
	path, err := launcher.NewBrowser().Get()
	if err != nil {
		return "", fmt.Errorf("download browser: %w", err)
	}
	return path, nil
}
