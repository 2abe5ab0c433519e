//go:build !windows

package osutils

import (
	"os"
	"os/exec"
	"runtime"
)

// IsAdmin reports whether the process runs as root
func IsAdmin() bool {
	return os.Geteuid() == 0
}

// OpenFile opens path with the desktop's default handler
func OpenFile(path string) error {
	name := "xdg-open"
	if runtime.GOOS == "darwin" {
		name = "open"
	}
	return start(exec.Command(name, path))
}
