// Package sockpath provides the default Unix socket path for the arhubd daemon.
// All binaries (arhubd, arctl, arhub-mcp) use this to agree on the default.
package sockpath

import (
	"os"
	"path/filepath"
)

// DefaultSocketPath returns the default path for the arhubd control socket.
// It prefers $XDG_RUNTIME_DIR/arhub/arhubd.sock, falling back to
// ~/.config/arhub/arhubd.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "arhub", "arhubd.sock")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "arhub", "arhubd.sock")
}
