//go:build !windows

package presence

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// Endpoints lists candidate socket paths in the order the chat client
// creates them, including sandboxed package locations.
func Endpoints() []string {
	var dirs []string
	for _, key := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if dir := os.Getenv(key); dir != "" {
			dirs = append(dirs, dir)
		}
	}
	dirs = append(dirs, "/tmp")
	var endpoints []string
	for _, dir := range dirs {
		for _, sub := range []string{"", filepath.Join("app", "com.discordapp.Discord"), "snap.discord"} {
			for i := 0; i < 10; i++ {
				endpoints = append(endpoints, filepath.Join(dir, sub, fmt.Sprintf("discord-ipc-%d", i)))
			}
		}
	}
	return endpoints
}

func dialEndpoint(ctx context.Context, endpoint string) (net.Conn, error) {
	if _, err := os.Stat(endpoint); err != nil {
		return nil, err
	}
	var dialer net.Dialer
	return dialer.DialContext(ctx, "unix", endpoint)
}
