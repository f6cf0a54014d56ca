//go:build windows

package presence

import (
	"context"
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
)

func Endpoints() []string {
	endpoints := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		endpoints = append(endpoints, fmt.Sprintf(`\\.\pipe\discord-ipc-%d`, i))
	}
	return endpoints
}

func dialEndpoint(ctx context.Context, endpoint string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, endpoint)
}
