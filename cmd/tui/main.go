// Command tui runs a read-only terminal dashboard against a running
// gateway's management API.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cliproxy-gateway/gateway/internal/tui"
)

func main() {
	host := flag.String("host", "127.0.0.1", "gateway management API host")
	port := flag.Int("port", 18317, "gateway management API port")
	secretKey := flag.String("secret-key", os.Getenv("GATEWAY_MANAGEMENT_SECRET"), "remote-management secret key")
	flag.Parse()

	if err := tui.Run(*host, *port, *secretKey); err != nil {
		fmt.Fprintln(os.Stderr, "tui:", err)
		os.Exit(1)
	}
}
