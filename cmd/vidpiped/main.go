// Command vidpiped runs the vidpipe daemon in the foreground. It is the
// entrypoint for service managers; interactive use goes through
// `vidpipe start`, which launches the same runtime detached. Configuration
// resolves through the usual chain (VIDPIPE_CONFIG, the default config
// path, then built-in defaults).
package main

import (
	"context"
	"log"

	"vidpipe/internal/config"
	"vidpipe/internal/daemonrun"
)

func main() {
	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil {
		log.Fatalf("vidpiped: %v", err)
	}
}
