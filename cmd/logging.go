package cmd

import (
	"context"

	"github.com/rubiojr/carefinder/pkg/log"
	"github.com/urfave/cli/v3"
)

// SetupLogging turns on debug output for every component when --debug is
// given. CAREFINDER_DEBUG=session,executor narrows it to some components.
func SetupLogging(ctx context.Context, c *cli.Command) (context.Context, error) {
	if c.Bool("debug") {
		log.SetGlobalDebug(true)
	}
	return ctx, nil
}
