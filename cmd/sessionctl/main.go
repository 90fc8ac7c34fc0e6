package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/five82/sessionctl/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override config path (optional)")
	pollMillis := flag.Int("poll", 0, "snapshot poll interval in milliseconds (optional, defaults to config)")
	headless := flag.Bool("headless", false, "serve the HTTP control surface instead of the TUI")
	listen := flag.String("listen", "", "control surface listen address in headless mode (optional)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		Headless:   *headless,
		Listen:     *listen,
	}
	if poll := *pollMillis; poll > 0 {
		opts.PollEvery = poll
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "sessionctl: %v\n", err)
		return 1
	}
	return 0
}
