// Command newsdexctl queries a newsdex index from the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kailas-cloud/newsdex"
	"github.com/kailas-cloud/newsdex/internal/config"
	"github.com/kailas-cloud/newsdex/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := newRootCmd(openClient).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// openClient connects the SDK using --redis when given, otherwise the YAML
// file named by --config or --env.
func openClient(ctx context.Context, g *globalFlags) (engine, error) {
	var opts []newsdex.Option
	if len(g.redis) > 0 {
		opts = append(opts, newsdex.WithRedis(g.redis...))
	} else {
		path := g.configPath
		if path == "" {
			path = config.Path(g.env)
		}
		opts = append(opts, newsdex.WithConfigFile(path))
	}
	if g.verbose {
		l, err := logger.New(g.env, "debug")
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		opts = append(opts, newsdex.WithLogger(l))
	}
	client, err := newsdex.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}
