package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/watchmon/watchmon/app/server"
	"github.com/watchmon/watchmon/app/server/controller"
	"github.com/watchmon/watchmon/app/server/tools"
	"github.com/watchmon/watchmon/pkg/config"
	"github.com/watchmon/watchmon/pkg/logging"
	"github.com/watchmon/watchmon/pkg/scan"
	"github.com/watchmon/watchmon/pkg/utils"
)

func load(c *cli.Context, outputs ...string) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogEncoding, outputs...)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, logger, nil
}

func serve(c *cli.Context) error {
	if c.Bool("stdio") {
		return serveStdio(c)
	}

	cfg, logger, err := load(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	app, err := server.Initialize(c.Context, cfg, logger)
	if err != nil {
		logger.Error("Unable to initialize application", zap.Error(err))
		return err
	}

	if err := server.NewServer(app); err != nil {
		logger.Error("Unable to initialize server", zap.Error(err))
		return err
	}

	app.Start(c.Context)
	return nil
}

// serveStdio answers tool calls read from stdin. Logs go to stderr so stdout
// carries nothing but responses.
func serveStdio(c *cli.Context) error {
	cfg, logger, err := load(c, "stderr")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	transport, err := server.Connect(c.Context, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer transport.Close()

	reg := tools.NewRegistry(server.NewScanner(cfg, transport, logger, nil), logger, nil, nil)
	return runStdio(c.Context, reg, os.Stdin, os.Stdout)
}

// oneShot runs a single tool and prints its result as indented JSON.
func oneShot(tool string, needsAddress bool) cli.ActionFunc {
	return func(c *cli.Context) error {
		args := map[string]any{}
		if needsAddress {
			if c.NArg() != 1 {
				return cli.Exit(fmt.Sprintf("usage: watchmon %s <address>", c.Command.Name), 2)
			}
			args["address"] = c.Args().First()
		}
		if hasFlag(c, daysFlag.Name) {
			args["days"] = c.Int(daysFlag.Name)
		}

		cfg, logger, err := load(c, "stderr")
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		transport, err := server.Connect(c.Context, cfg, logger, nil)
		if err != nil {
			return err
		}
		defer transport.Close()

		reg := tools.NewRegistry(server.NewScanner(cfg, transport, logger, nil), logger, nil, nil)

		ctx := c.Context
		if cfg.ShowProgressBar {
			bar := newProgress(os.Stderr, tool)
			defer bar.Finish()
			ctx = scan.WithProgress(ctx, bar.Update)
		}

		raw, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("encode arguments: %w", err)
		}
		out := reg.Invoke(ctx, tool, raw)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
		if _, failed := out.(tools.ErrorResult); failed {
			return cli.Exit("", 1)
		}
		return nil
	}
}

func hasFlag(c *cli.Context, name string) bool {
	for _, f := range c.Command.Flags {
		for _, n := range f.Names() {
			if n == name {
				return true
			}
		}
	}
	return false
}

func token(c *cli.Context) error {
	secret := utils.Env("JWT_SECRET", "")
	if secret == "" {
		return cli.Exit("JWT_SECRET is not set", 2)
	}
	ttl := c.Duration("ttl")
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	signed, err := controller.IssueToken([]byte(secret), c.String("subject"), ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, signed)
	return err
}
