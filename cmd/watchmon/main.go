package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "YAML config file, overridden by the environment",
		EnvVars: []string{"CONFIG_FILE"},
	}
	daysFlag = &cli.IntFlag{
		Name:  "days",
		Usage: "size of the look-back window in days",
		Value: 7,
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:    "watchmon",
		Usage:   "monitor and analyze dApps on the Monad testnet",
		Version: version,
		Flags:   []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start the tool server",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "stdio", Usage: "serve tool calls as JSON lines on stdin/stdout instead of HTTP"},
				},
				Action: serve,
			},
			{
				Name:   "top",
				Usage:  "rank the most active dApps",
				Flags:  []cli.Flag{daysFlag},
				Action: oneShot("get_top_dapps", false),
			},
			{
				Name:      "details",
				Usage:     "profile a contract",
				ArgsUsage: "<address>",
				Action:    oneShot("get_contract_details", true),
			},
			{
				Name:      "txcount",
				Usage:     "count transactions sent to a dApp",
				ArgsUsage: "<address>",
				Flags:     []cli.Flag{daysFlag},
				Action:    oneShot("get_dapp_transactions_count", true),
			},
			{
				Name:   "network",
				Usage:  "show chain id, head and gas price",
				Action: oneShot("get_network_info", false),
			},
			{
				Name:  "token",
				Usage: "mint a bearer token signed with JWT_SECRET",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Value: "watchmon"},
					&cli.DurationFlag{Name: "ttl", Value: 0, Usage: "token lifetime (default 8h)"},
				},
				Action: token,
			},
			{
				Name:  "version",
				Usage: "show the version of watchmon",
				Action: func(c *cli.Context) error {
					_, err := fmt.Fprintf(c.App.Writer, "watchmon version %s\n", version)
					return err
				},
			},
		},
	}
}
