package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"

	"rent-predictor/config"
	"rent-predictor/utils"
)

// app carries what every subcommand shares. Configuration is loaded only
// when a command actually runs, so help works with a broken environment.
type app struct {
	ctx        context.Context
	loadConfig func() (*config.Config, error)
}

type runFunc func(ctx context.Context, cfg *config.Config, logger *utils.Logger, args []string) error

// command wraps run so it receives a loaded config and a logger.
func (a *app) command(run runFunc) func(cmd *commander.Command, args []string) error {
	return func(cmd *commander.Command, args []string) error {
		cfg, err := a.loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger := utils.NewLogger(utils.LoggerOptions{Level: cfg.LogLevel, File: cfg.LogFile})
		if err := run(a.ctx, cfg, logger, args); err != nil {
			logger.Error("%s failed: %v", cmd.Name(), err)
			return err
		}
		return nil
	}
}

func (a *app) root() *commander.Command {
	return &commander.Command{
		UsageLine: "rent-predictor",
		Short:     "train and serve apartment rent models",
		Subcommands: []*commander.Command{
			a.trainCmd(),
			a.predictCmd(),
			a.seedCmd(),
			a.serveCmd(),
		},
		Flag: *flag.NewFlagSet("rent-predictor", flag.ExitOnError),
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{ctx: ctx, loadConfig: config.Load}
	cmd := a.root()
	if err := cmd.Flag.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "**err**: %v\n", err)
		os.Exit(1)
	}

	if err := cmd.Dispatch(cmd.Flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "**err**: %v\n", err)
		stop()
		os.Exit(1)
	}
}
