// waggle runs a supply chain hive: the four built-in planners on an
// in-process broker, the scenario's disruption loop, and the HTTP
// dashboard on the side. Stop it with an interrupt or --duration; pass
// --report to get a rendered summary of the run on the way out.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Ensure environment overrides are loaded
	_ "github.com/joho/godotenv/autoload"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/fogfish/opts"
	"github.com/k0kubun/pp/v3"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/casualjim/waggle"
	"github.com/casualjim/waggle/agents"
	"github.com/casualjim/waggle/dashboard"
	"github.com/casualjim/waggle/inventory"
	"github.com/casualjim/waggle/scenario"
)

var log zerolog.Logger

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log = zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: level}),
	))
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
		os.Exit(1)
	}
}

func run() error {
	var (
		addr         string
		scenarioPath string
		duration     time.Duration
		seed         int64
		verbose      bool
		report       bool
	)

	flags := pflag.NewFlagSet("waggle", pflag.ContinueOnError)
	flags.StringVar(&addr, "addr", ":8000", "dashboard listen address")
	flags.StringVar(&scenarioPath, "scenario", "", "path to a scenario file, built-in scenario when omitted")
	flags.DurationVar(&duration, "duration", 0, "stop after this long, run until interrupted when omitted")
	flags.Int64Var(&seed, "seed", 0, "fix the disruption loop's random seed for reproducible runs")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging plus a dump of the resolved scenario")
	flags.BoolVar(&report, "report", false, "print a run report on exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	setupLogging(verbose)

	world := scenario.Default()
	if scenarioPath != "" {
		loaded, err := scenario.Load(scenarioPath)
		if err != nil {
			return err
		}
		world = loaded
	}
	if verbose {
		pp.Println(world)
	}

	store := inventory.NewStore()
	world.Seed(store)

	options := []opts.Option[waggle.Hive]{
		waggle.WithScenario(world),
		waggle.WithStore(store),
		waggle.Planners(
			agents.NewDemandPlanner(store),
			agents.NewSupplyPlanner(store),
			agents.NewLogisticsPlanner(store),
			agents.NewNegotiationPlanner(store),
		),
	}
	if seed != 0 {
		options = append(options, waggle.WithSeed(seed))
	}
	hive := waggle.New(options...)

	dash := dashboard.New(hive.Bus(), hive.Store(), hive.Scenario(),
		dashboard.WithAddr(addr),
		dashboard.Agents(
			agents.DemandIdentity,
			agents.SupplyIdentity,
			agents.LogisticsIdentity,
			agents.NegotiationIdentity,
		),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var expire context.CancelFunc
		ctx, expire = context.WithTimeout(ctx, duration)
		defer expire()
	}

	// Either half failing takes the other down with it.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		err := hive.Run(runCtx)
		if err != nil {
			cancel()
		}
		errCh <- err
	}()
	go func() {
		err := dash.Serve(runCtx)
		if err != nil {
			cancel()
		}
		errCh <- err
	}()

	var runErr error
	for range 2 {
		if err := <-errCh; err != nil && runErr == nil {
			runErr = err
		}
	}

	if report {
		if err := printReport(hive); err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}

func printReport(hive *waggle.Hive) error {
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return err
	}
	out, err := renderer.Render(hive.Report())
	if err != nil {
		return err
	}
	fmt.Fprint(os.Stdout, out)
	return nil
}
