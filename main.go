// arch-repo-builder orchestrates parallel package builds for a
// rolling-release recipe set (spec.md). See SPEC_FULL.md for the full
// module layout and DESIGN.md for how each package is grounded.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/SputnikRocket/arch-repo-builder/pkg/common"
	"github.com/SputnikRocket/arch-repo-builder/pkg/config"
	"github.com/SputnikRocket/arch-repo-builder/pkg/orchestrator"
	"github.com/SputnikRocket/arch-repo-builder/pkg/rundisplay"
	"github.com/SputnikRocket/arch-repo-builder/pkg/sandbox"
)

func main() {
	// The nonet helper re-exec path (pkg/sandbox) must be dispatched before
	// kong ever sees argv — it isn't a user-facing subcommand.
	if len(os.Args) > 1 && os.Args[1] == sandbox.HelperArg {
		if err := sandbox.RunNoNetHelper(os.Args[2:], os.Getuid(), os.Getgid()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("arch-repo-builder"),
		kong.Description("Parallel package-build orchestrator for a rolling-release recipe set."),
		kong.UsageOnError(),
		kong.Vars{"version": config.GetBuildInfo()},
	)

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(cli); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(cli config.CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	f, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	root, err := os.Getwd()
	if err != nil {
		return common.Tag(common.ErrConfig, "resolving run root: %v", err)
	}
	opts, err := config.Merge(f, cli, root)
	if err != nil {
		return err
	}

	selfExe, err := os.Executable()
	if err != nil {
		return common.Tag(common.ErrConfig, "resolving own executable path: %v", err)
	}

	result, err := orchestrator.Run(ctx, f, opts, selfExe, nil)

	summary := rundisplay.Summary{
		RunID:        result.RunID,
		Total:        result.Total,
		Built:        len(result.Built),
		AlreadyBuilt: result.AlreadyBuilt,
		Failed:       result.Failed,
		Reclaimed:    orchestrator.HumanizeReclaimed(result),
	}
	fmt.Fprint(os.Stderr, summary.Render())

	return err
}
