/*
monitord - home security alarm monitoring core
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/arpi-project/monitord/internal/config"
	"github.com/arpi-project/monitord/internal/sysutil"
)

// Version is the program version, filled in by the build.
var Version string

// newRootCmd returns the primary [cobra.Command] pointer for the program.
func newRootCmd(ctx context.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "monitord",
		Short:             "Home security alarm monitoring core",
		Version:           Version,
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}

	rootCmd.AddCommand(newRunCmd(ctx), newCheckConfigCmd())

	return rootCmd
}

// newRunCmd returns the "run" [cobra.Command] pointer for the program.
func newRunCmd(ctx context.Context) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run <config.yaml>",
		Short: "Run the monitoring core using a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			fsys := afero.NewOsFs()

			cfg, ents, err := loadConfigAndEntities(fsys, args[0])
			if err != nil {
				return err
			}

			prog, err := NewProgram(fsys, cfg, ents, os.Stderr)
			if err != nil {
				return fmt.Errorf("failure establishing program: %w", err)
			}

			prog.Start(ctx)
			<-prog.Done()

			return nil
		},
	}

	return runCmd
}

// newCheckConfigCmd returns the "check-config" [cobra.Command] pointer
// for the program: parses both the bootstrap config and the entity
// topology it points at, without opening any hardware or the database.
func newCheckConfigCmd() *cobra.Command {
	checkCmd := &cobra.Command{
		Use:   "check-config <config.yaml>",
		Short: "Check if a configuration file and its entity topology are syntactically valid",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			_, _, err := loadConfigAndEntities(afero.NewOsFs(), args[0])
			return err
		},
	}

	return checkCmd
}

// loadConfigAndEntities loads the bootstrap config at path and the
// entity topology it references.
func loadConfigAndEntities(fsys afero.Fs, path string) (*config.Config, *config.Entities, error) {
	cfg, err := config.Load(fsys, path)
	if err != nil {
		return nil, nil, fmt.Errorf("failure reading configuration file: %w", err)
	}

	ents, err := config.LoadEntities(fsys, cfg.EntitiesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failure reading entity topology: %w", err)
	}

	return cfg, ents, nil
}

func main() {
	var exitCode int
	defer func() {
		os.Exit(exitCode)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer sysutil.RecoverGoPanic("signals", nil)
		<-sigs
		cancel()
	}()

	rootCmd := newRootCmd(ctx)
	if err := rootCmd.Execute(); err != nil {
		exitCode = 1
	}
}
