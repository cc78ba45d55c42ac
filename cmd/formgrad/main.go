// Package main provides the formgrad CLI: evaluate and differentiate integral
// functionals described by a problem file.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/born-ml/formgrad/internal/config"
	"github.com/born-ml/formgrad/internal/problem"
	"github.com/born-ml/formgrad/internal/serialization"
)

const version = "v0.1.0-dev"

// app holds the state shared by all commands of one invocation.
type app struct {
	configPath   string
	controlsPath string
	verbose      bool
	logger     *zap.Logger
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "formgrad",
		Short: "Evaluate and differentiate integral functionals",
		Long: `formgrad records the assembly of an integral functional on a tape and
replays it to compute values, gradients, directional derivatives and
Hessian actions with respect to fields, constants, expressions and the mesh.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := zap.NewProductionConfig()
			cfg.OutputPaths = []string{"stderr"}
			if a.verbose {
				cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			} else {
				cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
			}
			logger, err := cfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "problem.yaml", "problem file")
	root.PersistentFlags().StringVar(&a.controlsPath, "controls", "", "snapshot file whose control values replace the configured ones")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newVersionCmd(),
		newEvalCmd(a),
		newGradientCmd(a),
		newTLMCmd(a),
		newHessianCmd(a),
		newTaylorCmd(a),
		newMinimizeCmd(a),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "formgrad %s\n", version)
		},
	}
}

// load reads the problem file, builds the taped functional and applies the
// --controls snapshot if one is given.
func (a *app) load(ctx context.Context) (*config.Config, *problem.Problem, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, nil, err
	}
	p, err := problem.Build(ctx, cfg, a.logger)
	if err != nil {
		return nil, nil, err
	}
	if a.controlsPath != "" {
		s, err := serialization.Load(a.controlsPath)
		if err != nil {
			return nil, nil, fmt.Errorf("controls: %w", err)
		}
		if err := p.Restore(ctx, s); err != nil {
			return nil, nil, fmt.Errorf("controls: %w", err)
		}
	}
	return cfg, p, nil
}
