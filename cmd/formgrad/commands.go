package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/born-ml/formgrad/internal/config"
	"github.com/born-ml/formgrad/internal/fem"
	"github.com/born-ml/formgrad/internal/optim"
	"github.com/born-ml/formgrad/internal/problem"
	"github.com/born-ml/formgrad/internal/serialization"
	"github.com/born-ml/formgrad/internal/tape"
	"github.com/born-ml/formgrad/internal/ufl"
)

func newEvalCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "eval",
		Short: "Evaluate the functional",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			j, err := p.Functional.Value(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "J = %.12g\n", j)
			return nil
		},
	}
}

func newGradientCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "gradient [control...]",
		Short: "Derivative with respect to each control (all by default)",
		Long: `Runs an adjoint sweep and prints dJ/dm for each control. The domain is
available as the control "mesh".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			names := args
			if len(names) == 0 {
				names = append([]string{"mesh"}, p.Controls()...)
			}
			controls, err := lookup(p, names)
			if err != nil {
				return err
			}
			grads, err := p.Functional.Gradient(cmd.Context(), controls...)
			if err != nil {
				return err
			}
			printValues(cmd.OutOrStdout(), "dJ/d", names, grads)
			return nil
		},
	}
}

func newTLMCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tlm",
		Short: "Directional derivative along the configured seeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, p, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			seeds, err := p.Seeds(cfg.Seeds)
			if err != nil {
				return err
			}
			if len(seeds) == 0 {
				return fmt.Errorf("no seeds configured")
			}
			v, err := p.Functional.TLM(cmd.Context(), seeds...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dJ = %s\n", v)
			return nil
		},
	}
}

func newHessianCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hessian [control...]",
		Short: "Hessian action along the configured seeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, p, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			seeds, err := p.Seeds(cfg.Seeds)
			if err != nil {
				return err
			}
			if len(seeds) == 0 {
				return fmt.Errorf("no seeds configured")
			}
			names := args
			if len(names) == 0 {
				names = p.Controls()
			}
			controls, err := lookup(p, names)
			if err != nil {
				return err
			}
			hs, err := p.Functional.Hessian(cmd.Context(), seeds, controls...)
			if err != nil {
				return err
			}
			printValues(cmd.OutOrStdout(), "H·dm/d", names, hs)
			return nil
		},
	}
}

func newTaylorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "taylor",
		Short: "Taylor remainder convergence test for the configured control",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, p, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			tc := cfg.Taylor
			control, err := p.Control(tc.Control)
			if err != nil {
				return err
			}
			dir, err := p.Direction(tc.Control, tc.Direction)
			if err != nil {
				return err
			}
			res, err := tape.TaylorTest(cmd.Context(), p.Functional, control, dir, tc.Epsilon, tc.Steps)
			if err != nil {
				return err
			}
			fd, err := tape.FiniteDifference(cmd.Context(), p.Functional, control, dir, tc.Epsilon*1e-2)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "control %s, central difference dJ = %.10g\n", tc.Control, fd)
			fmt.Fprintf(out, "%-12s %-14s %-14s\n", "h", "|R0|", "|R1|")
			for i, h := range res.Steps {
				fmt.Fprintf(out, "%-12.4g %-14.6e %-14.6e\n", h, res.Residuals[i], res.GradResiduals[i])
			}
			fmt.Fprintf(out, "rates without gradient: %.3f\n", res.Rates)
			fmt.Fprintf(out, "rates with gradient:    %.3f\n", res.GradRates)
			return nil
		},
	}
}

func newMinimizeCmd(a *app) *cobra.Command {
	var save string
	cmd := &cobra.Command{
		Use:   "minimize",
		Short: "Minimize the functional over the configured controls",
		Long: `Runs gradient-based minimization (sgd or adam) over the fields and
constants listed under optimize.controls, then prints the final value and
controls.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, p, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			oc := cfg.Optimize
			controls, err := lookup(p, oc.Controls)
			if err != nil {
				return err
			}
			var opt optim.Optimizer
			if oc.Method == config.MethodSGD {
				opt = optim.NewSGD(optim.SGDConfig{LR: oc.LR, Momentum: oc.Momentum})
			} else {
				opt = optim.NewAdam(optim.AdamConfig{LR: oc.LR})
			}
			res, err := optim.Minimize(cmd.Context(), p.Functional, controls, opt, optim.MinimizeConfig{
				MaxIter: oc.MaxIter,
				GTol:    oc.GTol,
				Logger:  a.logger,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d iterations, converged %t\n", oc.Method, res.Iterations, res.Converged)
			fmt.Fprintf(out, "J = %.12g, |dJ| = %.3e\n", res.Value, res.GradNorm)
			for i, name := range oc.Controls {
				cur, err := p.Functional.Current(controls[i])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s = %s\n", name, controlValue(cur))
			}
			if save == "" {
				return nil
			}
			snap, err := p.Snapshot(oc.Controls...)
			if err != nil {
				return err
			}
			snap.Metadata = map[string]string{"functional": cfg.Functional}
			snap.Checkpoint = &serialization.CheckpointMeta{
				Iterations:      res.Iterations,
				Value:           res.Value,
				GradNorm:        res.GradNorm,
				Converged:       res.Converged,
				OptimizerType:   oc.Method,
				OptimizerConfig: map[string]any{"lr": oc.LR, "momentum": oc.Momentum},
			}
			if err := serialization.Save(save, snap); err != nil {
				return err
			}
			fmt.Fprintf(out, "saved %s\n", save)
			return nil
		},
	}
	cmd.Flags().StringVar(&save, "save", "", "write the optimized controls to this snapshot file")
	return cmd
}

// controlValue prints a control with 8 significant digits.
func controlValue(o tape.Overloaded) string {
	switch x := o.(type) {
	case *ufl.Field:
		parts := make([]string, len(x.Values()))
		for i, v := range x.Values() {
			parts[i] = strconv.FormatFloat(v, 'g', 8, 64)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case *ufl.Constant:
		return strconv.FormatFloat(x.Value(), 'g', 8, 64)
	}
	return o.Key()
}

func lookup(p *problem.Problem, names []string) ([]tape.Overloaded, error) {
	out := make([]tape.Overloaded, len(names))
	for i, name := range names {
		c, err := p.Control(name)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func printValues(w io.Writer, prefix string, names []string, vals []fem.Value) {
	for i, name := range names {
		fmt.Fprintf(w, "%s%s = %s\n", prefix, name, vals[i])
	}
}
