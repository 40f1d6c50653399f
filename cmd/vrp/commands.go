package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vrpengine/internal/buildinfo"
	"vrpengine/internal/convert"
)

func newSolveCmd(o *rootOptions) *cobra.Command {
	var (
		problemPath string
		matrixPaths []string
		configPath  string
		geojson     bool
		outPath     string
	)
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve a problem and print the solution",
		Long: "Solve reads a pragmatic problem and optional routing matrices. Without matrices\n" +
			"travel is approximated from coordinates. Interrupting returns the best solution so far.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			problem, err := os.ReadFile(problemPath)
			if err != nil {
				return err
			}
			matrices := make([]string, len(matrixPaths))
			for i, p := range matrixPaths {
				b, err := os.ReadFile(p)
				if err != nil {
					return err
				}
				matrices[i] = string(b)
			}
			var solveConfig string
			if configPath != "" {
				b, err := os.ReadFile(configPath)
				if err != nil {
					return err
				}
				solveConfig = string(b)
			}

			e, err := o.engine(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()
			out, err := await(cmd.Context(), e.SolvePragmatic(string(problem), matrices, solveConfig, geojson, nil, nil))
			if err != nil {
				return err
			}
			return write(cmd, outPath, out)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&problemPath, "problem", "p", "", "problem json file")
	f.StringArrayVarP(&matrixPaths, "matrix", "m", nil, "routing matrix json file (repeatable)")
	f.StringVarP(&configPath, "config", "c", "", "solve config json file")
	f.BoolVar(&geojson, "geojson", false, "add a geojson projection of the solution")
	f.StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("problem")
	return cmd
}

func newLocationsCmd(o *rootOptions) *cobra.Command {
	var problemPath, outPath string
	cmd := &cobra.Command{
		Use:   "locations",
		Short: "Print the routing locations a matrix must cover",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			problem, err := os.ReadFile(problemPath)
			if err != nil {
				return err
			}
			e, err := o.engine(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()
			out, err := await(cmd.Context(), e.GetRoutingLocations(string(problem), nil, nil))
			if err != nil {
				return err
			}
			return write(cmd, outPath, out)
		},
	}
	cmd.Flags().StringVarP(&problemPath, "problem", "p", "", "problem json file")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("problem")
	return cmd
}

func newConvertCmd(o *rootOptions) *cobra.Command {
	var format, outPath string
	cmd := &cobra.Command{
		Use:   "convert [flags] input...",
		Short: "Convert csv (jobs.csv vehicles.csv) or pragmatic input to canonical pragmatic json",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs := make([]string, len(args))
			for i, p := range args {
				b, err := os.ReadFile(p)
				if err != nil {
					return err
				}
				inputs[i] = string(b)
			}
			e, err := o.engine(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()
			out, err := await(cmd.Context(), e.ConvertToPragmatic(format, inputs, nil, nil))
			if err != nil {
				return err
			}
			return write(cmd, outPath, out)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", convert.FormatCSV, "input format: csv or pragmatic")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info := buildinfo.Info()
			fmt.Fprintf(cmd.OutOrStdout(), "vrp %s (commit %s, built %s, %s, abi %d)\n",
				info["version"], info["commit"], info["builtAt"], info["goVersion"], buildinfo.ABIVersion)
		},
	}
}

func write(cmd *cobra.Command, path string, out []byte) error {
	if path == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return err
	}
	return os.WriteFile(path, out, 0o644)
}
