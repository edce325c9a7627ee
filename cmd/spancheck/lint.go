// contracts command group: static checks on contract files
package main

import (
	"errors"
	"fmt"

	"github.com/andrewh/spancheck/pkg/contract"
	"github.com/spf13/cobra"
)

// errLintFailed maps to exit status 2, like a failed validation.
var errLintFailed = fmt.Errorf("contracts lint failed: %w", errContractsFailed)

func contractsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contracts",
		Short: "Inspect observability contract files",
	}
	cmd.AddCommand(lintCmd())
	return cmd
}

func lintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Check a contracts file for structural mistakes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := flagEnv(cmd.Flags())
			if err != nil {
				return err
			}
			return runLint(cmd, v.GetString("contracts"))
		},
	}

	cmd.Flags().String("contracts", defaultContractsPath, "observability contracts YAML file")

	return cmd
}

func runLint(cmd *cobra.Command, path string) error {
	w := cmd.OutOrStdout()

	file, err := contract.Load(path)
	if err != nil {
		_, _ = fmt.Fprintf(w, "Contracts lint FAILED: %v\n", err)
		return errors.Join(errLintFailed, err)
	}

	issues := contract.Lint(file)
	if len(issues) == 0 {
		_, _ = fmt.Fprintf(w, "Contracts lint OK: %s (%d %s)\n", path, len(file.Contracts), plural(len(file.Contracts), "contract"))
		return nil
	}

	_, _ = fmt.Fprintln(w, "Contracts lint FAILED:")
	for _, issue := range issues {
		_, _ = fmt.Fprintf(w, " - %s\n", issue)
	}
	return errLintFailed
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
