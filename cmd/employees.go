package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/employee-store/internal/employee"
)

func newListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print every employee",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			records, err := appInstance.Service().List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list employees: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tVALUE")
			for _, rec := range records {
				fmt.Fprintf(tw, "%s\t%d\n", rec.Name, rec.Value)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as a JSON array")
	return cmd
}

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add NAME VALUE",
		Short: "Insert a new employee",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			value, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("value must be an integer: %w", err)
			}
			if err := appInstance.Service().Add(cmd.Context(), employee.Record{Name: args[0], Value: value}); err != nil {
				return fmt.Errorf("add employee: %w", err)
			}
			return nil
		},
	}
}

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update ORIGINAL NEW VALUE",
		Short: "Rename an employee and set its value",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			value, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("value must be an integer: %w", err)
			}
			if err := appInstance.Service().Update(cmd.Context(), args[0], args[1], value); err != nil {
				return fmt.Errorf("update employee: %w", err)
			}
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Remove an employee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := appInstance.Service().Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete employee: %w", err)
			}
			return nil
		},
	}
}

func newIncrementRuleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "increment-rule",
		Short: "Apply the first-letter increment rule to every employee",
		Long: `Adds 1 to names starting with "E", 10 to names starting with "G" and 100
to everything else, in one transaction. Running it twice adds the deltas twice.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := appInstance.Service().BulkAdjust(cmd.Context()); err != nil {
				return fmt.Errorf("apply increment rule: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "increment rule applied")
			return nil
		},
	}
}

func newABCSumsCmd() *cobra.Command {
	var (
		prefixes  []string
		threshold int64
		source    string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "abc-sums",
		Short: "Report per-initial totals that meet a threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			q := appInstance.Config().Aggregate.Query()
			if cmd.Flags().Changed("prefixes") {
				q.Prefixes = prefixes
			}
			if cmd.Flags().Changed("threshold") {
				q.Threshold = threshold
			}

			var totals []employee.GroupTotal
			switch source {
			case "store":
				totals, err = appInstance.Service().GroupedSum(cmd.Context(), q)
			case "listing":
				totals, err = appInstance.Service().GroupedSumFromListing(cmd.Context(), q)
			default:
				return fmt.Errorf("--source must be store or listing, got %q", source)
			}
			if err != nil {
				return fmt.Errorf("abc sums: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), totals)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INITIAL\tSUM")
			for _, total := range totals {
				fmt.Fprintf(tw, "%s\t%s\n", total.Initial, total.Sum)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringSliceVar(&prefixes, "prefixes", nil, "comma-separated single-character group keys (default from aggregate.prefixes)")
	cmd.Flags().Int64Var(&threshold, "threshold", 0, "minimum inclusive group total (default from aggregate.threshold)")
	cmd.Flags().StringVar(&source, "source", "store", "compute in the store or from a full listing: store|listing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print totals as a JSON array")
	return cmd
}

func writeJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
