package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/orrn/labelrelay/internal/core"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List pending jobs",
	RunE:  runJobs,
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List loaded templates and check that they can render",
	RunE:  runTemplates,
}

func runJobs(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(store, logger, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	jobs, err := rt.remote.Fetch(context.Background())
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No pending jobs.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPRODUCT\tCODE\tPRICE\tQTY")
	for _, j := range jobs {
		f := core.JobFields(j)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s%.2f\t%d\n", j.ID, j.ProductName, j.DefaultCode, f["currency_symbol"], f["price"], j.Copies())
	}
	return tw.Flush()
}

func runTemplates(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(store, logger, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	set := rt.snapshots.Load().Templates
	if set.Len() == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No templates loaded from %s.\n", store.Current().Templates.Path)
		return nil
	}

	problems := set.Check()
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLABEL\tSTATUS")
	for _, name := range set.Names() {
		t, _ := set.Get(name)
		status := "ok"
		if err := problems[name]; err != nil {
			status = err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, t.Label, status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(problems) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d template(s) cannot render\n", len(problems))
	}
	return nil
}
