package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/orrn/labelrelay/internal/core"
)

var (
	printJobID    string
	printTemplate string
)

var printCmd = &cobra.Command{
	Use:   "print",
	Short: "Print one pending job",
	Long: `Print one pending job and report its status back to Odoo.

Examples:
  labelrelay print --job 42
  labelrelay print --job 42 --template compact`,
	RunE: runPrint,
}

var printAllCmd = &cobra.Command{
	Use:   "print-all",
	Short: "Print every pending job",
	RunE:  runPrintAll,
}

func init() {
	printCmd.Flags().StringVarP(&printJobID, "job", "j", "", "job id")
	printCmd.Flags().StringVarP(&printTemplate, "template", "t", "", "template name (default from config)")
	printCmd.MarkFlagRequired("job")

	printAllCmd.Flags().StringVarP(&printTemplate, "template", "t", "", "template name (default from config)")
}

func templateOrDefault() string {
	if printTemplate != "" {
		return printTemplate
	}
	return store.Current().Templates.Default
}

func runPrint(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(store, logger, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	var out core.Outcome
	streamEvents(cmd.OutOrStdout(), func(events chan<- core.Event) {
		out = rt.orchestrator.PrintJob(context.Background(), core.JobID(printJobID), templateOrDefault(), events)
	})
	if !out.Done() {
		return fmt.Errorf("job %s failed: %w", printJobID, out.Err)
	}
	return nil
}

func runPrintAll(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(store, logger, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	var batch core.BatchOutcome
	streamEvents(cmd.OutOrStdout(), func(events chan<- core.Event) {
		batch = rt.orchestrator.PrintAll(context.Background(), templateOrDefault(), events)
	})
	if failed := len(batch.Jobs) - batch.Succeeded; failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(batch.Jobs))
	}
	return nil
}

// streamEvents prints progress while run executes, then closes the channel
// it handed to run.
func streamEvents(w io.Writer, run func(events chan<- core.Event)) {
	events := make(chan core.Event, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range events {
			if ev.Kind == core.EventResult {
				mark := "OK"
				if !ev.Success {
					mark = "FAILED"
				}
				fmt.Fprintf(w, "[%s] %s\n", mark, ev.Message)
				continue
			}
			fmt.Fprintf(w, "  %s\n", ev.Message)
		}
	}()

	run(events)
	close(events)
	wg.Wait()
}
