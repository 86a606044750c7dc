package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"toolscan/internal/progress"
)

var detectCmd = &cobra.Command{
	Use:   "detect [component...]",
	Short: "Probe the workstation for installed toolchain components",
	Long: `Runs every registered detection strategy (cache-first) against the
requested components, or against all configured components when none are
named, and prints one canonical record per logical component.`,
	RunE: runDetect,
}

func init() {
	detectCmd.Flags().Bool("json", false, "print the full detection result as JSON")
	detectCmd.Flags().Bool("no-cache", false, "invalidate cached results before probing")
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		store.Clear()
	}

	reporter := progress.NewReporter()
	co := buildCoordinator(cfg, store, func(done, total int, label string) {
		reporter.Update(done, label)
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Deadline())
	defer cancel()

	reporter.Start(len(buildStrategies(cfg)))
	result := co.Detect(ctx, args)
	reporter.Finish()

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COMPONENT\tVERSION\tSTATUS\tMETHOD\tCONFIDENCE\tPATH")
	for _, c := range result.Applications {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
			c.Name, c.Version, c.Status, c.Method, c.Confidence, c.InstallPath)
	}
	w.Flush()

	fmt.Printf("\n%d detected in %s", result.TotalDetected, result.Elapsed.Round(1e6))
	if len(result.Warnings) > 0 {
		fmt.Printf(" (%d warnings, rerun with --verbose)", len(result.Warnings))
	}
	fmt.Println()
	return nil
}
