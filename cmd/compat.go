package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"toolscan/internal/compat"
	"toolscan/internal/detect"
)

var compatCmd = &cobra.Command{
	Use:   "compat [name=version...]",
	Short: "Evaluate mutual compatibility of the installed component set",
	Long: `Builds a compatibility report over an installed set: pairwise levels for
every pair, detected conflicts, and remediations ranked by estimated success
probability. Without arguments the installed set comes from a detection pass
over the configured components.`,
	RunE: runCompat,
}

func init() {
	compatCmd.Flags().Bool("json", false, "print the full report as JSON")
	compatCmd.Flags().String("platform", "", "platform filter for rules (default: current OS)")
	rootCmd.AddCommand(compatCmd)
}

func runCompat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	platform, _ := cmd.Flags().GetString("platform")
	if platform == "" {
		platform = cfg.Platform
	}

	installed := make(map[string]string)
	if len(args) > 0 {
		for _, arg := range args {
			name, version, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("invalid component spec %q, expected name=version", arg)
			}
			installed[name] = version
		}
	} else {
		store, err := openCache(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		co := buildCoordinator(cfg, store, nil)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Deadline())
		defer cancel()
		for _, c := range co.Detect(ctx, nil).Applications {
			if c.Status == detect.StatusInstalled {
				installed[c.Name] = c.Version
			}
		}
	}

	if len(installed) == 0 {
		return fmt.Errorf("nothing to evaluate: no installed components found")
	}

	report := buildEngine(cfg).Evaluate(installed, platform)

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Printf("Compatibility score: %.2f over %d pairs\n", report.Summary.Score, report.Summary.Pairs)
	levels := make([]string, 0, len(report.Summary.Counts))
	for level := range report.Summary.Counts {
		levels = append(levels, string(level))
	}
	sort.Strings(levels)
	for _, level := range levels {
		fmt.Printf("  %s: %d\n", level, report.Summary.Counts[compat.Level(level)])
	}
	if len(report.Conflicts) == 0 {
		fmt.Println("No conflicts detected.")
		return nil
	}

	fmt.Printf("\n%d conflicts:\n", len(report.Conflicts))
	for _, c := range report.Conflicts {
		fmt.Printf("  [%s] %s: %s\n", c.Severity, c.Type, c.Description)
	}
	fmt.Println("\nProposed resolutions (best first):")
	for _, r := range report.Resolutions {
		fmt.Printf("  %.0f%% %s: %s\n", r.SuccessProbability*100, r.Strategy, strings.Join(r.Actions, "; "))
	}
	return nil
}
