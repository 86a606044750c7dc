package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"toolscan/internal/detect"
	"toolscan/internal/priority"
)

var prioritizeCmd = &cobra.Command{
	Use:   "prioritize component[@version] [component[@version]...]",
	Short: "Pick the authoritative installation for each required component",
	Long: `Detects every candidate installation of the named components and ranks
them through the four priority tiers. A version requirement can be attached
with @, e.g. "git@2.47.1".`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPrioritize,
}

func init() {
	prioritizeCmd.Flags().Bool("json", false, "print the full report as JSON")
	rootCmd.AddCommand(prioritizeCmd)
}

func runPrioritize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	names := make([]string, 0, len(args))
	required := make(map[string]string, len(args))
	for _, arg := range args {
		name, version := arg, ""
		if idx := strings.LastIndex(arg, "@"); idx > 0 {
			name, version = arg[:idx], arg[idx+1:]
		}
		logical := detect.NormalizeName(name, cfg.Aliases)
		names = append(names, logical)
		required[logical] = version
	}

	co := buildCoordinator(cfg, store, nil)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Deadline())
	defer cancel()
	detection := co.Detect(ctx, names)

	byName := make(map[string][]detect.Candidate)
	for _, c := range detection.Applications {
		byName[c.Name] = append(byName[c.Name], c)
	}

	var reqs []priority.Request
	for _, name := range names {
		reqs = append(reqs, priority.Request{
			Component:       name,
			RequiredVersion: required[name],
			Candidates:      byName[name],
		})
	}

	report := buildPrioritizer(cfg).PrioritizeAll(reqs)

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	for _, res := range report.Results {
		fmt.Println(res.Reasoning)
		if res.Recommended != nil {
			fmt.Printf("  -> %s %s (%s, score %.2f)\n",
				res.Recommended.Name, res.Recommended.Version, res.Recommended.InstallPath, res.Score)
		}
	}
	if len(report.Warnings) > 0 {
		fmt.Printf("\n%d components without a usable installation\n", len(report.Warnings))
	}
	return nil
}
