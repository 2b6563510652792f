package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/apiview/internal/catalog"
	"github.com/ziadkadry99/apiview/internal/loader"
	"github.com/ziadkadry99/apiview/internal/probe"
	"github.com/ziadkadry99/apiview/internal/progress"
)

var (
	checkIndexURL    string
	checkProbe       bool
	checkConcurrency int
	checkRPS         float64
	checkMarkdown    bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Load and validate the document index",
	Long: `Fetches the configured index, validates it and prints a summary of its
groups and documents. With --probe every document URL is requested as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if checkIndexURL != "" {
			cfg.IndexURL = checkIndexURL
		}
		logger := newLogger(os.Stderr, cfg.LogFormat)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		idx, err := loader.Load(ctx, cfg.IndexURL, loaderOptions(cfg, logger)...)
		if err != nil {
			return err
		}

		if checkMarkdown {
			fmt.Print(catalog.FormatMarkdown(idx))
		} else {
			printSummary(cfg.IndexURL, idx)
		}

		if !checkProbe {
			return nil
		}

		p := &probe.Prober{
			Concurrency: checkConcurrency,
			RPS:         checkRPS,
			Reporter:    progress.NewReporter(os.Stderr, "Probing documents"),
		}
		results, err := p.Run(ctx, idx)
		if err != nil {
			return err
		}
		failed := printProbeResults(results)
		if failed > 0 {
			return fmt.Errorf("%d of %d documents unreachable", failed, len(results))
		}
		return nil
	},
}

func printSummary(source string, idx catalog.Index) {
	fmt.Println("Index Summary")
	fmt.Println("=============")
	fmt.Printf("  Source:     %s\n", source)
	fmt.Printf("  Groups:     %d\n", len(idx))
	fmt.Printf("  Documents:  %d\n", idx.Count())
	fmt.Println()
	fmt.Printf("  %-20s %-24s %s\n", "Group", "Document", "URL")
	fmt.Printf("  %-20s %-24s %s\n", "-----", "--------", "---")
	for _, g := range idx {
		for _, d := range g.Documents {
			fmt.Printf("  %-20s %-24s %s\n", g.ID, d.ID, d.URL)
		}
	}
}

func printProbeResults(results []probe.Result) int {
	failed := 0
	fmt.Println()
	fmt.Println("Probe Results")
	fmt.Println("=============")
	for _, r := range results {
		if r.OK() {
			continue
		}
		failed++
		reason := fmt.Sprintf("HTTP %d", r.Status)
		if r.Err != nil {
			reason = r.Err.Error()
		}
		fmt.Printf("  FAIL %-20s %-24s %s\n", r.GroupID, r.DocumentID, reason)
	}
	fmt.Printf("  %d/%d reachable\n", len(results)-failed, len(results))
	return failed
}

func init() {
	checkCmd.Flags().StringVar(&checkIndexURL, "index", "", "index URL or file (overrides config)")
	checkCmd.Flags().BoolVar(&checkProbe, "probe", false, "request every document URL")
	checkCmd.Flags().IntVar(&checkConcurrency, "concurrency", 8, "parallel probe requests")
	checkCmd.Flags().Float64Var(&checkRPS, "rps", 0, "max probe requests per second per host (0 = unlimited)")
	checkCmd.Flags().BoolVar(&checkMarkdown, "markdown", false, "print the index as a markdown table")
	rootCmd.AddCommand(checkCmd)
}
