package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/conversion-cli/internal/analysis"
	"github.com/sells-group/conversion-cli/internal/config"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score conversion candidates across analysis zones",
	Long: `Loads the geospatial layers, scores every conversion candidate in the
selected zones, and finds critical-mass clusters.

Candidates come from the scored buildings layer plus commercial listings,
deduplicated by proximity. Each candidate gets a weighted composite of its
base conversion score, amenity accessibility, public investment momentum,
walkability, and economic density.

Examples:
  # Analyze every configured zone
  analyze

  # Analyze one zone, keep the top 25
  analyze --zone midtown --top 25

  # Export all zones to CSV
  analyze --format csv --output candidates.csv

  # Persist the run for the dashboard
  analyze --save`,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.String("zone", "", "analyze a single zone by id (default: all zones)")
	f.Int("top", 0, "number of candidates to keep per zone (overrides config)")
	f.Float64("min-score", 0, "score threshold for the summary count (overrides config)")
	f.Int("concurrency", 4, "zones analyzed in parallel")
	f.String("format", "table", "output format: table, csv, or json")
	f.String("output", "", "output file path (default: stdout)")
	f.Bool("save", false, "save the run to the configured store")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zoneID, _ := cmd.Flags().GetString("zone")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	save, _ := cmd.Flags().GetBool("save")

	if format != "table" && format != "csv" && format != "json" {
		return eris.Errorf("analyze: --format must be table, csv, or json (got %q)", format)
	}

	cfg.Scoring = applyScoringOverrides(cmd, cfg.Scoring)

	analyzer, zones, err := initAnalyzer()
	if err != nil {
		return err
	}

	log := zap.L().With(zap.String("command", "analyze"))

	var results []analysis.Result
	if zoneID != "" {
		res, err := analyzer.AnalyzeZone(zoneID)
		if err != nil {
			return eris.Wrapf(err, "analyze: zone %s", zoneID)
		}
		results = []analysis.Result{*res}
	} else {
		log.Info("analyzing all zones",
			zap.Int("zones", len(zones.All())),
			zap.Int("concurrency", concurrency),
		)
		results = analyzer.AnalyzeAll(ctx, concurrency)
	}

	if err := outputResults(results, format, outputPath); err != nil {
		return err
	}

	if save {
		if err := saveRun(ctx, results); err != nil {
			return err
		}
	}

	return nil
}

// applyScoringOverrides returns a copy of the base config with CLI flag overrides applied.
func applyScoringOverrides(cmd *cobra.Command, base config.ScoringConfig) config.ScoringConfig {
	c := base

	if v, _ := cmd.Flags().GetInt("top"); v > 0 {
		c.TopN = v
	}
	if v, _ := cmd.Flags().GetFloat64("min-score"); v > 0 {
		c.ScoreThreshold = v
	}

	return c
}

func saveRun(ctx context.Context, results []analysis.Result) error {
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	zoneIDs := make([]string, len(results))
	for i, r := range results {
		zoneIDs[i] = r.Zone.ID
	}

	run, err := st.CreateRun(ctx, zoneIDs)
	if err != nil {
		return eris.Wrap(err, "analyze: create run")
	}
	if err := st.CompleteRun(ctx, run.ID, results); err != nil {
		return eris.Wrap(err, "analyze: complete run")
	}

	fmt.Printf("Saved run %s (%d zones)\n", run.ID, len(results))
	return nil
}

func outputResults(results []analysis.Result, format, outputPath string) error {
	var w *os.File
	if outputPath != "" {
		var err error
		w, err = os.Create(outputPath)
		if err != nil {
			return eris.Wrapf(err, "analyze: create output file %s", outputPath)
		}
		defer w.Close() //nolint:errcheck
	} else {
		w = os.Stdout
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(results), "analyze: write JSON")
	case "csv":
		return writeCandidateCSV(w, results)
	default:
		return writeResultTables(w, results)
	}
}

func writeCandidateCSV(w io.Writer, results []analysis.Result) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"zone", "address", "lat", "lng", "source", "base_score", "conversion_score", "clustering_potential"}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "analyze: write CSV header")
	}

	for _, res := range results {
		for _, c := range res.ConversionCandidates {
			row := []string{
				res.Zone.ID,
				c.Address,
				fmt.Sprintf("%.6f", c.Location.Lat),
				fmt.Sprintf("%.6f", c.Location.Lng),
				c.Source,
				fmt.Sprintf("%.2f", c.BaseScore),
				fmt.Sprintf("%.2f", c.ConversionScore),
				fmt.Sprintf("%.2f", c.ClusteringPotential),
			}
			if err := cw.Write(row); err != nil {
				return eris.Wrap(err, "analyze: write CSV row")
			}
		}
	}
	return nil
}

func writeResultTables(w io.Writer, results []analysis.Result) error {
	for _, res := range results {
		if err := writeZoneTable(w, res); err != nil {
			return err
		}
	}
	return nil
}

func writeZoneTable(w io.Writer, res analysis.Result) error {
	if _, err := fmt.Fprintf(w, "\n=== %s (%s) ===\n", res.Zone.Name, res.Zone.ID); err != nil {
		return eris.Wrap(err, "analyze: write zone header")
	}

	if len(res.ConversionCandidates) == 0 {
		_, err := fmt.Fprintln(w, "No candidates.")
		return eris.Wrap(err, "analyze: write empty zone")
	}

	header := fmt.Sprintf("%-40s %-10s %6s %6s %6s\n",
		"Address", "Source", "Base", "Score", "Clust")
	if _, err := fmt.Fprint(w, header); err != nil {
		return eris.Wrap(err, "analyze: write table header")
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", 72)); err != nil {
		return eris.Wrap(err, "analyze: write table separator")
	}

	for _, c := range res.ConversionCandidates {
		addr := c.Address
		if len(addr) > 40 {
			addr = addr[:37] + "..."
		}
		line := fmt.Sprintf("%-40s %-10s %6.2f %6.2f %6.2f\n",
			addr, c.Source, c.BaseScore, c.ConversionScore, c.ClusteringPotential)
		if _, err := fmt.Fprint(w, line); err != nil {
			return eris.Wrap(err, "analyze: write table row")
		}
	}

	s := res.Summary
	if _, err := fmt.Fprintf(w,
		"\nCandidates: %d  Above threshold: %d  Avg score: %.2f  Clusters: %d\n",
		s.TotalCandidates, s.AboveThreshold, s.AvgConversionScore, s.ClusterCount,
	); err != nil {
		return eris.Wrap(err, "analyze: write summary")
	}

	for i, cl := range res.Clusters {
		if _, err := fmt.Fprintf(w, "  Cluster %d: %d buildings around (%.4f, %.4f), avg %.2f\n",
			i+1, cl.Size, cl.Centroid.Lat, cl.Centroid.Lng, cl.AvgScore,
		); err != nil {
			return eris.Wrap(err, "analyze: write cluster")
		}
	}

	return nil
}
