// Package main provides the connmap CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/GrantMcConachie/FlyWireInitialScrape/internal/catalog"
	"github.com/GrantMcConachie/FlyWireInitialScrape/internal/config"
	"github.com/GrantMcConachie/FlyWireInitialScrape/internal/connectivity"
	"github.com/GrantMcConachie/FlyWireInitialScrape/internal/dataset"
	"github.com/GrantMcConachie/FlyWireInitialScrape/internal/digest"
	"github.com/GrantMcConachie/FlyWireInitialScrape/internal/matrix"
	"github.com/GrantMcConachie/FlyWireInitialScrape/internal/render"
)

// Version is the current connmap version.
var Version = "0.2.0"

var rootCmd = &cobra.Command{
	Use:     "connmap",
	Short:   "Connmap - connectome connectivity extraction and matrix rendering",
	Long:    `Connmap extracts per-region neuron connectivity from FlyWire-style classification and connections tables, persists each region as a keyed JSON map, and renders adjacency-matrix heatmaps.`,
	Version: Version,
}

var (
	flagConfig         string
	flagClassification string
	flagConnections    string
	flagOutDir         string

	flagClass string
	flagName  string
	flagAll   bool

	flagPlotOut   string
	flagNormalize bool
	flagSum       bool
	flagCell      int

	flagMapsDir     string
	flagMapsPattern string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a region's connectivity and persist it as a JSON map",
	Long: `Extract the connectivity of all neurons of a class.

Scans the classification table for neurons of the given class, walks the
connections table once, and writes <name>_connections.json to the output
directory. Each run is recorded in the catalog with input digests.

Examples:
  connmap extract --class olfactory
  connmap extract --class ALPN --name alpn
  connmap extract --all              # every region in connmap.yaml`,
	RunE: runExtract,
}

var downstreamCmd = &cobra.Command{
	Use:   "downstream <map.json>",
	Short: "List the distinct downstream classes of a persisted map",
	Args:  cobra.ExactArgs(1),
	RunE:  runDownstream,
}

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Render adjacency-matrix heatmaps",
}

var plotSingleCmd = &cobra.Command{
	Use:   "single <map.json>",
	Short: "Render the within-area connection matrix of one map",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlotSingle,
}

var plotPairCmd = &cobra.Command{
	Use:   "pair <a.json> <b.json>",
	Short: "Render both directional matrices between two maps, side by side",
	Args:  cobra.ExactArgs(2),
	RunE:  runPlotPair,
}

var mapsCmd = &cobra.Command{
	Use:   "maps",
	Short: "Inspect persisted connectivity maps",
}

var mapsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted map files with digests and entry counts",
	RunE:  runMapsList,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded extraction runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List extraction runs, newest first",
	RunE:  runRunsList,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", config.DefaultFile, "config file path")

	extractCmd.Flags().StringVar(&flagClass, "class", "", "neuron class to extract")
	extractCmd.Flags().StringVar(&flagName, "name", "", "region name for the output file (defaults to the class)")
	extractCmd.Flags().BoolVar(&flagAll, "all", false, "extract every region listed in the config")
	extractCmd.Flags().StringVar(&flagClassification, "classification", "", "classification table path (overrides config)")
	extractCmd.Flags().StringVar(&flagConnections, "connections", "", "connections table path (overrides config)")
	extractCmd.Flags().StringVar(&flagOutDir, "out", "", "output directory (overrides config)")

	downstreamCmd.Flags().StringVar(&flagClassification, "classification", "", "classification table path (overrides config)")

	for _, cmd := range []*cobra.Command{plotSingleCmd, plotPairCmd} {
		cmd.Flags().StringVar(&flagPlotOut, "out", "", "output PNG path (required)")
		cmd.Flags().BoolVar(&flagNormalize, "normalize", false, "normalize weights to [0,1] before rendering")
		cmd.Flags().BoolVar(&flagSum, "sum", false, "sum parallel connections instead of last-write-wins")
		cmd.Flags().IntVar(&flagCell, "cell", 0, "pixels per matrix cell (defaults from config)")
		cmd.MarkFlagRequired("out")
	}
	plotCmd.AddCommand(plotSingleCmd, plotPairCmd)

	mapsListCmd.Flags().StringVar(&flagMapsDir, "dir", "", "directory to search (defaults to the config output dir)")
	mapsListCmd.Flags().StringVar(&flagMapsPattern, "pattern", "*_connections.json", "glob pattern for map files")
	mapsCmd.AddCommand(mapsListCmd)

	runsListCmd.Flags().StringVar(&flagOutDir, "out", "", "output directory holding the catalog (overrides config)")
	runsCmd.AddCommand(runsListCmd)

	rootCmd.AddCommand(extractCmd, downstreamCmd, plotCmd, mapsCmd, runsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file and applies CLI path overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagClassification != "" {
		cfg.Classification = flagClassification
	}
	if flagConnections != "" {
		cfg.Connections = flagConnections
	}
	if flagOutDir != "" {
		cfg.OutDir = flagOutDir
	}
	if flagCell > 0 {
		cfg.Cell = flagCell
	}
	return cfg, nil
}

func mapPath(outDir, region string) string {
	return filepath.Join(outDir, region+"_connections.json")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if flagAll && flagClass != "" {
		return fmt.Errorf("use either --class or --all, not both")
	}
	if !flagAll && flagClass == "" {
		return fmt.Errorf("--class is required (or use --all)")
	}
	if flagAll && len(cfg.Regions) == 0 {
		return fmt.Errorf("--all requires a regions list in %s", flagConfig)
	}

	fmt.Printf("Loading classification table %s... ", cfg.Classification)
	classTable, err := dataset.LoadClassification(cfg.Classification)
	if err != nil {
		fmt.Println()
		return err
	}
	fmt.Printf("%d rows\n", len(classTable.Rows))

	fmt.Printf("Loading connections table %s... ", cfg.Connections)
	connTable, err := dataset.LoadConnections(cfg.Connections)
	if err != nil {
		fmt.Println()
		return err
	}
	fmt.Printf("%d rows\n", len(connTable.Rows))

	classDigest, err := digest.FileHex(cfg.Classification)
	if err != nil {
		return fmt.Errorf("hashing classification table: %w", err)
	}
	connDigest, err := digest.FileHex(cfg.Connections)
	if err != nil {
		return fmt.Errorf("hashing connections table: %w", err)
	}

	cat, err := catalog.Open(cfg.OutDir)
	if err != nil {
		return err
	}
	defer cat.Close()

	regions := []struct{ class, name string }{}
	if flagAll {
		for _, r := range cfg.Regions {
			regions = append(regions, struct{ class, name string }{r, r})
		}
	} else {
		name := flagName
		if name == "" {
			name = flagClass
		}
		regions = append(regions, struct{ class, name string }{flagClass, name})
	}

	for _, region := range regions {
		ids := connectivity.SelectByClass(classTable, region.class)
		if len(ids) == 0 {
			fmt.Fprintf(os.Stderr, "warning: no neurons of class %q\n", region.class)
		}

		progress := func(done, total int) {
			fmt.Printf("\r%s: scanning connections... %d/%d", region.name, done, total)
		}
		m := connectivity.Build(connTable, ids, progress)
		fmt.Println()

		path := mapPath(cfg.OutDir, region.name)
		if err := m.WriteFile(path); err != nil {
			return err
		}

		mapDigest, err := digest.FileHex(path)
		if err != nil {
			return fmt.Errorf("hashing map file: %w", err)
		}

		runID, err := cat.RecordRun(catalog.Run{
			Region:               region.name,
			Class:                region.class,
			Neurons:              m.Len(),
			Connections:          m.TotalConnections(),
			MapPath:              path,
			MapDigest:            mapDigest,
			ClassificationDigest: classDigest,
			ConnectionsDigest:    connDigest,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s: %d neurons, %d connections -> %s (run %s)\n",
			region.name, m.Len(), m.TotalConnections(), path, shortID(runID))
	}

	return nil
}

func runDownstream(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	m, err := connectivity.ReadFile(args[0])
	if err != nil {
		return err
	}

	classTable, err := dataset.LoadClassification(cfg.Classification)
	if err != nil {
		return err
	}

	classes, err := connectivity.DownstreamClasses(m, classTable)
	if err != nil {
		return err
	}

	fmt.Printf("Neurons: %d\n", m.Len())
	fmt.Printf("Connections: %d\n", m.TotalConnections())
	fmt.Printf("Downstream classes (%d): %s\n", len(classes), strings.Join(classes, ", "))

	return nil
}

func buildFromFiles(pathA, pathB string) (*matrix.Matrix, *matrix.Matrix, error) {
	a, err := connectivity.ReadFile(pathA)
	if err != nil {
		return nil, nil, err
	}
	b, err := connectivity.ReadFile(pathB)
	if err != nil {
		return nil, nil, err
	}

	opts := matrix.Options{SumDuplicates: flagSum}
	return matrix.Build(a, b, opts), matrix.Build(b, a, opts), nil
}

func normalizeMatrix(m *matrix.Matrix, label string) error {
	err := m.Normalize()
	if errors.Is(err, matrix.ErrEmptyMatrix) {
		return fmt.Errorf("%s: %w (nothing to normalize)", label, err)
	}
	return err
}

func runPlotSingle(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	m, err := connectivity.ReadFile(args[0])
	if err != nil {
		return err
	}

	mat := matrix.Build(m, m, matrix.Options{SumDuplicates: flagSum})
	if flagNormalize {
		if err := normalizeMatrix(mat, args[0]); err != nil {
			return err
		}
	}

	img := render.Heatmap(mat, cfg.Cell)
	if err := render.WritePNG(flagPlotOut, img); err != nil {
		return err
	}

	fmt.Printf("%dx%d matrix -> %s\n", mat.Rows(), mat.Cols(), flagPlotOut)
	return nil
}

func runPlotPair(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ab, ba, err := buildFromFiles(args[0], args[1])
	if err != nil {
		return err
	}

	if flagNormalize {
		if err := normalizeMatrix(ab, args[0]+" -> "+args[1]); err != nil {
			return err
		}
		if err := normalizeMatrix(ba, args[1]+" -> "+args[0]); err != nil {
			return err
		}
	}

	img := render.Pair(ab, ba, cfg.Cell)
	if err := render.WritePNG(flagPlotOut, img); err != nil {
		return err
	}

	fmt.Printf("%dx%d and %dx%d matrices -> %s\n",
		ab.Rows(), ab.Cols(), ba.Rows(), ba.Cols(), flagPlotOut)
	return nil
}

func runMapsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dir := flagMapsDir
	if dir == "" {
		dir = cfg.OutDir
	}

	matches, err := doublestar.Glob(os.DirFS(dir), flagMapsPattern)
	if err != nil {
		return fmt.Errorf("globbing %s: %w", flagMapsPattern, err)
	}
	if len(matches) == 0 {
		fmt.Println("No map files found.")
		return nil
	}

	for _, name := range matches {
		path := filepath.Join(dir, name)
		m, err := connectivity.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping %s: %v\n", name, err)
			continue
		}
		sum, err := digest.FileHex(path)
		if err != nil {
			return err
		}
		fmt.Printf("%s  %d neurons  %d connections  %s\n",
			name, m.Len(), m.TotalConnections(), sum[:12])
	}

	return nil
}

func runRunsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cat, err := catalog.Open(cfg.OutDir)
	if err != nil {
		return err
	}
	defer cat.Close()

	runs, err := cat.ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No extraction runs recorded.")
		return nil
	}

	for _, r := range runs {
		fmt.Printf("%s  %-12s class=%s  neurons=%d  connections=%d  map=%s (%s)\n",
			shortID(r.ID), r.Region, r.Class, r.Neurons, r.Connections,
			r.MapPath, r.MapDigest[:12])
	}

	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
