// Package main provides the textclust command line and service entry point.
package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thebtf/textclust/internal/clustering"
	"github.com/thebtf/textclust/internal/config"
	"github.com/thebtf/textclust/internal/presets"
	"github.com/thebtf/textclust/internal/worker"
	"github.com/thebtf/textclust/pkg/models"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	var debug bool

	rootCmd := &cobra.Command{
		Use:           "textclust",
		Short:         "Cluster short texts with TF-IDF and classic clustering algorithms",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(debug)
		},
	}
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the clustering HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "List available clustering algorithms",
		Run: func(cmd *cobra.Command, args []string) {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMIN TEXTS\tDESCRIPTION")
			for _, m := range clustering.New().Models() {
				fmt.Fprintf(w, "%s\t%d\t%s\n", m.ID, m.MinDocuments, m.Description)
			}
			_ = w.Flush()
		},
	}

	var opts clusterOptions
	clusterCmd := &cobra.Command{
		Use:   "cluster",
		Short: "Cluster texts from a file or stdin",
		Long: "Cluster texts read from --input (one per line, or a JSON array of strings).\n" +
			"Use - to read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCluster(cmd.Context(), opts)
		},
	}
	clusterCmd.Flags().StringVar(&opts.algorithm, "algorithm", "", "Algorithm id (kmeans, agglomerative, dbscan)")
	clusterCmd.Flags().StringVar(&opts.preset, "preset", "", "Preset name from the presets file")
	clusterCmd.Flags().IntVar(&opts.k, "k", 0, "Number of clusters (kmeans, agglomerative)")
	clusterCmd.Flags().StringArrayVar(&opts.params, "param", nil, "Extra parameter as key=value (repeatable)")
	clusterCmd.Flags().StringVar(&opts.input, "input", "-", "Input file, or - for stdin")
	clusterCmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the full response as JSON")

	rootCmd.AddCommand(serveCmd, modelsCmd, clusterCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("textclust failed")
		os.Exit(1)
	}
}

// setupLogging logs to stderr so stdout stays usable for command output.
func setupLogging(debug bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})
}

func loadConfig() *config.Config {
	if err := config.EnsureAll(); err != nil {
		log.Warn().Err(err).Msg("Failed to ensure data directories")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
		cfg = config.Default()
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && zerolog.GlobalLevel() > zerolog.DebugLevel {
		zerolog.SetGlobalLevel(lvl)
	}
	return cfg
}

func runServe() error {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := worker.NewService(Version, cfg)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	return svc.Run(ctx)
}

type clusterOptions struct {
	algorithm  string
	preset     string
	input      string
	params     []string
	k          int
	jsonOutput bool
}

func runCluster(ctx context.Context, opts clusterOptions) error {
	cfg := loadConfig()

	texts, err := readTexts(opts.input)
	if err != nil {
		return err
	}
	params, err := parseParams(opts.params)
	if err != nil {
		return err
	}
	if opts.k > 0 {
		params["num_clusters"] = opts.k
	}

	registry, err := presets.Load(cfg.PresetsPath)
	if err != nil {
		return fmt.Errorf("load presets: %w", err)
	}
	pipeline := clustering.New(
		clustering.WithDefaults(clustering.Defaults{
			Algorithm:       cfg.DefaultAlgorithm,
			TopKeywords:     cfg.TopKeywords,
			MinKeywordRunes: cfg.MinKeywordLength,
			SummaryStyle:    cfg.SummaryStyle,
		}),
		clustering.WithPresets(registry),
		clustering.WithAlgorithms(cfg.Algorithms),
	)

	resp, err := pipeline.ClusterTexts(ctx, &models.ClusterRequest{
		AlgorithmID: opts.algorithm,
		Preset:      opts.preset,
		Texts:       texts,
		Params:      params,
	})
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printResponse(os.Stdout, resp)
	return nil
}

// readTexts reads a JSON array of strings, or one text per line.
func readTexts(path string) ([]string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		var texts []string
		if err := json.Unmarshal(trimmed, &texts); err != nil {
			return nil, fmt.Errorf("parse input: %w", err)
		}
		return texts, nil
	}

	var texts []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for scanner.Scan() {
		texts = append(texts, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return texts, nil
}

// parseParams turns key=value pairs into a parameter map. Values are read as
// YAML scalars or flow sequences, so 3, 0.5, true and [1,2] keep their types.
func parseParams(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q, expected key=value", pair)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

func printResponse(w io.Writer, resp *models.ClusterResponse) {
	fmt.Fprintf(w, "algorithm: %s  texts: %d  clusters: %d  noise: %d\n",
		resp.AlgorithmUsed, resp.TotalTexts, len(resp.Clusters), resp.NoiseCount)
	if resp.Metrics != nil {
		fmt.Fprintf(w, "silhouette: %.3f  davies-bouldin: %.3f  calinski-harabasz: %.3f\n",
			resp.Metrics.Silhouette, resp.Metrics.DaviesBouldin, resp.Metrics.CalinskiHarabasz)
	}
	for _, c := range resp.Clusters {
		fmt.Fprintf(w, "\n#%d  %d texts (%.1f%%)  %s\n", c.ID, c.Size, c.Percentage, strings.Join(c.Keywords, ", "))
		fmt.Fprintf(w, "  %s\n", c.Summary)
	}
}
