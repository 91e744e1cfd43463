// Package main implements the stepmerger CLI.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/stepworks/stepmerger/pkg/assembly"
	"github.com/stepworks/stepmerger/pkg/config"
	"github.com/stepworks/stepmerger/pkg/logging"
	"github.com/stepworks/stepmerger/pkg/merge"
	"github.com/stepworks/stepmerger/pkg/stepmap"
	"github.com/stepworks/stepmerger/pkg/ui"
)

var version = "0.1.0-alpha"

func main() {
	rootCmd := &cobra.Command{
		Use:          "stepmerger",
		Short:        "stepmerger - merge STEP assemblies into one file",
		Version:      version,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			ui.PrintHelp(version)
		},
	}

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		ui.PrintHelp(version)
	})
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:   "help [command]",
		Short: "Help about any command",
		Run: func(cmd *cobra.Command, args []string) {
			ui.PrintHelp(version)
		},
	})

	rootCmd.AddCommand(mergeCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(mapCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of stepmerger",
		Run: func(cmd *cobra.Command, args []string) {
			ui.PrintVersionInfo(version)
		},
	}
}

func mergeCmd() *cobra.Command {
	var (
		assemblyPath   string
		outPath        string
		loadReferences bool
		implLevel      string
		schemas        []string
		mapPath        string
		watch          bool
	)

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge an assembly tree into a single STEP file",
		Long: `Merge reads an externally described assembly tree (JSON) and flattens it,
together with every STEP part file its nodes link to, into one AP203
exchange file with strictly increasing, non-colliding entity ids.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := &config.Config{
				Merge: config.MergeConfig{
					ImplementationLevel: implLevel,
					Schemas:             schemas,
					LoadReferences:      loadReferences,
				},
			}
			cfg, err := config.Load(overrides)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("load-references") {
				cfg.Merge.LoadReferences = loadReferences
			}

			if outPath == "" {
				outPath = defaultOutputPath(assemblyPath)
			}

			run := func() error {
				return runMerge(assemblyPath, outPath, mapPath, cfg)
			}

			if !watch {
				return run()
			}
			return watchAndMerge(assemblyPath, cfg, run)
		},
	}

	cmd.Flags().StringVar(&assemblyPath, "assembly", "", "Path to the assembly tree JSON file (required)")
	cmd.Flags().StringVar(&outPath, "out", "", "Output STEP file path (default: replace .json with .stp)")
	cmd.Flags().BoolVar(&loadReferences, "load-references", true, "Resolve and stitch in every node's linked part file")
	cmd.Flags().StringVar(&implLevel, "impl-level", "", "FILE_DESCRIPTION implementation level, e.g. 2;1")
	cmd.Flags().StringArrayVar(&schemas, "schema", nil, "FILE_SCHEMA identifier (repeatable)")
	cmd.Flags().StringVar(&mapPath, "map", "", "Write a source map for the merge to this path")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-run the merge when the assembly file or a linked part file changes")
	cmd.MarkFlagRequired("assembly")

	return cmd
}

func runMerge(assemblyPath, outPath, mapPath string, cfg *config.Config) error {
	out := ui.NewMergeOutput()
	out.PrintHeader(version)
	out.PrintFiles(assemblyPath, outPath)

	start := time.Now()

	tree, err := loadTree(assemblyPath)
	if err != nil {
		out.PrintStep(ui.Step{Name: "Load tree", Status: ui.StepError})
		out.PrintSummary(false, err.Error())
		return err
	}
	out.PrintMergeStart(len(tree.Nodes))
	out.PrintStep(ui.Step{Name: "Load tree", Status: ui.StepSuccess, Duration: time.Since(start)})

	sink, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer sink.Close()

	opts := merge.Options{
		LoadReferences:      cfg.Merge.LoadReferences,
		ImplementationLevel: cfg.Merge.ImplementationLevel,
		Filename:            filepath.Base(outPath),
		Schemas:             cfg.Merge.Schemas,
	}

	var builder *stepmap.Builder
	if mapPath != "" {
		builder = stepmap.NewBuilder(filepath.Base(outPath))
		opts.MapBuilder = builder
	}

	logger := logging.NewStd(os.Stderr, logging.ParseLevel(string(cfg.Log.Level)))
	mergeStart := time.Now()
	if err := merge.Merge(tree, fileResolver(assemblyPath), sink, opts, logger); err != nil {
		out.PrintStep(ui.Step{Name: "Merge", Status: ui.StepError, Duration: time.Since(mergeStart)})
		out.PrintSummary(false, err.Error())
		return err
	}
	out.PrintStep(ui.Step{Name: "Merge", Status: ui.StepSuccess, Duration: time.Since(mergeStart)})

	if builder != nil {
		data, err := builder.Encode()
		if err != nil {
			return fmt.Errorf("encoding source map: %w", err)
		}
		if err := os.WriteFile(mapPath, data, 0o644); err != nil {
			return fmt.Errorf("writing source map: %w", err)
		}
		out.PrintStep(ui.Step{Name: "Write map", Status: ui.StepSuccess})
	}

	out.PrintSummary(true, "")
	return nil
}

// fileResolver resolves a node's link relative to the assembly file's
// directory, matching the original's own file-relative link semantics.
func fileResolver(assemblyPath string) merge.Resolver {
	base := filepath.Dir(assemblyPath)
	return func(link string) (io.ReadCloser, error) {
		path := link
		if !filepath.IsAbs(path) {
			path = filepath.Join(base, link)
		}
		return os.Open(path)
	}
}

func loadTree(assemblyPath string) (*assembly.Tree, error) {
	f, err := os.Open(assemblyPath)
	if err != nil {
		return nil, fmt.Errorf("opening assembly tree: %w", err)
	}
	defer f.Close()
	return assembly.Load(f)
}

func defaultOutputPath(assemblyPath string) string {
	if strings.HasSuffix(assemblyPath, ".json") {
		return strings.TrimSuffix(assemblyPath, ".json") + ".stp"
	}
	return assemblyPath + ".stp"
}

func validateCmd() *cobra.Command {
	var assemblyPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check an assembly tree's child indices and links",
		Long: `Validate loads an assembly tree and checks the child-index invariant and
link reachability without performing a merge.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := loadTree(assemblyPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
				return err
			}

			problems := 0
			base := filepath.Dir(assemblyPath)
			for _, node := range tree.Nodes {
				if node.Link == nil {
					continue
				}
				path := *node.Link
				if !filepath.IsAbs(path) {
					path = filepath.Join(base, path)
				}
				if _, err := os.Stat(path); err != nil {
					fmt.Fprintf(os.Stderr, "node %q: link %q does not resolve: %v\n", node.Label, *node.Link, err)
					problems++
				}
			}

			if problems > 0 {
				return fmt.Errorf("%d link(s) failed to resolve", problems)
			}
			fmt.Printf("valid: %d node(s), 0 problems\n", len(tree.Nodes))
			return nil
		},
	}

	cmd.Flags().StringVar(&assemblyPath, "assembly", "", "Path to the assembly tree JSON file (required)")
	cmd.MarkFlagRequired("assembly")
	return cmd
}

func mapCmd() *cobra.Command {
	var genLine int

	cmd := &cobra.Command{
		Use:   "map [source-map-file]",
		Short: "Inspect a merge's source map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading source map: %w", err)
			}
			consumer, err := stepmap.Parse(data)
			if err != nil {
				return err
			}
			file, line, name, ok := consumer.Source(genLine)
			if !ok {
				return fmt.Errorf("no mapping found for output line %d", genLine)
			}
			fmt.Printf("line %d -> %s:%d (id %s)\n", genLine, file, line, name)
			return nil
		},
	}

	cmd.Flags().IntVar(&genLine, "line", 1, "Output line number to look up")
	return cmd
}

// watchAndMerge runs mergeOnce immediately, then again on every write to
// the assembly file or any of its nodes' linked part files, debounced by
// cfg's watch debounce.
func watchAndMerge(assemblyPath string, cfg *config.Config, mergeOnce func() error) error {
	if err := mergeOnce(); err != nil {
		fmt.Fprintf(os.Stderr, "merge failed: %v\n", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchTargets(watcher, assemblyPath); err != nil {
		return err
	}

	debounce := cfg.Watch.Debounce()
	var timer *time.Timer
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				fmt.Println("change detected, re-merging...")
				if err := mergeOnce(); err != nil {
					fmt.Fprintf(os.Stderr, "merge failed: %v\n", err)
					return
				}
				watcher.Remove(assemblyPath)
				addWatchTargets(watcher, assemblyPath)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watcher error: %v\n", err)
		}
	}
}

func addWatchTargets(watcher *fsnotify.Watcher, assemblyPath string) error {
	if err := watcher.Add(assemblyPath); err != nil {
		return fmt.Errorf("watching %q: %w", assemblyPath, err)
	}
	tree, err := loadTree(assemblyPath)
	if err != nil {
		return nil
	}
	base := filepath.Dir(assemblyPath)
	for _, node := range tree.Nodes {
		if node.Link == nil {
			continue
		}
		path := *node.Link
		if !filepath.IsAbs(path) {
			path = filepath.Join(base, path)
		}
		watcher.Add(path)
	}
	return nil
}
