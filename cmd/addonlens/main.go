package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/addonlens/addonlens/pkg/mcp"
	"github.com/addonlens/addonlens/pkg/project"
	"github.com/addonlens/addonlens/pkg/registry"
	"github.com/addonlens/addonlens/pkg/util"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "scan":
		if err := runScan(args); err != nil {
			fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
			os.Exit(1)
		}
	case "serve":
		if err := runServe(args); err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	case "stats":
		if err := runStats(args); err != nil {
			fmt.Fprintf(os.Stderr, "stats failed: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("addonlens %s\n", version)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// buildRegistry assembles the store and registry from CLI args. Positional
// directory arguments take precedence over the yaml config: they become a
// one-shot static profile.
func buildRegistry(args []string) (*registry.Registry, project.Store, error) {
	logger := util.NewLogger(util.LoggerConfig{
		Level:  os.Getenv("ADDONLENS_LOG_LEVEL"),
		Format: os.Getenv("ADDONLENS_LOG_FORMAT"),
		Output: os.Stderr,
	})

	var configFlag string
	var dirs []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--config" && i+1 < len(args) {
			configFlag = args[i+1]
			i++
			continue
		}
		dirs = append(dirs, args[i])
	}

	var store project.Store
	if len(dirs) > 0 {
		store = &project.StaticStore{Roots: dirs}
	} else {
		fileStore, err := project.LoadFileStore(resolveConfigPath(configFlag), nil, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("load project config: %w", err)
		}
		store = fileStore
	}

	reg, err := registry.New(registry.Config{Store: store, Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	return reg, store, nil
}

func runScan(args []string) error {
	reg, _, err := buildRegistry(args)
	if err != nil {
		return err
	}

	if err := reg.Initialize(context.Background()); err != nil {
		return err
	}

	stats := reg.CacheStats()
	fmt.Printf("models:      %d (%d descriptors)\n", stats.UniqueModels, stats.ModelDescriptors)
	fmt.Printf("components:  %d (%d descriptors)\n", stats.UniqueComponents, stats.ComponentDescriptors)
	fmt.Printf("files:       %d\n", stats.TrackedFiles)
	return nil
}

func runServe(args []string) error {
	reg, store, err := buildRegistry(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := reg.Initialize(ctx); err != nil {
		return err
	}

	watcher, err := registry.NewWatcher(reg, registry.WatchOptions{}, util.NewLogger(util.DefaultLoggerConfig()))
	if err != nil {
		return err
	}
	if err := watcher.Start(store.ListSourceRoots()); err != nil {
		return err
	}
	defer watcher.Stop()

	return mcp.NewServer(reg).ServeStdio()
}

func runStats(args []string) error {
	reg, _, err := buildRegistry(args)
	if err != nil {
		return err
	}
	if err := reg.Initialize(context.Background()); err != nil {
		return err
	}

	stats := reg.CacheStats()
	fmt.Printf("initialized:        %v\n", stats.Initialized)
	fmt.Printf("refreshing:         %v\n", stats.Refreshing)
	fmt.Printf("model descriptors:  %d\n", stats.ModelDescriptors)
	fmt.Printf("unique models:      %d\n", stats.UniqueModels)
	fmt.Printf("components:         %d\n", stats.ComponentDescriptors)
	fmt.Printf("tracked files:      %d\n", stats.TrackedFiles)
	fmt.Printf("parse memo hits:    %d\n", stats.ParseMemoHits)
	fmt.Printf("parse memo misses:  %d\n", stats.ParseMemoMisses)
	return nil
}

func printUsage() {
	fmt.Println("Usage: addonlens <command> [dirs...] [--config path]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  scan       Scan addon source roots and print a summary")
	fmt.Println("  serve      Scan, watch for changes, and serve MCP on stdio")
	fmt.Println("  stats      Print registry cache statistics after a scan")
	fmt.Println("  version    Print version")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("Directories given as arguments override the project config;")
	fmt.Println("otherwise roots come from .addonlens/config.yaml (see --config).")
}
