package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hyperifyio/jobcrawler/internal/cache"
)

func newCacheCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or reset the seen-URL store and caches",
	}

	var list bool
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show seen-URL count and cache sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			seenPath := cfg.Resolve(cfg.SeenPath)
			seen, err := cache.OpenSeenSnapshot(cfg.SeenBackend, seenPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "seen store: %s (%s), %d URLs\n", seenPath, backendName(cfg.SeenBackend), seen.Len())
			if list {
				for _, u := range seen.URLs() {
					fmt.Fprintf(out, "  %s\n", u)
				}
			}
			dir := cfg.Resolve(cfg.CacheDir)
			for _, sub := range []string{"http", "llm"} {
				files, bytes, err := cache.DirStats(filepath.Join(dir, sub))
				if err != nil && !errors.Is(err, os.ErrNotExist) {
					return err
				}
				fmt.Fprintf(out, "%s cache: %s, %d files, %d bytes\n", sub, filepath.Join(dir, sub), files, bytes)
			}
			return nil
		},
	}

	statsCmd.Flags().BoolVar(&list, "list", false, "Print every seen URL")

	var keepSeen bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget every seen URL and empty the caches",
		Long: `Forget every seen URL and empty the page and score caches.

The next crawl will reconsider listings that earlier runs already scored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !keepSeen {
				seenPath := cfg.Resolve(cfg.SeenPath)
				if err := cache.RemoveSeenStore(seenPath); err != nil {
					return fmt.Errorf("remove seen store: %w", err)
				}
				fmt.Fprintf(out, "removed %s\n", seenPath)
			}
			dir := cfg.Resolve(cfg.CacheDir)
			if _, err := os.Stat(dir); err == nil {
				if err := cache.ClearDir(dir); err != nil {
					return fmt.Errorf("clear cache: %w", err)
				}
				fmt.Fprintf(out, "cleared %s\n", dir)
			}
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&keepSeen, "keep-seen", false, "Only clear the page and score caches")

	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}

func backendName(backend string) string {
	if backend == "" {
		return cache.BackendJSON
	}
	return backend
}
