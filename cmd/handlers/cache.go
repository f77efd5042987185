package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"studio/internal/config"
	"studio/internal/logger"
	"studio/internal/store"
)

// NewCacheCmd creates the page cache management command
func NewCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the scraped page cache",
		Long:  `Inspect, prune and clear the SQLite cache of scraped pages.`,
	}

	cacheCmd.AddCommand(newCacheStatsCmd())
	cacheCmd.AddCommand(newCacheCleanupCmd())
	cacheCmd.AddCommand(newCacheClearCmd())

	return cacheCmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPageCache(func(s *store.Store) error {
				stats, err := s.GetCacheStats()
				if err != nil {
					return fmt.Errorf("failed to get cache statistics: %w", err)
				}
				fmt.Println("📊 Cache Statistics")
				fmt.Printf("📄 Pages cached: %d\n", stats.PageCount)
				fmt.Printf("💾 Cache size: %.2f MB\n", float64(stats.CacheSize)/1024/1024)
				if !stats.LastUpdated.IsZero() {
					fmt.Printf("📅 Last updated: %s\n", stats.LastUpdated.Format("2006-01-02 15:04:05"))
				}
				return nil
			})
		},
	}
}

func newCacheCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove pages older than cache.page_ttl",
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl := config.Get().Cache.TTL()
			return withPageCache(func(s *store.Store) error {
				removed, err := s.CleanupOldCache(ttl)
				if err != nil {
					return fmt.Errorf("failed to clean up cache: %w", err)
				}
				fmt.Printf("🧹 Removed %d cached pages older than %s\n", removed, ttl)
				return nil
			})
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	var force bool

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached page",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force && !confirm("⚠️  This removes every cached page. Continue? [y/N]: ") {
				fmt.Println("Cache clear cancelled")
				return nil
			}
			return withPageCache(func(s *store.Store) error {
				if err := s.ClearCache(); err != nil {
					return fmt.Errorf("failed to clear cache: %w", err)
				}
				fmt.Println("✅ Cache cleared successfully")
				return nil
			})
		},
	}

	clearCmd.Flags().BoolVar(&force, "confirm", false, "Skip confirmation prompt")
	return clearCmd
}

func withPageCache(fn func(s *store.Store) error) error {
	cacheStore, err := store.NewStore(config.Get().Cache.Directory)
	if err != nil {
		return fmt.Errorf("failed to initialize cache store: %w", err)
	}
	defer func() {
		if err := cacheStore.Close(); err != nil {
			logger.Error("Failed to close cache store", err)
		}
	}()
	return fn(cacheStore)
}
