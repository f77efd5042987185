package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"studio/internal/config"
	"studio/internal/contenttypes"
	"studio/internal/core"
)

// NewScrapeCmd creates the scrape command
func NewScrapeCmd() *cobra.Command {
	var showTitle bool

	cmd := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Print the readable text of a web page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cache := openPageCache(cfg)
			if cache != nil {
				defer cache.Close()
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			page, err := newFetcher(cfg, cache, nil).Fetch(ctx, args[0])
			if err != nil {
				return err
			}
			if showTitle && page.Title != "" {
				fmt.Printf("# %s\n\n", page.Title)
			}
			fmt.Println(page.Text)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showTitle, "title", true, "Print the page title as a heading")
	return cmd
}

// NewSweepCmd creates the sweep command, which publishes due posts once
func NewSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Publish every scheduled LinkedIn post that is due",
		Long: `Run one scheduled publish sweep, the same work the cron endpoint does.

The sweep takes the shared lease (Redis when redis.url is set), so it never
overlaps a sweep running in the server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			db, err := getDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			locker, closeLocker, err := newLocker(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to connect to redis: %w", err)
			}
			defer closeLocker()

			pub := newPublishing(cfg, db, contenttypes.Default(), locker, nil)
			result, err := pub.publisher.Sweep(ctx)
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}

// NewTypesCmd creates the types command listing the content-type registry
func NewTypesCmd() *cobra.Command {
	var platform string

	cmd := &cobra.Command{
		Use:   "types",
		Short: "List content types and tones",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := contenttypes.Default()
			platforms := []core.Platform{core.PlatformInstagram, core.PlatformLinkedIn, core.PlatformNewsletter}
			if platform != "" {
				p := core.Platform(platform)
				if !p.Valid() {
					return fmt.Errorf("unknown platform %q", platform)
				}
				platforms = []core.Platform{p}
			}

			for _, p := range platforms {
				fmt.Printf("%s (default count %d)\n", p, contenttypes.DefaultCount(p))
				for _, t := range registry.List(p) {
					fields := strings.Join(t.Fields, ", ")
					if t.Custom {
						fields = "custom"
					}
					fmt.Printf("  %s %-22s %s [%s]\n", t.Icon, t.Key, t.Name, fields)
				}
				fmt.Println()
			}

			fmt.Println("Tones:")
			for _, tone := range contenttypes.Tones() {
				fmt.Printf("  %-14s %s\n", tone.ID, tone.Description)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", "", "Only list one platform")
	return cmd
}
