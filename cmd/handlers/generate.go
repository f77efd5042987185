package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"studio/internal/config"
	"studio/internal/contenttypes"
	"studio/internal/core"
	"studio/internal/fetch"
	"studio/internal/generate"
	"studio/internal/logger"
)

type generateOptions struct {
	platform     string
	storyType    string
	tone         string
	count        int
	files        []string
	linksFile    string
	instructions []string
	custom       string
	fields       []string
	save         bool
}

// NewGenerateCmd creates the generate command
func NewGenerateCmd() *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate [source...]",
		Short: "Generate posts from text, URLs or files",
		Long: `Generate draft posts for one content type and print them as JSON.

Each argument is one source. Bare URLs are fetched and reduced to text.
Files given with --file are read as sources (PDFs are converted to text).
A --links-file is scanned for URLs, each becoming a source.

Examples:
  studio generate --type snabbtips "Anteckningar från mötet..."
  studio generate --platform linkedin --type tankeledare https://example.com/post
  studio generate --platform newsletter --type allman --file rapport.pdf --save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.platform, "platform", "p", string(core.PlatformInstagram), "Platform: instagram, linkedin or newsletter")
	cmd.Flags().StringVarP(&opts.storyType, "type", "t", "", "Content type key (see 'studio types')")
	cmd.Flags().StringVar(&opts.tone, "tone", core.DefaultTone, "Writing tone")
	cmd.Flags().IntVarP(&opts.count, "count", "n", 0, "Number of posts (default depends on platform)")
	cmd.Flags().StringSliceVarP(&opts.files, "file", "f", nil, "Read a source from a text, markdown or PDF file")
	cmd.Flags().StringVar(&opts.linksFile, "links-file", "", "Use every URL found in this file as a source")
	cmd.Flags().StringArrayVar(&opts.instructions, "instruction", nil, "Extra instruction appended to the prompt")
	cmd.Flags().StringVar(&opts.custom, "custom", "", "Free-form instructions for custom types")
	cmd.Flags().StringSliceVar(&opts.fields, "field", nil, "Output fields for custom types")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Store the generated posts as drafts")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func runGenerate(ctx context.Context, opts *generateOptions, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sources, err := collectSources(args, opts.files, opts.linksFile)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no sources given")
	}

	cache := openPageCache(cfg)
	if cache != nil {
		defer cache.Close()
	}
	registry := contenttypes.Default()
	generator, err := newGenerator(cfg, registry, newFetcher(cfg, cache, nil), nil)
	if err != nil {
		return err
	}

	posts, err := generator.Generate(ctx, generate.Request{
		StoryType:          opts.storyType,
		Platform:           core.Platform(opts.platform),
		Sources:            sources,
		Tone:               opts.tone,
		Count:              opts.count,
		Instructions:       opts.instructions,
		CustomInstructions: opts.custom,
		CustomFields:       opts.fields,
	})
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	if opts.save {
		db, err := getDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Posts().CreateMany(ctx, posts); err != nil {
			return fmt.Errorf("failed to save posts: %w", err)
		}
		logger.Info("Saved generated posts", "count", len(posts))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(posts)
}

// collectSources merges positional sources, files and URLs from a links file
func collectSources(args, files []string, linksFile string) ([]string, error) {
	sources := append([]string{}, args...)

	for _, path := range files {
		var (
			text string
			err  error
		)
		if strings.EqualFold(filepath.Ext(path), ".pdf") {
			text, err = fetch.ReadPDFFile(path)
		} else {
			var data []byte
			data, err = os.ReadFile(path)
			text = string(data)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read source %s: %w", path, err)
		}
		sources = append(sources, text)
	}

	if linksFile != "" {
		links, err := fetch.ReadLinksFromFile(linksFile)
		if err != nil {
			return nil, err
		}
		sources = append(sources, links...)
	}

	return sources, nil
}
