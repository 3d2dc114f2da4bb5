package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/brettericmartin/teed-sub011/internal/evidence"
	"github.com/brettericmartin/teed-sub011/internal/pipeline"
)

type tuningFlags struct {
	fetchTimeout time.Duration
	earlyExit    float64
}

func (f *tuningFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.fetchTimeout, "fetch-timeout", 0, "Per-request page fetch timeout (capped at 60s)")
	cmd.Flags().Float64Var(&f.earlyExit, "early-exit", 0, "Confidence at which identification stops refining")
}

func (f *tuningFlags) tuning() *pipeline.Tuning {
	if f.fetchTimeout <= 0 && f.earlyExit <= 0 {
		return nil
	}
	return &pipeline.Tuning{FetchTimeout: f.fetchTimeout, EarlyExitConfidence: f.earlyExit}
}

func newIdentifyCommand(ctx *commandContext) *cobra.Command {
	var (
		urls      []string
		imageURLs []string
		images    []string
		text      string
		hint      string
		asJSON    bool
		tuning    tuningFlags
	)

	cmd := &cobra.Command{
		Use:   "identify",
		Short: "Identify products from URLs, images, or text",
		Example: `  teed identify --url https://www.titleist.com/golf-clubs/drivers/gt2
  teed identify --image bag.jpg --hint "golf bag dump"
  teed identify --text "Scotty Cameron Phantom X 5 putter" --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := identifyItems(urls, imageURLs, images, text)
			if err != nil {
				return err
			}
			return ctx.withPipeline(cmd.Context(), func(p *pipeline.Pipeline) error {
				resp, err := p.Identify(cmd.Context(), pipeline.Request{
					Evidence: items,
					Hint:     hint,
					Tuning:   tuning.tuning(),
				})
				if err != nil {
					return err
				}
				if wantJSON(cmd, asJSON) {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				renderProducts(out, resp.Products)
				renderCompleteness(out, resp.Completeness)
				renderWarnings(out, resp.Warnings)
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&urls, "url", nil, "Product page URL (repeatable)")
	cmd.Flags().StringArrayVar(&imageURLs, "image-url", nil, "Remote image URL (repeatable)")
	cmd.Flags().StringArrayVar(&images, "image", nil, "Local image file (repeatable)")
	cmd.Flags().StringVar(&text, "text", "", "Free-text product description")
	cmd.Flags().StringVar(&hint, "hint", "", "Context passed to image analysis")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	tuning.register(cmd)
	return cmd
}

func identifyItems(urls, imageURLs, images []string, text string) ([]evidence.Item, error) {
	items := make([]evidence.Item, 0, len(urls)+len(imageURLs)+len(images)+1)
	for _, path := range images {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read image %s: %w", path, err)
		}
		items = append(items, evidence.Item{Kind: evidence.KindImage, Ref: path, Data: data})
	}
	for _, raw := range imageURLs {
		items = append(items, evidence.Item{Kind: evidence.KindImageURL, Ref: raw, URL: raw})
	}
	for _, raw := range urls {
		items = append(items, evidence.Item{Kind: evidence.KindURL, Ref: raw, URL: raw})
	}
	if text != "" {
		items = append(items, evidence.Item{Kind: evidence.KindText, Ref: "text", Text: text})
	}
	if len(items) == 0 {
		return nil, errors.New("provide at least one --url, --image-url, --image, or --text")
	}
	return items, nil
}
