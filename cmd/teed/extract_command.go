package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brettericmartin/teed-sub011/internal/aggregate"
	"github.com/brettericmartin/teed-sub011/internal/evidence"
	"github.com/brettericmartin/teed-sub011/internal/pipeline"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var (
		title           string
		descriptionFile string
		transcriptFile  string
		frames          []string
		frameURLs       []string
		skipDescription bool
		skipTranscript  bool
		skipFrames      bool
		maxFrames       int
		asJSON          bool
		tuning          tuningFlags
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract products from a video's description, transcript, and frames",
		Example: `  teed extract --title "What's in my bag 2024" --description-file desc.txt --transcript-file captions.txt
  teed extract --transcript-file captions.txt --frame still1.jpg --frame still2.jpg --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			description, err := readOptionalFile(descriptionFile)
			if err != nil {
				return fmt.Errorf("read description: %w", err)
			}
			transcript, err := readOptionalFile(transcriptFile)
			if err != nil {
				return fmt.Errorf("read transcript: %w", err)
			}
			in := aggregate.Input{
				Title:              title,
				Description:        description,
				Transcript:         transcript,
				IncludeDescription: !skipDescription,
				IncludeTranscript:  !skipTranscript,
				IncludeFrames:      !skipFrames,
				MaxFrames:          maxFrames,
			}
			for _, path := range frames {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read frame %s: %w", path, err)
				}
				in.Frames = append(in.Frames, evidence.Item{Kind: evidence.KindImage, Ref: path, Data: data})
			}
			for _, raw := range frameURLs {
				in.Frames = append(in.Frames, evidence.Item{Kind: evidence.KindImageURL, Ref: raw, URL: raw})
			}
			if strings.TrimSpace(in.Description) == "" && strings.TrimSpace(in.Transcript) == "" && len(in.Frames) == 0 {
				return errors.New("provide a description, transcript, or at least one frame")
			}

			return ctx.withPipeline(cmd.Context(), func(p *pipeline.Pipeline) error {
				resp, err := p.Extract(cmd.Context(), pipeline.ExtractRequest{Input: in, Tuning: tuning.tuning()})
				if err != nil {
					return err
				}
				if wantJSON(cmd, asJSON) {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Content type: %s\n", resp.Extraction.ContentType)
				fmt.Fprintf(out, "Channels: description=%s transcript=%s frames=%s\n",
					yesNo(resp.Extraction.Sources.Description),
					yesNo(resp.Extraction.Sources.Transcript),
					yesNo(resp.Extraction.Sources.Frames))
				renderProducts(out, resp.Products)
				renderWarnings(out, resp.Warnings)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Content title")
	cmd.Flags().StringVar(&descriptionFile, "description-file", "", "File holding the content description")
	cmd.Flags().StringVar(&transcriptFile, "transcript-file", "", "File holding the transcript")
	cmd.Flags().StringArrayVar(&frames, "frame", nil, "Local frame image (repeatable)")
	cmd.Flags().StringArrayVar(&frameURLs, "frame-url", nil, "Remote frame image URL (repeatable)")
	cmd.Flags().BoolVar(&skipDescription, "skip-description", false, "Ignore the description channel")
	cmd.Flags().BoolVar(&skipTranscript, "skip-transcript", false, "Ignore the transcript channel")
	cmd.Flags().BoolVar(&skipFrames, "skip-frames", false, "Ignore the frames channel")
	cmd.Flags().IntVar(&maxFrames, "max-frames", 0, "Maximum frames analysed (0 uses the configured cap)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	tuning.register(cmd)
	return cmd
}

func readOptionalFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
