package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"hlscache/internal/config"
	"hlscache/internal/source"
)

func newSourceCommand(ctx *commandContext) *cobra.Command {
	sourceCmd := &cobra.Command{
		Use:   "source",
		Short: "Check the configured source backend",
	}
	sourceCmd.AddCommand(newSourceVerifyCommand(ctx))
	return sourceCmd
}

func newSourceVerifyCommand(ctx *commandContext) *cobra.Command {
	var key string
	var root string
	var depth int

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Fetch one source file and compare it with a reference copy",
		Long: "Pick a file from a reference tree (or use --key), fetch it through the configured " +
			"input backend, and compare SHA-256 digests. For filesystem input the reference " +
			"tree defaults to input.filesystem.source_dir.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, components, err := ctx.components("cli-source")
			if err != nil {
				return err
			}
			reference := strings.TrimSpace(root)
			if reference == "" && cfg.Input.Type == config.InputFilesystem {
				reference = cfg.Input.Filesystem.SourceDir
			}
			if reference == "" {
				return errors.New("--root is required for non-filesystem input")
			}
			reference, err = config.ExpandPath(reference)
			if err != nil {
				return err
			}

			sample := strings.TrimSpace(key)
			if sample == "" {
				sample, err = source.PickSample(reference, depth, nil)
				if err != nil {
					return err
				}
			}

			scratch, err := os.MkdirTemp(cfg.Paths.StateDir, "verify-")
			if err != nil {
				return fmt.Errorf("create scratch directory: %w", err)
			}
			defer os.RemoveAll(scratch)

			result, err := source.Verify(cmd.Context(), components.Fetcher, reference, sample, scratch)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backend:  %s\n", components.Fetcher.Name())
			fmt.Fprintf(out, "Sample:   %s (%s)\n", result.Key, humanBytes(result.Bytes))
			fmt.Fprintf(out, "Source:   %s\n", result.SourceDigest)
			fmt.Fprintf(out, "Fetched:  %s\n", result.FetchedDigest)
			fmt.Fprintf(out, "Match:    %s\n", yesNo(result.Match()))
			if !result.Match() {
				return fmt.Errorf("digest mismatch for %s", result.Key)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "Source key to verify instead of a random sample")
	cmd.Flags().StringVar(&root, "root", "", "Reference tree holding the expected source files")
	cmd.Flags().IntVar(&depth, "max-depth", source.DefaultSampleDepth, "Maximum directory levels to descend when sampling")
	return cmd
}
