package main

import (
	"github.com/spf13/cobra"

	"mvx/internal/services"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string
	var verboseFlag bool

	ctx := newCommandContext(&configFlag, &logLevelFlag, &verboseFlag)
	conv := &conversionFlags{}
	out := &outputFlags{}

	rootCmd := &cobra.Command{
		Use:   "mvx SOURCE DESTINATION",
		Short: "Move or convert a file based on the destination extension",
		Long: `mvx moves SOURCE to DESTINATION when both hold the same kind of content,
and converts it otherwise: audio/video through ffmpeg, images through
ImageMagick, office documents to PDF through LibreOffice. The destination is
only replaced once the new file is complete.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || len(args) == 2 {
				return nil
			}
			return services.Wrap(services.ErrInvalidOption, "cli", "args", "expected SOURCE and DESTINATION", nil)
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runConvert(cmd, ctx, args[0], args[1], conv, out)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")

	conv.register(rootCmd)
	out.register(rootCmd)

	rootCmd.AddCommand(newBatchCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newDepsCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))

	return rootCmd
}
