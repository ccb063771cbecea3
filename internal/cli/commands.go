package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gobeaver/cloudfs"
)

func (a *App) listCommand() *cobra.Command {
	var recursive, long bool
	cmd := &cobra.Command{
		Use:   "ls [dir]",
		Short: "List a directory",
		Long:  "List a directory. Without an argument the working directory is listed; \"/\" lists the backends.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := ""
			if len(args) == 1 {
				raw = args[0]
			}
			target, err := a.session.Resolve(raw)
			if err != nil {
				return err
			}
			if target.Root {
				var entries []listEntry
				for _, node := range a.session.Registry().ListRoot() {
					entries = append(entries, newListEntry(node))
				}
				return a.printer().entries(entries, long)
			}

			b, err := a.session.Backend(cmd.Context(), target.VirtualPath)
			if err != nil {
				return err
			}

			var entries []listEntry
			var listErr error
			for node, err := range cloudfs.List(cmd.Context(), b, target.Path, recursive) {
				if err != nil {
					listErr = err
					break
				}
				entries = append(entries, newListEntry(node))
			}
			if err := a.printer().entries(entries, long); err != nil {
				return err
			}
			if listErr != nil {
				return fmt.Errorf("list %s: %w", target.VirtualPath, listErr)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "List subdirectories recursively")
	cmd.Flags().BoolVarP(&long, "long", "l", false, "Show type, size and content type")
	return cmd
}

func (a *App) copyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cp <src> <dst>",
		Short: "Copy a file or directory without overwriting",
		Long: `Copy a file, or with a trailing "/" on <src> a whole directory, to <dst>.
Files that already exist at the destination are skipped, so an interrupted
copy can simply be run again.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, srcFS, err := a.resolve(ctx, args[0])
			if err != nil {
				return err
			}
			dst, dstFS, err := a.resolve(ctx, args[1])
			if err != nil {
				return err
			}

			a.logger.Info("copy started",
				zap.String("source", src.String()),
				zap.String("destination", dst.String()))

			report, copyErr := cloudfs.Copy(ctx, cloudfs.NewReadOnly(srcFS), src.Path, dstFS, dst.Path, a.pipelineOptions()...)
			if report != nil {
				if err := a.printer().copyReport(report); err != nil {
					return err
				}
			}
			return copyErr
		},
	}
}

func (a *App) compareCommand() *cobra.Command {
	var copts cloudfs.CompareOptions
	var algorithm string
	cmd := &cobra.Command{
		Use:   "compare <src> <dst>",
		Short: "Compare files under <src> with <dst>",
		Long: `Classify every file under <src> as source-only, different or identical
against the same relative path under <dst>. Identical files are hidden unless
--show-identical is set.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, srcFS, err := a.resolve(ctx, args[0])
			if err != nil {
				return err
			}
			dst, dstFS, err := a.resolve(ctx, args[1])
			if err != nil {
				return err
			}

			copts.Algorithm = cloudfs.ChecksumAlgorithm(algorithm)
			if algorithm == "" {
				copts.Algorithm = cloudfs.ChecksumAlgorithm(a.backendCfg.HashAlgorithm)
			}

			var items []cloudfs.CompareItem
			var errs []error
			for item, err := range cloudfs.Compare(ctx, cloudfs.NewReadOnly(srcFS), src.Path, cloudfs.NewReadOnly(dstFS), dst.Path, copts, a.pipelineOptions()...) {
				if err != nil {
					errs = append(errs, err)
					continue
				}
				items = append(items, item)
			}
			if err := a.printer().compareItems(items); err != nil {
				return err
			}
			return errors.Join(errs...)
		},
	}
	flags := cmd.Flags()
	flags.BoolVarP(&copts.Recursive, "recursive", "r", false, "Compare subdirectories recursively")
	flags.BoolVar(&copts.ShowIdentical, "show-identical", false, "Also report identical files")
	flags.BoolVar(&copts.IgnoreContentType, "ignore-content-type", false, "Do not compare content types")
	flags.StringVar(&algorithm, "algorithm", "", "Hash algorithm: md5, sha1, sha256, sha512, crc32 or xxhash")
	return cmd
}

func (a *App) backendsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the known backend ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printer().lines(a.session.Registry().IDs())
		},
	}
}
