package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rescale-labs/turbodownload/internal/constants"
)

func newDownloadCmd() *cobra.Command {
	opts := downloadOptions{}

	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Download a file over HTTP(S) range requests",
		Long: `Downloads a single large file, splitting it into chunks transferred
with bounded concurrency. A manifest is written alongside the
destination file so an interrupted download can be resumed by running
the same command again (see also: turbodownload resume).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.url = args[0]
			if opts.output == "" {
				return fmt.Errorf("--output is required")
			}
			return executeDownload(GetContext(), opts, GetLogger())
		},
	}

	addDownloadFlags(cmd, &opts)
	return cmd
}

// newResumeCmd is a thin alias of download: resumption is automatic
// whenever a matching manifest exists next to the destination file, so
// running the download command again already resumes. The separate
// name exists for discoverability and to make --no-resume's override
// intent explicit at the call site.
func newResumeCmd() *cobra.Command {
	opts := downloadOptions{}

	cmd := &cobra.Command{
		Use:   "resume <url>",
		Short: "Resume a previously interrupted download",
		Long: `Equivalent to "download", but documents intent: if a manifest left by
a prior run matches the probed resource, only the remaining chunks are
transferred. If no manifest is found, this starts a fresh download.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.url = args[0]
			if opts.output == "" {
				return fmt.Errorf("--output is required")
			}
			return executeDownload(GetContext(), opts, GetLogger())
		},
	}

	addDownloadFlags(cmd, &opts)
	return cmd
}

func addDownloadFlags(cmd *cobra.Command, opts *downloadOptions) {
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Destination file path (required)")
	cmd.Flags().Int64Var(&opts.chunkSize, "chunk-size", constants.DefaultChunkSize, "Bytes per chunk")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", constants.DefaultConcurrency, "Maximum parallel chunk transfers")
	cmd.Flags().IntVar(&opts.retryCount, "retry-count", constants.DefaultRetryCount, "Retries per chunk, beyond the initial attempt")
	cmd.Flags().BoolVar(&opts.noResume, "no-resume", false, "Do not write or honor a resume manifest")

	cmd.Flags().StringVar(&opts.ctrKeyHex, "decrypt-key", "", "Hex-encoded AES-256 key: decrypt the source with seekable AES-CTR")
	cmd.Flags().StringVar(&opts.ctrIVHex, "decrypt-iv", "", "Hex-encoded 16-byte IV for --decrypt-key")

	cmd.Flags().StringVar(&opts.cbcChainKeyHex, "cbc-chain-key", "", "Hex-encoded AES-256 key: decrypt the source as chained-CBC parts (forces --concurrency=1)")
	cmd.Flags().StringVar(&opts.cbcChainIVHex, "cbc-chain-iv", "", "Hex-encoded 16-byte initial IV for --cbc-chain-key")
	cmd.Flags().Int64Var(&opts.cbcPartSize, "cbc-chain-part-size", 0, "Ciphertext size of each chained-CBC part, in bytes")
	cmd.Flags().Int64Var(&opts.cbcTotalSize, "cbc-chain-total-size", 0, "Total ciphertext size of the chained-CBC source, in bytes")
}
