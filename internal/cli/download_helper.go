package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	crypto "github.com/rescale-labs/turbodownload/internal/crypto"
	"github.com/rescale-labs/turbodownload/internal/download"
	"github.com/rescale-labs/turbodownload/internal/events"
	"github.com/rescale-labs/turbodownload/internal/logging"
	"github.com/rescale-labs/turbodownload/internal/pathutil"
	"github.com/rescale-labs/turbodownload/internal/progress"
	"github.com/rescale-labs/turbodownload/internal/transfer"
	"github.com/rescale-labs/turbodownload/internal/validation"
)

// downloadOptions collects the flags shared by the download and resume
// commands into the shape executeDownload needs.
type downloadOptions struct {
	url         string
	output      string
	chunkSize   int64
	concurrency int
	retryCount  int
	noResume    bool

	ctrKeyHex string
	ctrIVHex  string

	cbcChainKeyHex string
	cbcChainIVHex  string
	cbcPartSize    int64
	cbcTotalSize   int64
}

// executeDownload runs a single download to completion, wiring a
// transfer.Task to the CLI progress bar and the global logger's event
// subscription. It mirrors a decrypting transform onto the session when
// the caller asked for one.
func executeDownload(ctx context.Context, opts downloadOptions, logger *logging.Logger) error {
	if err := validation.ValidateFilePath(opts.output); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}

	outputPath, err := pathutil.ResolveAbsolutePath(opts.output)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	transform, concurrencyOverride, chunkSizeOverride, err := buildTransform(opts)
	if err != nil {
		return fmt.Errorf("build transform: %w", err)
	}
	concurrency := opts.concurrency
	if concurrencyOverride > 0 {
		concurrency = concurrencyOverride
	}
	chunkSize := opts.chunkSize
	if chunkSizeOverride > 0 {
		chunkSize = chunkSizeOverride
	}

	bus := events.NewEventBus(0)
	defer bus.Close()
	logger.BindEventBus(bus)

	task := transfer.NewTask(filepath.Base(outputPath), opts.url, outputPath)
	task.Config.ChunkSize = chunkSize
	task.Config.Concurrency = concurrency
	task.Config.RetryCount = download.IntPtr(opts.retryCount)
	task.Config.TransformStream = transform
	if opts.noResume {
		task.Config.CanBeResumed = download.BoolPtr(false)
	}

	bar := progress.NewCLIProgress()
	started := false

	progressSub := bus.Subscribe(events.EventPlanReady)
	go func() {
		for ev := range progressSub {
			plan, ok := ev.(*events.PlanEvent)
			if !ok || started {
				continue
			}
			started = true
			if plan.TotalSize >= 0 {
				bar.Start(plan.TotalSize, "downloading "+task.Name)
			} else {
				bar.Start(0, "downloading "+task.Name)
			}
		}
	}()

	chunkSub := bus.Subscribe(events.EventChunkProgress)
	go func() {
		for ev := range chunkSub {
			if c, ok := ev.(*events.ChunkEvent); ok && started {
				bar.Update(c.Downloaded)
			}
		}
	}()

	logger.Info().Str("url", opts.url).Str("dest", outputPath).Msg("starting download")

	runErr := task.Run(ctx, bus)

	if runErr != nil {
		bar.Error(runErr)
		return runErr
	}

	bar.Finish()
	logger.Info().Str("dest", outputPath).Msg("download complete")
	return nil
}

// buildTransform constructs the optional stream transform a download
// session should apply, from whichever set of decrypt flags the caller
// supplied. It returns a forced concurrency override and chunk-size
// override (0 meaning "no override") since the chained-CBC transform
// only tolerates sequential, single-worker chunk delivery aligned to
// its own part size.
func buildTransform(opts downloadOptions) (t download.Transform, concurrencyOverride int, chunkSizeOverride int64, err error) {
	switch {
	case opts.ctrKeyHex != "":
		key, err := decodeHexKey(opts.ctrKeyHex, crypto.KeySize)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("--decrypt-key: %w", err)
		}
		iv, err := decodeHexKey(opts.ctrIVHex, crypto.IVSize)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("--decrypt-iv: %w", err)
		}
		ct, err := crypto.NewCTRTransform(key, iv)
		if err != nil {
			return nil, 0, 0, err
		}
		return ct, 0, 0, nil

	case opts.cbcChainKeyHex != "":
		key, err := decodeHexKey(opts.cbcChainKeyHex, crypto.KeySize)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("--cbc-chain-key: %w", err)
		}
		iv, err := decodeHexKey(opts.cbcChainIVHex, crypto.IVSize)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("--cbc-chain-iv: %w", err)
		}
		if opts.cbcPartSize <= 0 {
			return nil, 0, 0, fmt.Errorf("--cbc-chain-part-size is required with --cbc-chain-key")
		}
		if opts.cbcTotalSize <= 0 {
			return nil, 0, 0, fmt.Errorf("--cbc-chain-total-size is required with --cbc-chain-key")
		}
		ct, err := crypto.NewCBCChainTransform(key, iv, opts.cbcPartSize, opts.cbcTotalSize)
		if err != nil {
			return nil, 0, 0, err
		}
		return ct, 1, opts.cbcPartSize, nil

	default:
		return nil, 0, 0, nil
	}
}

func decodeHexKey(s string, size int) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != size {
		return nil, fmt.Errorf("expected %d bytes, got %d", size, len(b))
	}
	return b, nil
}
