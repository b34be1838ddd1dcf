// turbodownload is a resilient, resumable parallel file downloader.
package main

import (
	"os"

	"github.com/rescale-labs/turbodownload/internal/cli"
	"github.com/rescale-labs/turbodownload/internal/version"
)

// Version and BuildTime are overridden via -ldflags at build time.
var (
	Version   = version.Version
	BuildTime = version.BuildTime
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
