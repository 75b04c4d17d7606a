package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	vserrors "github.com/vango-dev/vserve/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┬  ┬┌─┐┌─┐┬─┐┬  ┬┌─┐
  └┐┌┘└─┐├┤ ├┬┘└┐┌┘├┤
   └┘ └─┘└─┘┴└─ └┘ └─┘
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "vserve",
		Short: "Runtime server for vserve applications",
		Long: `vserve serves a built application: static files, build output,
server middleware and rendered pages, on one or more endpoints.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		startCmd(),
		devCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		vserrors.Fprint(os.Stderr, err)
		os.Exit(1)
	}
}

// printBanner prints the ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}
