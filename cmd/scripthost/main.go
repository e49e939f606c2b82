// Command scripthost runs script programs and their entity scripts.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/scripthost/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
