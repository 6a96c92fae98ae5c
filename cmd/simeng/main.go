// Command simeng is a thin harness: it loads a YAML config, builds one
// out-of-order core, and ticks it for a fixed number of cycles. CLI/config
// parsing is explicitly out of the library's scope; this exists only to
// exercise internal/core end to end, grounded on
// sarchlab-akita/akita/cmd's cobra root-command shape.
package main

import (
	"os"

	"github.com/jamestiotio/SimEng/cmd/simeng/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
