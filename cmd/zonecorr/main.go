// Command zonecorr serves the zone correction API and runs one-shot computations.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
