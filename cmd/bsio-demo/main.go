// Command bsio-demo exercises the thread pool, coroutines and reactor.
package main

import (
	"fmt"
	"os"
)

func main() {
	rc := newRootCommand(os.Stdout, os.Stderr)
	if err := rc.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
