// Package main is the entry point for vdash, a command line dashboard for a
// vehicle's odometer readings and fuel purchases.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
