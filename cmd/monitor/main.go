// Package main provides the entry point for the governance proposal monitor.
package main

import (
	"fmt"
	"os"
)

func main() {
	rootCmd.AddCommand(networksCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
