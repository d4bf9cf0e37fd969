// Command eventctl is the operator tool for the event bus and the read caches.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
