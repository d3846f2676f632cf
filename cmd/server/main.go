// Package main implements the entry point for the archiver server,
// which verifies the external links cited on wiki pages, finds archived
// snapshots for them and writes the archive links back into the page.
package main

import (
	"log"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}
