// Command momoso holds operator tooling for the Momoso API: key
// generation, development tokens and batch transcription.
package main

import (
	"log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
