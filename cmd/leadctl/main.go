// Command leadctl inspects the conversation log: visitor analytics, session
// transcripts and CSV exports.
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
