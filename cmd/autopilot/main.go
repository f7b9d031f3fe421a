package main

import (
	"fmt"
	"os"

	"github.com/simon020286/go-autopilot/logging"
)

func main() {
	err := rootCmd.Execute()
	if err != nil {
		if settings != nil {
			logger.Error("command failed", logging.ErrorFields(err)...)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
