package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/evaders/hwid-sentinel/cmd"
)

func main() {
	// A .env file is optional; environment already set wins.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
