package main

import (
	"fmt"
	"os"

	"github.com/ariefcatur/go-shopora-console/internal/config"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if err := newRootCmd(cfg.BackendURL, os.Getenv("SHOPORA_TOKEN"), cfg.RequestTimeout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
