package main

import (
	"os"

	"github.com/ssandoval/treasury-cli/internal/app"
)

func main() {
	runner := app.NewRunner()
	os.Exit(runner.Run(os.Args[1:]))
}
