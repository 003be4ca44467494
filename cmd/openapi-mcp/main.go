package main

import (
	"os"

	"github.com/openapi-mcp/openapi-mcp/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
