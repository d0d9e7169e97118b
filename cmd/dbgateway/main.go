package main

import (
	"os"

	"github.com/malbeclabs/mcp-dbgateway/internal/cli"
)

func main() {
	os.Exit(int(cli.Run()))
}
