package main

import (
	"os"

	"github.com/dl-alexandre/dirsync/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
