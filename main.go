package main

import "github.com/quaverlab/quaver/internal/cli"

func main() {
	cli.Execute()
}
