package main

import (
	"os"

	"github.com/weichenlin/twchip/cmd/twchip/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
