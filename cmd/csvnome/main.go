package main

import (
	"os"

	"github.com/JonMunkholm/csvnome/cmd/csvnome/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
