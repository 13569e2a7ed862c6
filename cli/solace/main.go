package main

import (
	"os"

	solacecmder "github.com/solacelabs/solace/cmd/solace"
)

func main() {
	cmd := solacecmder.NewSolaceCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
