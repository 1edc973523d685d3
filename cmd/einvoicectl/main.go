package main

import (
	"os"

	"github.com/jhoicas/einvoice-gateway/cmd/einvoicectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
