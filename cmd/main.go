package main

import (
	"os"

	"github.com/contexto-ai/contexto/cmd/contexto"
)

func main() {
	if err := contexto.Execute(); err != nil {
		os.Exit(1)
	}
}
