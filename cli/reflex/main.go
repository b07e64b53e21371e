package main

import (
	"os"

	reflexcmder "github.com/papercomputeco/reflex/cmd/reflex"
)

func main() {
	cmd := reflexcmder.NewReflexCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
