package main

import (
	"ocm.software/open-component-model/bindings/go/modelarchive/internal/cmd"
)

func main() {
	cmd.Execute()
}
