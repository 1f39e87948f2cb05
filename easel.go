package main

import (
	"github.com/easel-cloud/easel/cmd"
	"github.com/easel-cloud/easel/pkg/env"
	"github.com/easel-cloud/easel/pkg/log"
)

func main() {
	if err := env.Process(); err != nil {
		log.Fatal("environment failure", "error", err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal("easel failure", "error", err)
	}
}
