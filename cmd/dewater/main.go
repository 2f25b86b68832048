package main

import (
	"context"
	"os"

	"github.com/liamcoop/dewater/cmd/dewater/commands"
	"github.com/liamcoop/dewater/internal/logger"
)

func main() {
	err := commands.Execute()
	_ = logger.Shutdown(context.Background())
	if err != nil {
		os.Exit(1)
	}
}
