package main

import (
	"studio/cmd/handlers"
	"studio/internal/logger"
)

func main() {
	logger.Init()
	defer logger.Sync()
	handlers.Execute()
}
