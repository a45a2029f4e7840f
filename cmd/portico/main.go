package main

import (
	"log"

	"github.com/MrSnakeDoc/portico/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatalf("portico failed to start: %v", err)
	}
	if err := a.Run(); err != nil {
		log.Fatalf("portico stopped: %v", err)
	}
}
