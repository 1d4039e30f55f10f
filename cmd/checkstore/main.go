package main

import (
	"log"

	"github.com/MrSnakeDoc/checkstore/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatalf("❌ checkstore failed to start: %v", err)
	}
	if err := a.Run(); err != nil {
		log.Fatalf("❌ checkstore stopped with error: %v", err)
	}
}
