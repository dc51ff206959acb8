package main

import (
	"log"

	"github.com/patric-chuzhbe/signup/internal/app"
)

func main() {
	theApp, err := app.New()
	if err != nil {
		log.Fatalf("failed to initialize app: %v", err)
	}
	defer theApp.Close()

	if err := theApp.Run(); err != nil {
		log.Printf("server stopped: %v", err)
	}
}
