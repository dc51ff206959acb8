package main

import (
	"os"
	sys "os"
)

func helper() {
	os.Exit(2)
}

func main() {
	defer helper()

	os.Exit(1)  // want "avoid using os.Exit in main.main"
	sys.Exit(1) // want "avoid using os.Exit in main.main"

	go func() {
		os.Exit(3)
	}()
}
