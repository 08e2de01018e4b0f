package main

import (
	"log"

	"volunteer-hub/cmd"
	_ "volunteer-hub/migrations"
)

func main() {
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
}
