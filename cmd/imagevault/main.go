package main

import (
	"log"

	"imagevault/cmd/imagevault/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		log.Fatal(err)
	}
}
