package main

import (
	"log"

	"github.com/ca-srg/searchguard/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
