package main

import (
	"github.com/dszqbsm/scraper/cmd"
)

func main() {
	cmd.Execute()
}
