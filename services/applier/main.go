package main

import (
	"os"

	"github.com/busgeo/route-geocoder/services/applier/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
