// Command geolocate replays location scenarios against the geolocation
// controller.
package main

import (
	"fmt"
	"os"

	"github.com/go-drift/geolocation/cmd/geolocate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
