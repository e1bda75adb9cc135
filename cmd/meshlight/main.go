// meshlight is a command line tool for Telink BLE mesh lamps.
//
// It builds and decodes protocol packets offline, dumps capture files and
// runs a controller against a simulated lamp.
//
// Usage:
//
//	meshlight [command] [flags]
//
// Example:
//
//	meshlight pair-packet --name unpaired --password 1234
//	meshlight encode --key 3c048be01d5756b9cfb9c7e0798f7871 -a A4:C1:38:01:02:03 Power 01
//	meshlight simulate power=on color=ff8000
package main

import (
	"os"

	"github.com/backkem/meshlight/cmd/meshlight/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
