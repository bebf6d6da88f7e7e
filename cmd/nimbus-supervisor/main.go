// Command nimbus-supervisor launches the most recent installed version of
// an application and keeps it updated according to the configured
// strategy.
package main

import "github.com/otterwire/nimbusupdate/cmd/nimbus-supervisor/cmd"

func main() {
	cmd.Execute()
}
