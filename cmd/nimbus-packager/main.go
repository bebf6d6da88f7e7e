// Command nimbus-packager builds a signed update package and manifest from
// a local release folder.
package main

import "github.com/otterwire/nimbusupdate/cmd/nimbus-packager/cmd"

func main() {
	cmd.Execute()
}
