package supervisor

import "strings"

// EnvVarName builds an AUTOUPDATER_<APP>_<SUFFIX> environment variable name
// for the given app name, uppercased per spec.
func EnvVarName(appName, suffix string) string {
	return envPrefix + strings.ToUpper(appName) + "_" + suffix
}
