package supervisor

import "errors"

var errInstalledBaseDirRequired = errors.New("installed base dir must be provided")
