package supervisor

import "time"

// sleepRespawn is indirected so tests can shorten the re-spawn delay
// without waiting out the real duration.
var sleepRespawn = func() { time.Sleep(respawnSleep) }
