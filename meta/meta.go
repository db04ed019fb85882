// meta/meta.go
package meta

import "time"

// TICK is the duration of one simulation step.
const TICK = 32 * time.Millisecond

// MAX_TICKS stops a match that has not produced a winner.
const MAX_TICKS = 400000

// ARRIVAL_TIMEOUT_TICKS is how long the controller waits for ARRIVED before resending.
const ARRIVAL_TIMEOUT_TICKS = 3000

// MAX_RESENDS bounds MOVE resends before the controller snaps the piece into place.
const MAX_RESENDS = 2

const HTTP_ADDR = ":8080"

// NUM_GAMES per experiment configuration.
const NUM_GAMES = 10

const CROWN_PREFIX = "CROWN_"
