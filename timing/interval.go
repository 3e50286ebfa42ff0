package timing

import "time"

const (
	LivenessTTL       = time.Minute
	LookupPositiveTTL = time.Second * 30
	LookupFailedTTL   = time.Second * 3
	LookupRetryDelay  = time.Millisecond * 250
)
