package model

import "time"

// MarketZone is the fixed UTC+7 offset every operator-facing timestamp is
// rendered in. It is a display convention, not tz-database handling.
var MarketZone = time.FixedZone("UTC+7", 7*60*60)

// MarketNow returns the current instant expressed in MarketZone.
func MarketNow() time.Time { return time.Now().In(MarketZone) }

// Clock lets use cases be driven by a fake time source in tests.
type Clock func() time.Time
