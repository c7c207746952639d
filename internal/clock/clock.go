// Package clock isolates time lookup so queue and event timestamps can be
// scripted in tests.
package clock

import "time"

// NowFunc supplies the current time. Tests swap it for a fixed or stepped
// clock.
var NowFunc = time.Now

// Now returns the time reported by NowFunc.
func Now() time.Time { return NowFunc() }
