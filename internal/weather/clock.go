package weather

import "time"

// ICT is Indochina Time (UTC+7), the civil zone readings are recorded in.
var ICT = time.FixedZone("ICT", 7*60*60)

// Clock returns the current instant. Tests substitute a fixed clock.
type Clock func() time.Time

// Timestamp converts now to ICT, drops seconds and sub-seconds, and returns
// the wall clock with the offset stripped. The result is carried in
// time.UTC so database drivers store the digits verbatim.
func Timestamp(now time.Time) time.Time {
	local := now.In(ICT)
	return time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), local.Minute(), 0, 0, time.UTC)
}
