package civiltime

import (
	"strings"
	"time"
	_ "time/tzdata"
)

// Zone is one of the supported timezone codes.
type Zone string

const (
	Pacific  Zone = "PT"
	Mountain Zone = "MT"
	Central  Zone = "CT"
	Eastern  Zone = "ET"
	UTC      Zone = "UTC"

	DefaultZone = Pacific
)

var zoneNames = map[Zone]string{
	Pacific:  "America/Los_Angeles",
	Mountain: "America/Denver",
	Central:  "America/Chicago",
	Eastern:  "America/New_York",
	UTC:      "UTC",
}

var locations = func() map[Zone]*time.Location {
	out := make(map[Zone]*time.Location, len(zoneNames))
	for code, name := range zoneNames {
		loc, err := time.LoadLocation(name)
		if err != nil {
			panic(err)
		}
		out[code] = loc
	}
	return out
}()

// Zones lists the supported codes.
func Zones() []Zone {
	return []Zone{Pacific, Mountain, Central, Eastern, UTC}
}

func (z Zone) Valid() bool {
	_, ok := zoneNames[z]
	return ok
}

// IANA returns the zone identifier for z, falling back to Pacific.
func (z Zone) IANA() string {
	return zoneNames[ResolveZone(string(z))]
}

// Location returns the loaded location for z, falling back to Pacific.
func (z Zone) Location() *time.Location {
	return locations[ResolveZone(string(z))]
}

// ResolveZone maps a code to a supported zone. Unknown or empty codes resolve
// to Pacific.
func ResolveZone(code string) Zone {
	z := Zone(strings.ToUpper(strings.TrimSpace(code)))
	if z.Valid() {
		return z
	}
	return DefaultZone
}

// ParseZone is the strict form used for user input. It accepts a supported
// code or the IANA name behind one.
func ParseZone(s string) (Zone, error) {
	trimmed := strings.TrimSpace(s)
	if z := Zone(strings.ToUpper(trimmed)); z.Valid() {
		return z, nil
	}
	for code, name := range zoneNames {
		if strings.EqualFold(name, trimmed) {
			return code, nil
		}
	}
	return "", &ParseError{Kind: "timezone", Input: s}
}
