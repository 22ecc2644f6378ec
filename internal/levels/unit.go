package levels

import (
	"fmt"
	"strings"

	"github.com/rtm0/era5fetch/internal/errs"
)

// Unit is the physical quantity the requested levels are expressed in. Each
// unit is bound to one column of the reference level table and to the units
// attribute written on the level coordinate of repaired files.
type Unit int

const (
	// UnitNone means no unit has been selected.
	UnitNone Unit = iota
	// Altitude is geopotential altitude in metres.
	Altitude
	// Pressure is half-level pressure in hectopascals.
	Pressure
	// Temperature is the standard-atmosphere temperature in kelvin.
	Temperature
	// ModelLevel is a raw model level number used as-is.
	ModelLevel
)

type unitInfo struct {
	name     string
	units    string
	longName string
	column   int
	aliases  []string
}

// Default columns follow the layout of the L137 model level table:
// n, a, b, ph, pf, geopotential altitude, geometric altitude, temperature,
// density.
var unitInfos = map[Unit]unitInfo{
	Altitude: {
		name:     "altitude",
		units:    "m",
		longName: "geopotential altitude",
		column:   5,
		aliases:  []string{"m", "geoaltitude"},
	},
	Pressure: {
		name:     "pressure",
		units:    "hPa",
		longName: "half-level pressure",
		column:   3,
		aliases:  []string{"hpa", "half-level"},
	},
	Temperature: {
		name:     "temperature",
		units:    "K",
		longName: "temperature",
		column:   7,
		aliases:  []string{"k"},
	},
	ModelLevel: {
		name:     "model",
		longName: "model level number",
		column:   -1,
		aliases:  []string{"ml", "model-level", "n"},
	},
}

// ParseUnit parses a unit by name ("altitude", "pressure", "temperature",
// "model") or by its units symbol ("m", "hPa", "K", "ml").
func ParseUnit(s string) (Unit, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return UnitNone, errs.Validation(errs.RuleUnit, "you must select a unit for the level")
	}
	for u, info := range unitInfos {
		if key == info.name {
			return u, nil
		}
		for _, a := range info.aliases {
			if key == a {
				return u, nil
			}
		}
	}
	return UnitNone, errs.Validation(errs.RuleUnit, "unknown level unit %q", s)
}

func (u Unit) String() string {
	if info, ok := unitInfos[u]; ok {
		return info.name
	}
	return fmt.Sprintf("Unit(%d)", int(u))
}

// Units returns the units attribute for the level coordinate: "m", "hPa",
// "K", or "" for model levels.
func (u Unit) Units() string { return unitInfos[u].units }

// LongName returns the long_name attribute for the level coordinate.
func (u Unit) LongName() string { return unitInfos[u].longName }

// Column returns the default reference table column for u, or -1 if u is
// not resolved against the table.
func (u Unit) Column() int {
	if info, ok := unitInfos[u]; ok {
		return info.column
	}
	return -1
}

// Physical reports whether u is resolved by nearest-value search.
func (u Unit) Physical() bool {
	return u == Altitude || u == Pressure || u == Temperature
}
