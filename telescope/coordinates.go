// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package telescope implements a mount capability layered next to the
// camera Device Core (spec.md's capability bitmask already reserves
// HasPierSide/HasTrackMode/CanPark without a component implementing
// them): coordinate conversion, slew/guide motion, parking/homing, and
// tracking-mode control. Grounded on original_source's
// src/device/indi/telescope/{coordinates,motion,parking,tracking}.
// {hpp,cpp}, translated from an INDI::BaseDevice-bound class family into
// a single devicecore.Component plus a pure-function coordinate helper,
// since Go has no analogue to the C++ classes' device_ pointer sharing.
package telescope

import (
	"math"
	"time"
)

// Equatorial is a right-ascension/declination pair.
type Equatorial struct {
	RAHours    float64
	DecDegrees float64
}

// Horizontal is an azimuth/altitude pair.
type Horizontal struct {
	AzDegrees  float64
	AltDegrees float64
}

// GeographicLocation is an observer's location on Earth.
type GeographicLocation struct {
	LatitudeDegrees  float64
	LongitudeDegrees float64
	ElevationMeters  float64
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
func radToDeg(r float64) float64 { return r * 180 / math.Pi }

// DegreesToHours converts an angle in degrees to hours (divide by 15).
func DegreesToHours(degrees float64) float64 { return degrees / 15 }

// HoursToDegrees converts hours to degrees (multiply by 15).
func HoursToDegrees(hours float64) float64 { return hours * 15 }

// DegreesToDMS splits a degree value into signed degrees, minutes and
// seconds.
func DegreesToDMS(degrees float64) (int, int, float64) {
	sign := 1.0
	if degrees < 0 {
		sign = -1
		degrees = -degrees
	}
	d := int(degrees)
	frac := (degrees - float64(d)) * 60
	m := int(frac)
	s := (frac - float64(m)) * 60
	return int(sign) * d, m, s
}

// DegreesToHMS splits a degrees-as-hours value (0-360) into hours,
// minutes and seconds.
func DegreesToHMS(degrees float64) (int, int, float64) {
	return DegreesToDMS(DegreesToHours(degrees))
}

// localSiderealTimeDegrees computes the local mean sidereal time, in
// degrees, for t at the given longitude, using the standard low-precision
// GMST polynomial (Meeus, ch. 12) plus longitude correction.
func localSiderealTimeDegrees(t time.Time, longitudeDegrees float64) float64 {
	t = t.UTC()
	jd := julianDay(t)
	d := jd - 2451545.0
	gmst := 280.46061837 + 360.98564736629*d
	lst := math.Mod(gmst+longitudeDegrees, 360)
	if lst < 0 {
		lst += 360
	}
	return lst
}

func julianDay(t time.Time) float64 {
	y, m := t.Year(), int(t.Month())
	d := float64(t.Day()) + (float64(t.Hour())+float64(t.Minute())/60+float64(t.Second())/3600)/24
	if m <= 2 {
		y--
		m += 12
	}
	a := y / 100
	b := 2 - a + a/4
	return math.Floor(365.25*float64(y+4716)) + math.Floor(30.6001*float64(m+1)) + d + float64(b) - 1524.5
}

// EquatorialToHorizontal converts an equatorial (apparent/JNow) position
// to Alt/Az for an observer at loc at time t.
func EquatorialToHorizontal(eq Equatorial, loc GeographicLocation, t time.Time) Horizontal {
	lst := localSiderealTimeDegrees(t, loc.LongitudeDegrees)
	ha := degToRad(lst - HoursToDegrees(eq.RAHours))
	dec := degToRad(eq.DecDegrees)
	lat := degToRad(loc.LatitudeDegrees)

	sinAlt := math.Sin(dec)*math.Sin(lat) + math.Cos(dec)*math.Cos(lat)*math.Cos(ha)
	alt := math.Asin(clamp(sinAlt, -1, 1))

	cosAz := (math.Sin(dec) - math.Sin(alt)*math.Sin(lat)) / (math.Cos(alt) * math.Cos(lat))
	az := math.Acos(clamp(cosAz, -1, 1))
	if math.Sin(ha) > 0 {
		az = 2*math.Pi - az
	}
	return Horizontal{AzDegrees: radToDeg(az), AltDegrees: radToDeg(alt)}
}

// HorizontalToEquatorial is the inverse of EquatorialToHorizontal.
func HorizontalToEquatorial(hz Horizontal, loc GeographicLocation, t time.Time) Equatorial {
	az := degToRad(hz.AzDegrees)
	alt := degToRad(hz.AltDegrees)
	lat := degToRad(loc.LatitudeDegrees)

	sinDec := math.Sin(alt)*math.Sin(lat) + math.Cos(alt)*math.Cos(lat)*math.Cos(az)
	dec := math.Asin(clamp(sinDec, -1, 1))

	cosHA := (math.Sin(alt) - math.Sin(dec)*math.Sin(lat)) / (math.Cos(dec) * math.Cos(lat))
	ha := math.Acos(clamp(cosHA, -1, 1))
	if math.Sin(az) > 0 {
		ha = 2*math.Pi - ha
	}

	lst := localSiderealTimeDegrees(t, loc.LongitudeDegrees)
	raDegrees := math.Mod(lst-radToDeg(ha), 360)
	if raDegrees < 0 {
		raDegrees += 360
	}
	return Equatorial{RAHours: DegreesToHours(raDegrees), DecDegrees: radToDeg(dec)}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
