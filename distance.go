/*
Copyright © 2024 the geotag authors.
This file is part of geotag.

geotag is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

geotag is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with geotag.  If not, see <http://www.gnu.org/licenses/>.
*/

package geotag

import "math"

// earthRadiusKm is the mean radius of the Earth in kilometers, used for
// great-circle distance calculations.
const earthRadiusKm = 6371.0088

// Coord is an immutable decimal-degree latitude/longitude pair. Lat must be
// in [-90, 90]; Lon must be in (-180, 180].
type Coord struct {
	Lat float64
	Lon float64
}

// Valid reports whether c's coordinates fall within the documented ranges.
func (c Coord) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon > -180 && c.Lon <= 180
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }

// DistanceKm returns the great-circle distance in kilometers between c and
// o using the Haversine formula, which is equivalent to the spherical law
// of cosines to about five significant digits and avoids the precision
// loss the law of cosines suffers for very small angles.
func (c Coord) DistanceKm(o Coord) float64 {
	lat1, lat2 := degToRad(c.Lat), degToRad(o.Lat)
	dLat := lat2 - lat1
	dLon := degToRad(o.Lon - c.Lon)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	a = math.Min(1, math.Max(0, a))
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
