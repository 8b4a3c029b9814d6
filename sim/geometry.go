package sim

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the sphere radius used for every great-circle distance.
const EarthRadiusKm = 6371.0

// GreatCircle returns the distance in kilometres between two points given in
// degrees, using the spherical law of cosines.
func GreatCircle(lon1, lat1, lon2, lat2 float64) float64 {
	if lon1 == lon2 && lat1 == lat2 {
		return 0
	}
	phi1, phi2 := radians(lat1), radians(lat2)
	dLambda := radians(lon2 - lon1)
	cos := math.Sin(phi1)*math.Sin(phi2) + math.Cos(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	// rounding can push identical points slightly above 1
	cos = math.Max(-1, math.Min(1, cos))
	return EarthRadiusKm * math.Acos(cos)
}

// GreatCircleMatrix computes the symmetric N×N distance matrix (km) for the
// given parallel longitude/latitude slices. The diagonal is exactly zero.
func GreatCircleMatrix(lon, lat []float64) ([][]float64, error) {
	if len(lon) != len(lat) {
		return nil, fmt.Errorf("longitude/latitude length mismatch: %d vs %d", len(lon), len(lat))
	}
	for i := range lon {
		if !isFinite(lon[i]) || !isFinite(lat[i]) {
			return nil, fmt.Errorf("coordinate %d is not finite: (%v, %v)", i, lon[i], lat[i])
		}
	}

	n := len(lon)
	mat := make([][]float64, n)
	for i := range mat {
		mat[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := GreatCircle(lon[i], lat[i], lon[j], lat[j])
			mat[i][j] = d
			mat[j][i] = d
		}
	}
	return mat, nil
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
