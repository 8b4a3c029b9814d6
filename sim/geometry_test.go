package sim

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGreatCircle_KnownDistance(t *testing.T) {
	// San Francisco to Los Angeles is roughly 559 km
	d := GreatCircle(-122.4194, 37.7749, -118.2437, 34.0522)
	assert.InDelta(t, 559, d, 2)
}

func TestGreatCircle_SamePointIsZero(t *testing.T) {
	// acos argument rounds above 1 for some identical points; must not be NaN
	for _, p := range [][2]float64{{-122.4194, 37.7749}, {0, 0}, {179.9999, -89.9999}, {-0.1278, 51.5074}} {
		d := GreatCircle(p[0], p[1], p[0], p[1])
		assert.False(t, math.IsNaN(d), "NaN for %v", p)
		assert.InDelta(t, 0, d, 1e-6, "non-zero self distance for %v", p)
	}
}

func TestGreatCircleMatrix_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, n := range []int{1, 2, 5, 20} {
		lon := make([]float64, n)
		lat := make([]float64, n)
		for i := 0; i < n; i++ {
			lon[i] = -122.5 + 0.2*rng.Float64()
			lat[i] = 37.7 + 0.2*rng.Float64()
		}

		mat, err := GreatCircleMatrix(lon, lat)
		require.NoError(t, err)
		require.Len(t, mat, n)

		for i := 0; i < n; i++ {
			// diagonal is exactly zero
			assert.Equal(t, 0.0, mat[i][i])
			for j := 0; j < n; j++ {
				assert.Equal(t, mat[i][j], mat[j][i], "asymmetric at (%d,%d)", i, j)
				assert.GreaterOrEqual(t, mat[i][j], 0.0)
				for k := 0; k < n; k++ {
					assert.LessOrEqual(t, mat[i][k], mat[i][j]+mat[j][k]+1e-6,
						"triangle inequality violated for (%d,%d,%d)", i, j, k)
				}
			}
		}
	}
}

func TestGreatCircleMatrix_DuplicateCoordinates(t *testing.T) {
	mat, err := GreatCircleMatrix([]float64{-122.41, -122.41}, []float64{37.78, 37.78})
	require.NoError(t, err)
	assert.InDelta(t, 0, mat[0][1], 1e-6)
	assert.False(t, math.IsNaN(mat[0][1]))
}

func TestGreatCircleMatrix_Errors(t *testing.T) {
	_, err := GreatCircleMatrix([]float64{1, 2}, []float64{1})
	assert.Error(t, err)

	_, err = GreatCircleMatrix([]float64{math.NaN()}, []float64{1})
	assert.Error(t, err)

	_, err = GreatCircleMatrix([]float64{1}, []float64{math.Inf(1)})
	assert.Error(t, err)
}
