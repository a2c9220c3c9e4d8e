package quest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateDistance(t *testing.T) {
	t.Run("coincident points", func(t *testing.T) {
		assert.Equal(t, 0.0, CalculateDistance(37.5796, 126.9770, 37.5796, 126.9770))
	})

	t.Run("gyeongbokgung to namsan tower", func(t *testing.T) {
		d := CalculateDistance(37.5796, 126.9770, 37.5512, 126.9882)
		assert.InDelta(t, 3.30, d, 0.05)
	})

	t.Run("symmetric", func(t *testing.T) {
		a := CalculateDistance(37.5665, 126.9780, 35.1796, 129.0756)
		b := CalculateDistance(35.1796, 129.0756, 37.5665, 126.9780)
		assert.InDelta(t, a, b, 1e-9)
		assert.InDelta(t, 325, a, 5)
	})
}

func TestDistanceTo(t *testing.T) {
	lat, lon := 37.5796, 126.9770
	qLat, qLon := 37.5826, 126.9830

	d, ok := DistanceTo(&lat, &lon, &qLat, &qLon)
	assert.True(t, ok)
	assert.Greater(t, d, 0.0)

	_, ok = DistanceTo(&lat, &lon, nil, &qLon)
	assert.False(t, ok)
	_, ok = DistanceTo(nil, nil, &qLat, &qLon)
	assert.False(t, ok)
}

func TestFormatVector(t *testing.T) {
	assert.Equal(t, "[0.1,-0.25,1]", FormatVector([]float32{0.1, -0.25, 1}))
	assert.Equal(t, "[]", FormatVector(nil))
}
