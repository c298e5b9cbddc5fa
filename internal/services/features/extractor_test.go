package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeTrader/internal/domain/models"
)

func makeBars(closes []float64) []models.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    100,
		}
	}
	return bars
}

func TestBuildDropsWarmup(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i%3)
	}
	m := Build(makeBars(closes))
	require.Equal(t, 60-DispersionWindow, m.Len())
	assert.Equal(t, DispersionWindow, m.Index[0])
	assert.Equal(t, 59, m.Index[m.Len()-1])

	row := m.Rows[0]
	assert.InDelta(t, math.Log(closes[20]/closes[19]), row[0], 1e-12)
	assert.InDelta(t, 0.02, row[1], 1e-12)
	assert.Greater(t, row[2], 0.0)
}

func TestBuildSkipsInvalidClose(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	closes[30] = math.NaN()
	m := Build(makeBars(closes))
	for _, idx := range m.Index {
		assert.NotEqual(t, 30, idx)
	}
	assert.Len(t, m.Float64s(), m.Len())
}

func TestBuildTooShort(t *testing.T) {
	m := Build(makeBars([]float64{1, 2, 3}))
	assert.Equal(t, 0, m.Len())
}
