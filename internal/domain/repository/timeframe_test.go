package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTimeframe(t *testing.T) {
	assert.Equal(t, TF1h, NormalizeTimeframe(""))
	assert.Equal(t, TF1h, NormalizeTimeframe("1w"))
	assert.Equal(t, TF15m, NormalizeTimeframe("15m"))
	assert.Equal(t, 24*time.Hour, TF1d.Duration())
	assert.Equal(t, "bars_5m", TF5m.Table())
}
