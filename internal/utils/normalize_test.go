package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "northbound", NormalizeLabel("  northbound "))
	assert.Equal(t, "to city centre", NormalizeLabel("to   city\tcentre"))
	assert.Equal(t, "", NormalizeLabel("   "))
	assert.Equal(t, "", NormalizeLabel(""))
}

func TestNormalizePixel(t *testing.T) {
	assert.Equal(t, 0.25, NormalizePixel(320, 1280))
	assert.Equal(t, 0.0, NormalizePixel(-10, 1280))
	assert.Equal(t, 1.0, NormalizePixel(1500, 1280))
	assert.Equal(t, 0.0, NormalizePixel(100, 0))
}
