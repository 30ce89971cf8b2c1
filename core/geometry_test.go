package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScaleRoundsToNearest(t *testing.T) {
	assert.Equal(t, 600, Scale(600, 1))
	assert.Equal(t, 1200, Scale(600, 2))
	assert.Equal(t, 900, Scale(600, 1.5))
	assert.Equal(t, 301, Scale(200.5, 1.5)) // 300.75 rounds up
	assert.Equal(t, 0, Scale(0, 10))
	assert.Equal(t, 1, Scale(0.5, 1))
}

func TestScaleIdentity(t *testing.T) {
	for _, v := range []float64{0, 1, 99, 150.4, 599.6} {
		assert.Equal(t, Scale(v, 1), Scale(v, 1.0))
	}
}

func TestTextBoundsFromCharacterCount(t *testing.T) {
	w, h := TextBounds("Hello", 40)
	assert.Equal(t, 5*40.0/2+20, w)
	assert.Equal(t, 60.0, h)

	// Empty content still has a grabbable box.
	w, h = TextBounds("", 12)
	assert.Equal(t, 20.0, w)
	assert.Equal(t, 32.0, h)

	// Multi-byte runes count as characters, not bytes.
	w1, _ := TextBounds("ééééé", 40)
	w2, _ := TextBounds("aaaaa", 40)
	assert.Equal(t, w1, w2)
}
