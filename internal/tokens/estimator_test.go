package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountWithoutEncoding(t *testing.T) {
	var none *Counter
	assert.False(t, none.Exact())
	assert.Equal(t, 0, none.Count(""))
	assert.Equal(t, 1, none.Count("abc"))
	assert.Equal(t, 4, (&Counter{}).Count("@e1: button \"Go\""))
}

func TestEstimateIsStable(t *testing.T) {
	text := "@e1: button \"Submit\"\n@e2: link \"Home\""
	n := Estimate(text)
	assert.Positive(t, n)
	assert.Equal(t, n, Estimate(text))
	assert.Zero(t, Estimate(""))
}
