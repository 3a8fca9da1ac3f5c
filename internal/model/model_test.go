package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoordinateString(t *testing.T) {
	assert.Equal(t, "1.2.3", Coordinate{X: 1, Y: 2, Z: 3}.String())
	assert.Equal(t, "1.2.3.dev", Coordinate{X: 1, Y: 2, Z: 3, Suffix: "dev"}.String())
}

func TestExplainRecordGet(t *testing.T) {
	r := ExplainRecord{Fields: []ExplainField{
		{Key: "coordinate", Value: "1.2.3"},
		{Key: "branch", Value: ""},
	}}
	assert.Equal(t, "1.2.3", r.Get("coordinate"))
	assert.Equal(t, "", r.Get("branch"))
	assert.Equal(t, "", r.Get("missing"))
}
