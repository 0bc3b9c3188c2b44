package software

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuantizeUnormRoundsInFloat32(t *testing.T) {
	tests := []struct {
		in    float32
		level float32
	}{
		{0.7, 179},
		{0.5, 128},
		{0.2, 51},
		{-0.3, 0},
		{1.2, 255},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.level/255, quantizeUnorm(tt.in), "input %v", tt.in)
	}
}
