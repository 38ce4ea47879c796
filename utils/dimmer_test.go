package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetDimmerFadeValue(t *testing.T) {
	t.Parallel()

	target := 250
	step := 15
	numSteps := 30
	expected := 129

	value := GetDimmerFadeValue(target, step, numSteps)
	require.Equal(t, expected, value)
}

func TestGetDimmerFadeValueFinalStep(t *testing.T) {
	t.Parallel()

	require.Equal(t, 200, GetDimmerFadeValue(200, 9, 10))
	require.Equal(t, 200, GetDimmerFadeValue(200, 0, 1))
	require.Equal(t, 0, GetDimmerFadeValue(200, 0, 10))
}
