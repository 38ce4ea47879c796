package utils

// GetDimmerFadeValue returns the DMX level for a fade towards target at the given step.
func GetDimmerFadeValue(target, step, numSteps int) int {
	if numSteps <= 1 {
		return target
	}
	progress := float64(step) / float64(numSteps-1)
	if progress >= 1 {
		return target
	}

	return int(Clamp(progress*float64(target), 0, 255))
}
