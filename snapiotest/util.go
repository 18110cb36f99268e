package snapiotest

import "math"

func boolQuad(b bool) uint32 {
	if b {
		return 1
	}

	return 0
}

func quadFloat(v uint32) float32 {
	return math.Float32frombits(v)
}
