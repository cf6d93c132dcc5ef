package utils

import "strings"

// NormalizeLabel trims a direction label and collapses internal runs of
// whitespace to single spaces. Labels that are all whitespace normalize to
// the empty string.
func NormalizeLabel(label string) string {
	return strings.Join(strings.Fields(label), " ")
}

// NormalizePixel converts a pixel coordinate to a normalized [0,1] coordinate
// given the displayed dimension of the reference snapshot, clamping results
// just outside the frame back into range.
func NormalizePixel(pixel, dimension float64) float64 {
	if dimension <= 0 {
		return 0
	}
	v := pixel / dimension
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
