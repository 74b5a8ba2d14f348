package stubserver

import (
	"strings"

	"captchaclient/internal/captcha"
)

const (
	// slideTolerance is how far, in percent of the track, the release may
	// land from the hole.
	slideTolerance = 5
	// slideMinPoints is the fewest trace points a human drag produces.
	slideMinPoints = 10
	slideMinMillis = 500
	slideMaxMillis = 10000
)

// checkCode compares case-insensitively, ignoring surrounding blanks.
func checkCode(want, got string) bool {
	return strings.EqualFold(want, strings.TrimSpace(got))
}

// checkSelection passes when exactly selectCount distinct images are picked
// and they cover every target.
func checkSelection(targets []int, selectCount int, selected []int) bool {
	picked := make(map[int]struct{}, len(selected))
	for _, i := range selected {
		picked[i] = struct{}{}
	}
	if len(picked) != len(selected) || len(picked) != selectCount {
		return false
	}
	for _, t := range targets {
		if _, ok := picked[t]; !ok {
			return false
		}
	}
	return true
}

// checkSlide applies position, trace length and timing rules.
func checkSlide(targetPercent int, a captcha.SlideAnswer) bool {
	diff := targetPercent - a.X
	if diff < 0 {
		diff = -diff
	}
	if diff > slideTolerance {
		return false
	}
	if len(a.Track) < slideMinPoints {
		return false
	}
	return a.Duration >= slideMinMillis && a.Duration <= slideMaxMillis
}
