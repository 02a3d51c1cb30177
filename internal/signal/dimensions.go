package signal

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const cmPerInch = 2.54

// W x H with an optional depth, followed by an inch or centimetre marker.
var dimensionPattern = regexp.MustCompile(
	`(?i)\b(\d+(?:\.\d+)?)\s*(?:"|''|”|inch(?:es)?\b|in\b\.?|cm\b)?\s*[x×]\s*(\d+(?:\.\d+)?)` +
		`(?:\s*(?:"|''|”|cm\b|in\b)?\s*[x×]\s*\d+(?:\.\d+)?)?\s*("|''|”|inch(?:es)?\b|in\b|cm\b)`)

// parseDimensions returns width and height in inches, or nils when no marked pair is present.
func parseDimensions(text string) (*float64, *float64) {
	m := dimensionPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, nil
	}
	w, errW := strconv.ParseFloat(m[1], 64)
	h, errH := strconv.ParseFloat(m[2], 64)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return nil, nil
	}
	if strings.EqualFold(m[3], "cm") {
		w = round2(w / cmPerInch)
		h = round2(h / cmPerInch)
	}
	return &w, &h
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
