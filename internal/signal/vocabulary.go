package signal

import (
	"regexp"
	"strings"
)

// term maps one alias phrase to its canonical label.
type term struct {
	label string
	size  int
	re    *regexp.Regexp
}

// vocabulary is a controlled set of labels and their aliases.
type vocabulary struct {
	terms []term
}

func newVocabulary(entries map[string][]string) *vocabulary {
	v := &vocabulary{}
	for label, aliases := range entries {
		for _, alias := range append([]string{label}, aliases...) {
			// A space in an alias also matches hyphens and runs of whitespace.
			pattern := `(?i)\b` + strings.ReplaceAll(regexp.QuoteMeta(alias), " ", `[\s-]+`) + `\b`
			v.terms = append(v.terms, term{label: label, size: len(alias), re: regexp.MustCompile(pattern)})
		}
	}
	return v
}

// match returns the label of the earliest alias found in text. When two aliases start at the
// same offset the longer phrase wins, so "oil pastel" beats "oil".
func (v *vocabulary) match(text string) *string {
	if text == "" {
		return nil
	}
	bestPos, bestSize := -1, 0
	var best string
	for _, t := range v.terms {
		loc := t.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		pos := loc[0]
		if bestPos == -1 || pos < bestPos || (pos == bestPos && t.size > bestSize) ||
			(pos == bestPos && t.size == bestSize && t.label < best) {
			bestPos, bestSize, best = pos, t.size, t.label
		}
	}
	if bestPos == -1 {
		return nil
	}
	return &best
}

var styles = newVocabulary(map[string][]string{
	"abstract":      {"abstraction", "non-objective"},
	"impressionism": {"impressionist", "impressionistic"},
	"expressionism": {"expressionist", "abstract expressionism", "abstract expressionist"},
	"realism":       {"realist", "realistic", "photorealism", "photorealistic", "hyperrealism"},
	"pop art":       {"pop-art"},
	"minimalism":    {"minimalist", "minimal"},
	"surrealism":    {"surrealist", "surreal"},
	"cubism":        {"cubist"},
	"contemporary":  {"modern art"},
	"mid-century":   {"mid century modern", "mid-century modern", "mcm"},
	"folk art":      {"outsider art", "naive art", "primitive"},
	"street art":    {"graffiti", "urban art"},
	"art deco":      {"deco"},
})

var subjects = newVocabulary(map[string][]string{
	"landscape":  {"landscapes", "mountain", "mountains", "countryside", "meadow", "forest"},
	"seascape":   {"seascapes", "ocean", "beach", "marine", "coastal", "seashore"},
	"cityscape":  {"cityscapes", "city", "urban scene", "street scene", "skyline"},
	"portrait":   {"portraits", "face", "self-portrait"},
	"figure":     {"figurative", "nude", "figures"},
	"still life": {"still-life", "stilllife"},
	"floral":     {"flower", "flowers", "botanical", "roses", "bouquet"},
	"animal":     {"animals", "dog", "cat", "horse", "bird", "birds", "wildlife"},
	"religious":  {"madonna", "angel", "saint"},
})

var media = newVocabulary(map[string][]string{
	"oil":          {"oil painting", "oil on canvas", "oil on board", "oils"},
	"acrylic":      {"acrylics", "acrylic on canvas"},
	"watercolor":   {"watercolour", "watercolors", "aquarelle"},
	"gouache":      {},
	"pastel":       {"oil pastel", "soft pastel", "pastels"},
	"charcoal":     {},
	"pencil":       {"graphite", "colored pencil"},
	"ink":          {"pen and ink", "sumi"},
	"mixed media":  {"mixed-media", "collage"},
	"print":        {"giclee", "lithograph", "screenprint", "serigraph", "etching", "woodcut", "linocut"},
	"photograph":   {"photography", "photo print"},
	"spray paint":  {"aerosol"},
})
