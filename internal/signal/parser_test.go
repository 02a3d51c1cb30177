package signal

import (
	"errors"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/user/market-intel-service/internal/entity"
)

func TestParseDimensions(t *testing.T) {
	tests := []struct {
		name  string
		title string
		w, h  float64
		found bool
	}{
		{"compact inches", "Abstract Blue 24x36 in Oil on Canvas", 24, 36, true},
		{"spaced inches word", "Seascape 18 x 24 inches signed", 18, 24, true},
		{"quote markers", `Portrait 11" x 14"`, 11, 14, true},
		{"unicode times", "Still life 16×20 in", 16, 20, true},
		{"decimals", "Floral 8.5x11 inch print", 8.5, 11, true},
		{"with depth", "Cityscape 30x40x1.5 in gallery wrap", 30, 40, true},
		{"centimetres", "Landscape 50 x 70 cm", 19.69, 27.56, true},
		{"no marker", "Abstract 24x36 painting", 0, 0, false},
		{"no pair", "Large oil painting 36 in wide", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			w, h := parseDimensions(tt.title)
			if !tt.found {
				g.Expect(w).To(BeNil())
				g.Expect(h).To(BeNil())
				return
			}
			g.Expect(w).NotTo(BeNil())
			g.Expect(*w).To(BeNumerically("~", tt.w, 1e-9))
			g.Expect(*h).To(BeNumerically("~", tt.h, 1e-9))
		})
	}
}

func TestParseTitleRequired(t *testing.T) {
	g := NewWithT(t)
	_, err := NewParser().Parse(Input{Title: "   ", Description: "oil on canvas"})
	g.Expect(errors.Is(err, entity.ErrParse)).To(BeTrue())
}

func TestParseAttributes(t *testing.T) {
	g := NewWithT(t)
	p := NewParser()

	sig, err := p.Parse(Input{Title: "Original Impressionist Landscape Oil Painting 24x36 in"})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(sig.Style).To(HaveValue(Equal("impressionism")))
	g.Expect(sig.Subject).To(HaveValue(Equal("landscape")))
	g.Expect(sig.Medium).To(HaveValue(Equal("oil")))
	g.Expect(sig.WidthIn).To(HaveValue(Equal(24.0)))
	g.Expect(sig.HeightIn).To(HaveValue(Equal(36.0)))
	g.Expect(sig.ParsedAt).NotTo(BeZero())

	sig, err = p.Parse(Input{Title: "Untitled No. 7"})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(sig.Style).To(BeNil())
	g.Expect(sig.Subject).To(BeNil())
	g.Expect(sig.Medium).To(BeNil())
	g.Expect(sig.WidthIn).To(BeNil())
	g.Expect(sig.HeightIn).To(BeNil())
}

func TestParseLongerPhraseWinsTie(t *testing.T) {
	g := NewWithT(t)
	sig, err := NewParser().Parse(Input{Title: "Oil pastel drawing, abstract expressionist"})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(sig.Medium).To(HaveValue(Equal("pastel")))
	g.Expect(sig.Style).To(HaveValue(Equal("expressionism")))
}

func TestParseSourcePriority(t *testing.T) {
	g := NewWithT(t)
	sig, err := NewParser().Parse(Input{
		Title:       "Floral study",
		Description: "<p>Watercolor on paper.</p><p>Size 9 x 12 in</p>",
		ImageURL:    "https://img.example.com/g/acrylic-seascape_cubist.jpg?w=500",
	})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(sig.Subject).To(HaveValue(Equal("floral")))
	g.Expect(sig.Medium).To(HaveValue(Equal("watercolor")))
	g.Expect(sig.Style).To(HaveValue(Equal("cubism")))
	g.Expect(sig.WidthIn).To(HaveValue(Equal(9.0)))
	g.Expect(sig.HeightIn).To(HaveValue(Equal(12.0)))
}

func TestCleanDescription(t *testing.T) {
	g := NewWithT(t)
	html := `<div><style>.x{color:red}</style><p>Hand painted</p><script>track()</script><p>mixed   media</p></div>`
	g.Expect(CleanDescription(html)).To(Equal("Hand painted mixed media"))
	g.Expect(CleanDescription("  plain\n\ttext ")).To(Equal("plain text"))
	g.Expect(CleanDescription("")).To(Equal(""))
}
