package signal

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/market-intel-service/internal/entity"
)

// Input is the listing text the parser works from.
type Input struct {
	Title       string
	Description string // plain text or HTML
	ImageURL    string
}

// Parser extracts structured attributes from listing text. It performs no I/O.
type Parser struct {
	now func() time.Time
}

func NewParser() *Parser {
	return &Parser{now: time.Now}
}

// Parse converts a listing into a ParsedSignal. Only a blank title is an error; attributes
// that cannot be recognised are left nil.
func (p *Parser) Parse(in Input) (*entity.ParsedSignal, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: listing has no title", entity.ErrParse)
	}
	description := CleanDescription(in.Description)
	imageTokens := imageNameTokens(in.ImageURL)

	sig := &entity.ParsedSignal{ParsedAt: p.now().UTC()}

	sig.WidthIn, sig.HeightIn = parseDimensions(title)
	if sig.WidthIn == nil {
		sig.WidthIn, sig.HeightIn = parseDimensions(description)
	}

	sources := []string{title, description, imageTokens}
	sig.Style = firstMatch(styles, sources)
	sig.Subject = firstMatch(subjects, sources)
	sig.Medium = firstMatch(media, sources)

	return sig, nil
}

// firstMatch tries each source in priority order.
func firstMatch(v *vocabulary, sources []string) *string {
	for _, s := range sources {
		if label := v.match(s); label != nil {
			return label
		}
	}
	return nil
}

// CleanDescription strips markup, scripts and styles from an HTML description and collapses
// whitespace. Plain text only has its whitespace collapsed.
func CleanDescription(raw string) string {
	if !strings.Contains(raw, "<") {
		return strings.Join(strings.Fields(raw), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.Join(strings.Fields(raw), " ")
	}
	doc.Find("script, style").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})
	// Keep block boundaries from gluing words together.
	doc.Find("br, p, div, li, td, h1, h2, h3, h4").Each(func(i int, s *goquery.Selection) {
		s.AfterHtml(" ")
	})
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// imageNameTokens turns ".../abstract-oil_painting.jpg" into "abstract oil painting".
func imageNameTokens(imageURL string) string {
	if imageURL == "" {
		return ""
	}
	p := imageURL
	if u, err := url.Parse(imageURL); err == nil {
		p = u.Path
	}
	name := path.Base(p)
	name = strings.TrimSuffix(name, path.Ext(name))
	if name == "." || name == "/" {
		return ""
	}
	return strings.NewReplacer("-", " ", "_", " ", "+", " ", ".", " ").Replace(name)
}
