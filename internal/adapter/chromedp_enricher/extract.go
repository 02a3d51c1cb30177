package chromedp_enricher

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// descriptionSelectors are tried in order against the rendered item page.
var descriptionSelectors = []string{
	"[data-testid='x-item-description']",
	"#viTabs_0_is",
	"#ds_div",
	".item-description",
	"[itemprop='description']",
}

// extractDescription returns the inner HTML of the first description container found in
// the page, or the content of the description meta tag. It returns "" when neither exists.
func extractDescription(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	for _, sel := range descriptionSelectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		inner, err := s.Html()
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(s.Text()) != "" {
			return strings.TrimSpace(inner), nil
		}
	}

	if content, ok := doc.Find("meta[name='description'], meta[property='og:description']").First().Attr("content"); ok {
		return strings.TrimSpace(content), nil
	}
	return "", nil
}
