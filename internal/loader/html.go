package loader

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// noise is page chrome that never holds statute text.
const noise = "script, style, noscript, nav, header, footer, iframe, form"

// ExtractHTML converts a saved statute page to Markdown-flavored text. The
// page bytes are decoded with the usual chain first, so pages saved in
// windows-1251 read the same as UTF-8 ones.
func ExtractHTML(raw []byte, decoders []Decoder) (string, string, error) {
	text, enc, err := decode(raw, decoders)
	if err != nil {
		return "", "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return "", "", err
	}
	doc.Find(noise).Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	converter := md.NewConverter("", true, nil)
	markdown := converter.Convert(body)
	if strings.TrimSpace(markdown) == "" {
		// Fall back to raw text when the converter finds no block content.
		return strings.Join(strings.Fields(body.Text()), " "), enc, nil
	}

	lines := strings.Split(markdown, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, "\n"), enc, nil
}
