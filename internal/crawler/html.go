package crawler

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// nonContentSelectors lists elements to strip before extracting body text.
const nonContentSelectors = "script, style, nav, header, footer, noscript"

// HTMLToText returns the visible text of an HTML page. <br> becomes a
// newline so that advisory layouts keep their line structure.
func HTMLToText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("br").ReplaceWithHtml("\n")

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}

	if root.Length() == 0 {
		return "", nil
	}

	root.Find(nonContentSelectors).Remove()

	return strings.TrimSpace(root.Text()), nil
}

func isHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}

	head := bytes.ToLower(bytes.TrimSpace(body))
	if len(head) > 64 {
		head = head[:64]
	}

	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}
