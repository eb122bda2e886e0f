// Package detector decides when a statically fetched page is a client-side
// app shell that has to be loaded in the headless renderer.
package detector

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultMinTextBytes is the visible text below which a script-heavy page is
// treated as a shell.
const DefaultMinTextBytes = 2048

// mountPoints are the root elements of common client-side frameworks.
const mountPoints = `#__next, #__nuxt, #root, #app, [data-reactroot], [ng-app]`

// Heuristic implements a handful of rule-based promotions.
type Heuristic struct {
	MinTextBytes int
}

// NewHeuristic creates a detector. A non-positive threshold uses
// DefaultMinTextBytes.
func NewHeuristic(minTextBytes int) *Heuristic {
	if minTextBytes <= 0 {
		minTextBytes = DefaultMinTextBytes
	}
	return &Heuristic{MinTextBytes: minTextBytes}
}

// NeedsRender reports whether body looks like it only fills in after
// scripts run: it is blank, it holds an empty framework mount point, or it
// carries little visible text and is at least a quarter script markup.
func (h *Heuristic) NeedsRender(body []byte) bool {
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	if emptyMount(doc) {
		return true
	}
	if len(visibleText(doc)) >= h.MinTextBytes {
		return false
	}
	return scriptBytes(doc)*100/len(body) >= 25
}

func emptyMount(doc *goquery.Document) bool {
	empty := false
	doc.Find(mountPoints).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.TrimSpace(sel.Text()) == "" {
			empty = true
			return false
		}
		return true
	})
	return empty
}

func visibleText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript, template").Remove()
	return strings.Join(strings.Fields(body.Text()), " ")
}

func scriptBytes(doc *goquery.Document) int {
	total := 0
	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		if html, err := goquery.OuterHtml(sel); err == nil {
			total += len(html)
		}
	})
	return total
}
