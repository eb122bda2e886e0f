// Package realestate scrapes property listings from Property24 and
// PrivateProperty.
//
// Params: property_type (default "house") and location (default
// "johannesburg").
package realestate

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/multisource-scraper/internal/scrape"
	"github.com/JakeFAU/multisource-scraper/internal/source"
)

const (
	defaultPropertyType = "house"
	defaultLocation     = "johannesburg"
)

// Endpoints overrides site base URLs.
type Endpoints struct {
	Property24      string
	PrivateProperty string
}

// DefaultEndpoints are the production site URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Property24:      "https://www.property24.co.za",
		PrivateProperty: "https://www.privateproperty.co.za",
	}
}

// NewCategory returns the real_estate category.
func NewCategory(deps source.Deps, endpoints Endpoints) *source.Group {
	def := DefaultEndpoints()
	if endpoints.Property24 == "" {
		endpoints.Property24 = def.Property24
	}
	if endpoints.PrivateProperty == "" {
		endpoints.PrivateProperty = def.PrivateProperty
	}
	return source.NewGroup("real_estate", []scrape.Source{
		NewProperty24(deps, endpoints.Property24),
		NewPrivateProperty(deps, endpoints.PrivateProperty),
	}, source.SelectBy("sites"), source.WithGroupLogger(deps.Logger))
}

// layout describes where a site keeps its listing fields.
type layout struct {
	card     string
	title    string
	price    string
	location string
	bedrooms string
	baths    string
}

// listings is the shared scraper for listing-card sites.
type listings struct {
	source.Base
	baseURL string
	layout  layout
}

// Scrape implements scrape.Source.
func (l *listings) Scrape(ctx context.Context, params scrape.Params) ([]scrape.Record, error) {
	propertyType := params.StringOr("property_type", defaultPropertyType)
	location := params.StringOr("location", defaultLocation)
	target := l.baseURL + "/for-sale/" + location + "/" + propertyType

	l.Logger().Info("scraping", zap.String("property_type", propertyType), zap.String("location", location))
	doc, err := l.Document(ctx, target)
	if err != nil {
		return nil, &scrape.SourceError{Source: l.Name(), Err: err}
	}
	return l.parse(doc), nil
}

func (l *listings) parse(doc *goquery.Document) []scrape.Record {
	out := []scrape.Record{}
	doc.Find(l.layout.card).Each(func(_ int, card *goquery.Selection) {
		title := source.Text(card.Find(l.layout.title))
		price := source.Text(card.Find(l.layout.price))
		location := source.Text(card.Find(l.layout.location))
		href, hasLink := card.Find("a[href]").First().Attr("href")
		if title == "" || price == "" || location == "" || !hasLink {
			return
		}
		rec := l.NewRecord()
		rec.Set("title", title)
		rec.Set("price", source.CollapseSpace(price))
		rec.Set("location", location)
		rec.Set("url", source.Resolve(l.baseURL, href))
		rec.Set("bedrooms", count(card, l.layout.bedrooms))
		rec.Set("bathrooms", count(card, l.layout.baths))
		out = append(out, rec)
	})
	return out
}

// count reads a leading integer from the first match of selector, or 0.
func count(card *goquery.Selection, selector string) int {
	if selector == "" {
		return 0
	}
	text := source.Text(card.Find(selector))
	n := 0
	for _, r := range text {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// Property24 scrapes property24.co.za.
type Property24 struct{ listings }

// NewProperty24 creates the Property24 source.
func NewProperty24(deps source.Deps, baseURL string) *Property24 {
	return &Property24{listings{
		Base:    source.NewBase("property24", deps),
		baseURL: strings.TrimRight(baseURL, "/"),
		layout: layout{
			card:     "div.p24_listingCard",
			title:    "h3",
			price:    "div.p24_price",
			location: "div.p24_location",
			bedrooms: "span.p24_featureDetails[title=Bedrooms]",
			baths:    "span.p24_featureDetails[title=Bathrooms]",
		},
	}}
}

// PrivateProperty scrapes privateproperty.co.za.
type PrivateProperty struct{ listings }

// NewPrivateProperty creates the PrivateProperty source.
func NewPrivateProperty(deps source.Deps, baseURL string) *PrivateProperty {
	return &PrivateProperty{listings{
		Base:    source.NewBase("privateproperty", deps),
		baseURL: strings.TrimRight(baseURL, "/"),
		layout: layout{
			card:     "div.listing-result",
			title:    "div.listing-result__title",
			price:    "div.listing-result__price",
			location: "div.listing-result__desktop-suburb",
			bedrooms: "span.listing-result__feature--bedrooms",
			baths:    "span.listing-result__feature--bathrooms",
		},
	}}
}
