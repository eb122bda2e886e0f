package realestate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/multisource-scraper/internal/scrape"
	"github.com/JakeFAU/multisource-scraper/internal/source/sourcetest"
)

const p24Page = `<div class="p24_listingCard">
  <a href="/for-sale/sandton/123"><h3>3 Bedroom House</h3></a>
  <div class="p24_price">R 2
     450 000</div>
  <div class="p24_location">Sandton</div>
  <span class="p24_featureDetails" title="Bedrooms">3</span>
  <span class="p24_featureDetails" title="Bathrooms">2</span>
</div>
<div class="p24_listingCard"><h3>Missing price</h3><a href="/x"></a></div>`

const ppPage = `<div class="listing-result">
  <a href="https://www.privateproperty.co.za/l/9">
    <div class="listing-result__title">Townhouse</div>
  </a>
  <div class="listing-result__price">R 1 100 000</div>
  <div class="listing-result__desktop-suburb">Randburg</div>
</div>`

func TestProperty24ParsesListings(t *testing.T) {
	t.Parallel()

	pages := sourcetest.NewFetcher(map[string]string{"https://p24.test/for-sale/sandton/house": p24Page})
	src := NewProperty24(sourcetest.Deps(pages), "https://p24.test/")

	records, err := src.Scrape(context.Background(), scrape.Params{"location": "sandton"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]
	require.Equal(t, "R 2 450 000", rec.String("price"))
	require.Equal(t, "https://p24.test/for-sale/sandton/123", rec.String("url"))
	beds, _ := rec.Get("bedrooms")
	baths, _ := rec.Get("bathrooms")
	require.Equal(t, 3, beds)
	require.Equal(t, 2, baths)
}

func TestCategoryMergesSites(t *testing.T) {
	t.Parallel()

	pages := sourcetest.NewFetcher(map[string]string{
		"https://p24.test/for-sale/johannesburg/townhouse": p24Page,
		"https://pp.test/for-sale/johannesburg/townhouse":  ppPage,
	})
	category := NewCategory(sourcetest.Deps(pages), Endpoints{
		Property24:      "https://p24.test",
		PrivateProperty: "https://pp.test",
	})
	records, err := category.Scrape(context.Background(), scrape.Params{"property_type": "townhouse"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "property24", records[0].Source())
	require.Equal(t, "privateproperty", records[1].Source())
	beds, _ := records[1].Get("bedrooms")
	require.Equal(t, 0, beds)
}

func TestCategoryFailsWhenBothSitesFail(t *testing.T) {
	t.Parallel()

	category := NewCategory(sourcetest.Deps(sourcetest.NewFetcher(nil)), Endpoints{
		Property24:      "https://p24.test",
		PrivateProperty: "https://pp.test",
	})
	_, err := category.Scrape(context.Background(), nil)
	require.Error(t, err)
}
