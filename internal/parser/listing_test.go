package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketintel/stealth-scraper/internal/config"
)

func testTarget() config.Target {
	return config.Target{
		Name: "books_toscrape",
		URL:  "https://books.toscrape.com/catalogue/category/books_1/index.html",
		Type: config.TypeStatic,
		Selectors: config.Selectors{
			Container:    "article.product_pod",
			Name:         "h3 a",
			Price:        "p.price_color",
			Rating:       "p.star-rating",
			Availability: "p.availability",
		},
	}
}

const listingHTML = `
<html><body>
<article class="product_pod">
	<p class="star-rating Three"></p>
	<h3><a title="A Light in the Attic">A Light in the ...</a></h3>
	<p class="price_color">£51.77</p>
	<p class="availability">In stock</p>
</article>
<article class="product_pod">
	<p class="star-rating One"></p>
	<h3><a title="Tipping the Velvet">Tipping the Velvet</a></h3>
	<p class="price_color">£53.74</p>
	<p class="availability">Only 2 left in stock</p>
</article>
<article class="product_pod">
	<p class="star-rating Five"></p>
	<h3><a title="Soumission">Soumission</a></h3>
	<p class="price_color">£50.10</p>
	<p class="availability">In stock</p>
</article>
</body></html>`

func TestParseListing(t *testing.T) {
	lp := NewListingParser()

	products, err := lp.ParseListing(listingHTML, testTarget(), 50)
	require.NoError(t, err)
	require.Len(t, products, 3)

	first := products[0]
	assert.Equal(t, "books_toscrape_1", first.ID)
	assert.Equal(t, "A Light in the ...", first.Name)
	require.NotNil(t, first.Price)
	assert.InDelta(t, 51.77, *first.Price, 0.0001)
	assert.Equal(t, "£51.77", first.PriceRaw)
	require.NotNil(t, first.Rating)
	assert.Equal(t, 3.0, *first.Rating)
	assert.True(t, first.Stock.InStock)
	assert.Nil(t, first.Stock.ScarcitySignal)
	assert.Equal(t, "books_toscrape", first.Source)
	assert.False(t, first.ScrapedAt.IsZero())
	assert.Empty(t, first.Validate())

	// Every record got a non-nil price and rating.
	for _, p := range products {
		assert.NotNil(t, p.Price)
		assert.NotNil(t, p.Rating)
	}

	scarce := products[1]
	require.NotNil(t, scarce.Stock.ScarcitySignal)
	assert.Equal(t, "Only 2 left in stock", *scarce.Stock.ScarcitySignal)
	assert.True(t, scarce.Stock.InStock)
}

func TestParseListingMaxProducts(t *testing.T) {
	lp := NewListingParser()

	products, err := lp.ParseListing(listingHTML, testTarget(), 2)
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, "books_toscrape_2", products[1].ID)
}

func TestParseListingMissingFieldsDegrade(t *testing.T) {
	html := `
	<article class="product_pod">
		<h3><a>Mystery Item</a></h3>
	</article>`

	lp := NewListingParser()
	products, err := lp.ParseListing(html, testTarget(), 10)
	require.NoError(t, err)
	require.Len(t, products, 1)

	p := products[0]
	assert.Equal(t, "Mystery Item", p.Name)
	assert.Nil(t, p.Price)
	assert.Empty(t, p.PriceRaw)
	assert.Nil(t, p.Rating)
	assert.True(t, p.Stock.InStock)
	assert.Nil(t, p.Stock.ScarcitySignal)
}

func TestParseListingMalformedPriceKeepsRaw(t *testing.T) {
	html := `
	<article class="product_pod">
		<h3><a>Odd Pricing</a></h3>
		<p class="price_color">Call for price</p>
	</article>`

	lp := NewListingParser()
	products, err := lp.ParseListing(html, testTarget(), 10)
	require.NoError(t, err)
	require.Len(t, products, 1)

	assert.Nil(t, products[0].Price)
	assert.Equal(t, "Call for price", products[0].PriceRaw)
}

func TestParseListingNameFromTitleAttribute(t *testing.T) {
	html := `
	<article class="product_pod">
		<h3><a title="The Grand Design"></a></h3>
		<p class="price_color">£13.76</p>
	</article>`

	lp := NewListingParser()
	products, err := lp.ParseListing(html, testTarget(), 10)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "The Grand Design", products[0].Name)
}

func TestParseListingNoContainers(t *testing.T) {
	lp := NewListingParser()

	_, err := lp.ParseListing(`<html><body><div>nothing here</div></body></html>`, testTarget(), 10)
	assert.ErrorIs(t, err, ErrNoContainers)
}

func TestParseListingAllRowsInvalid(t *testing.T) {
	html := `
	<article class="product_pod"><p class="price_color">£9.99</p></article>
	<article class="product_pod"><p class="price_color">£4.99</p></article>`

	lp := NewListingParser()
	_, err := lp.ParseListing(html, testTarget(), 10)
	assert.ErrorIs(t, err, ErrNoValidRecords)
}
