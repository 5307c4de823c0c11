package extract

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPrefix = "https://www.imovirtual.com/pt/anuncio/"

func testPipeline() *Pipeline {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewPipeline(testPrefix, log)
}

// nextDataPage wraps a pageProps.data JSON fragment in a minimal page.
func nextDataPage(data string) []byte {
	return []byte(`<html><head><script id="__NEXT_DATA__" type="application/json">` +
		`{"props":{"pageProps":{"data":` + data + `}}}</script></head><body></body></html>`)
}

func TestExtractPage_PrimaryStrategy(t *testing.T) {
	t.Run("well-formed item mapped, malformed item skipped", func(t *testing.T) {
		body := nextDataPage(`{"searchAds":{
			"totalHits": 200,
			"pagination": {"currentPage": 1},
			"items": [
				{"title":"T3 em Queluz","slug":"t3-queluz-ID1a2b","totalPrice":{"value":250000},
				 "location":{"city":{"name":"Queluz"},"district":{"name":"Sintra"}},
				 "areaInSquareMeters":85.5,"numberOfRooms":3},
				{"title":"Broken","slug":"broken-ID9z","location":"not-an-object"}
			]}}`)

		listings, meta := testPipeline().ExtractPage(body, 1)

		require.Len(t, listings, 1)
		l := listings[0]
		assert.Equal(t, "T3 em Queluz", l.Title)
		assert.Equal(t, 250000, l.Price)
		assert.Equal(t, "Queluz, Sintra", l.RawLocation)
		assert.Equal(t, testPrefix+"t3-queluz-ID1a2b", l.URL)
		require.NotNil(t, l.AreaM2)
		assert.InDelta(t, 85.5, *l.AreaM2, 0.001)
		require.NotNil(t, l.Rooms)
		assert.Equal(t, 3, *l.Rooms)

		require.NotNil(t, meta)
		assert.Equal(t, 200, meta.TotalHits)
		assert.Equal(t, 1, meta.CurrentPage)
	})

	t.Run("item without slug skipped", func(t *testing.T) {
		body := nextDataPage(`{"searchAds":{"totalHits":1,"pagination":{"currentPage":1},
			"items":[{"title":"No slug","totalPrice":{"value":100}}]}}`)

		listings, meta := testPipeline().ExtractPage(body, 1)
		assert.Empty(t, listings)
		require.NotNil(t, meta)
		assert.Equal(t, 1, meta.TotalHits)
	})

	t.Run("numeric strings coerced", func(t *testing.T) {
		body := nextDataPage(`{"searchAds":{"totalHits":"37","pagination":{"currentPage":"2"},
			"items":[{"slug":"s-IDx","totalPrice":{"value":"350000"},"areaInSquareMeters":"120.5"}]}}`)

		listings, meta := testPipeline().ExtractPage(body, 2)
		require.Len(t, listings, 1)
		assert.Equal(t, 350000, listings[0].Price)
		require.NotNil(t, listings[0].AreaM2)
		assert.InDelta(t, 120.5, *listings[0].AreaM2, 0.001)
		assert.Nil(t, listings[0].Rooms)
		assert.Equal(t, "N/A", listings[0].Title)
		assert.Equal(t, 37, meta.TotalHits)
		assert.Equal(t, 2, meta.CurrentPage)
	})

	t.Run("promoted fillers skipped past page 1 with zero hits", func(t *testing.T) {
		body := nextDataPage(`{"searchAds":{"totalHits":0,"pagination":{"currentPage":1},
			"items":[
				{"slug":"promo-IDp","isPromoted":true,"title":"Promo"},
				{"slug":"real-IDr","title":"Real"}
			]}}`)

		listings, _ := testPipeline().ExtractPage(body, 3)
		require.Len(t, listings, 1)
		assert.Equal(t, "Real", listings[0].Title)
	})

	t.Run("payload without searchAds wrapper still parsed", func(t *testing.T) {
		body := nextDataPage(`{"totalHits":12,"pagination":{"currentPage":1},
			"results":[{"slug":"direct-IDd","title":"Direct","totalPrice":{"value":99000}}]}`)

		listings, meta := testPipeline().ExtractPage(body, 1)
		require.Len(t, listings, 1)
		assert.Equal(t, testPrefix+"direct-IDd", listings[0].URL)
		require.NotNil(t, meta)
		assert.Equal(t, 12, meta.TotalHits)
	})
}

func TestExtractPage_FallbackStrategy(t *testing.T) {
	t.Run("empty primary falls back to JSON-LD, metadata kept from primary", func(t *testing.T) {
		body := []byte(`<html><head>
			<script id="__NEXT_DATA__" type="application/json">
				{"props":{"pageProps":{"data":{"searchAds":{"totalHits":2,"pagination":{"currentPage":1},"items":[]}}}}}
			</script>
			<script type="application/ld+json">
				{"@graph":[
					{"@type":"WebPage"},
					{"offers":{"offers":[
						{"name":"T2 em Cascais","price":400000,"url":"https://www.imovirtual.com/pt/anuncio/t2-cascais-IDa",
						 "itemOffered":{"address":{"addressLocality":"Cascais","addressRegion":"Lisboa"},
						                "floorSize":{"value":90},"numberOfRooms":2}},
						{"name":"T1 em Oeiras","price":280000,"url":"https://www.imovirtual.com/pt/anuncio/t1-oeiras-IDb",
						 "itemOffered":{"address":{"addressLocality":"Oeiras","addressRegion":""}}},
						{"name":"Sem URL","price":1}
					]}}
				]}
			</script></head><body></body></html>`)

		listings, meta := testPipeline().ExtractPage(body, 1)

		require.Len(t, listings, 2)
		assert.Equal(t, "T2 em Cascais", listings[0].Title)
		assert.Equal(t, 400000, listings[0].Price)
		assert.Equal(t, "Cascais, Lisboa", listings[0].RawLocation)
		require.NotNil(t, listings[0].AreaM2)
		assert.InDelta(t, 90, *listings[0].AreaM2, 0.001)
		require.NotNil(t, listings[0].Rooms)
		assert.Equal(t, 2, *listings[0].Rooms)

		// Trailing ", " stripped when the region is empty.
		assert.Equal(t, "Oeiras", listings[1].RawLocation)
		assert.Nil(t, listings[1].AreaM2)

		// Fallback records, primary metadata.
		require.NotNil(t, meta)
		assert.Equal(t, 2, meta.TotalHits)
	})

	t.Run("flat offer shape accepted", func(t *testing.T) {
		body := []byte(`<html><head><script type="application/ld+json">
			{"offers":{"name":"Moradia","price":500000,"url":"https://www.imovirtual.com/pt/anuncio/m-IDc"}}
		</script></head><body></body></html>`)

		listings, meta := testPipeline().ExtractPage(body, 1)
		require.Len(t, listings, 1)
		assert.Equal(t, "Moradia", listings[0].Title)
		assert.Nil(t, meta)
	})
}

func TestExtractPage_NoPayloads(t *testing.T) {
	listings, meta := testPipeline().ExtractPage([]byte(`<html><body><p>nothing here</p></body></html>`), 2)
	assert.Empty(t, listings)
	assert.Nil(t, meta)
}
