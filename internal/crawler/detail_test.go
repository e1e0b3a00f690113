package crawler

import (
	"testing"

	crawlerrors "sjsage522/krishaworker/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const detailURL = "https://krisha.kz/a/show/681234567"

func TestParseDetailPage(t *testing.T) {
	page := completeDetail(681234567, "6f1f0f3e-2a57-4a7e-9a43-0c9d6a1f2b11")

	record, err := ParseDetailPage([]byte(page.HTML()), detailURL)
	require.NoError(t, err)

	assert.Equal(t, int64(681234567), record.ExternalID)
	assert.Equal(t, "6f1f0f3e-2a57-4a7e-9a43-0c9d6a1f2b11", record.UniqueKey)
	assert.Equal(t, detailURL, record.SourceURL)
	require.NotNil(t, record.Rooms)
	assert.Equal(t, 2, *record.Rooms)
	require.NotNil(t, record.Area)
	assert.Equal(t, 54.5, *record.Area)
	require.NotNil(t, record.City)
	assert.Equal(t, "Алматы", *record.City)
	require.NotNil(t, record.Latitude)
	require.NotNil(t, record.Longitude)
	assert.Equal(t, 43.2389, *record.Latitude)
	assert.Equal(t, 76.8897, *record.Longitude)
	require.NotNil(t, record.Description)
	assert.Equal(t, "Светлая квартира с ремонтом", *record.Description)
	require.NotNil(t, record.PhotoURL)
	assert.Equal(t, "https://photos.krisha.kz/1-full.jpg", *record.PhotoURL)
	require.NotNil(t, record.Price)
	assert.Equal(t, int64(32500000), *record.Price)
	assert.True(t, record.CapturedDate.IsZero())
	assert.NoError(t, record.Validate())
}

func TestParseDetailPageMissingPrice(t *testing.T) {
	page := completeDetail(1, "uuid-without-price")
	page.Price = nil

	record, err := ParseDetailPage([]byte(page.HTML()), detailURL)
	require.NoError(t, err)
	assert.Nil(t, record.Price)
	assert.Equal(t, "uuid-without-price", record.UniqueKey)

	err = record.Validate()
	require.Error(t, err)
	assert.True(t, crawlerrors.IsType(err, crawlerrors.ErrorTypeMissingPrice))
}

func TestParseDetailPageOptionalFields(t *testing.T) {
	page := detailFixture{ID: 7, UUID: "bare", Price: 10000000}

	record, err := ParseDetailPage([]byte(page.HTML()), detailURL)
	require.NoError(t, err)
	assert.Nil(t, record.Rooms)
	assert.Nil(t, record.Area)
	assert.Nil(t, record.City)
	assert.Nil(t, record.Latitude)
	assert.Nil(t, record.Longitude)
	assert.Nil(t, record.Description)
	assert.Nil(t, record.PhotoURL)
	assert.NoError(t, record.Validate())
}

func TestParseDetailPageCoordinatesComeInPairs(t *testing.T) {
	page := completeDetail(8, "half-map")
	page.Map = map[string]interface{}{"lat": 51.1605}

	record, err := ParseDetailPage([]byte(page.HTML()), detailURL)
	require.NoError(t, err)
	assert.Nil(t, record.Latitude)
	assert.Nil(t, record.Longitude)
}

func TestParseDetailPageEmptyPhotosAndAddressWithoutComma(t *testing.T) {
	page := completeDetail(9, "no-photos")
	page.Photos = []map[string]interface{}{}
	page.Address = "Астана"

	record, err := ParseDetailPage([]byte(page.HTML()), detailURL)
	require.NoError(t, err)
	assert.Nil(t, record.PhotoURL)
	require.NotNil(t, record.City)
	assert.Equal(t, "Астана", *record.City)
}

func TestParseDetailPageToleratesWrapperText(t *testing.T) {
	raw := completeDetail(10, "wrapped").JSON()
	html := detailPage("var data = " + raw + "; window.__ready && window.__ready();")

	record, err := ParseDetailPage([]byte(html), detailURL)
	require.NoError(t, err)
	assert.Equal(t, "wrapped", record.UniqueKey)
}

func TestParseDetailPageMalformed(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"no script block", "<html><body><script>var x = 1;</script></body></html>"},
		{"no braces", detailPage("window.data = null;")},
		{"broken JSON", detailPage(`window.data = {"advert": {"id": 1,, "price": 2}};`)},
		{"JSON of wrong shape", detailPage(`window.data = {"advert": "text"};`)},
		{"no advert object", detailPage(`window.data = {"adverts": [{"uuid": "x"}]};`)},
		{"no adverts summary", detailFixture{ID: 1, Price: 1, NoAdverts: true}.HTML()},
		{"summary without uuid", detailFixture{ID: 1, Price: 1}.HTML()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDetailPage([]byte(tt.html), detailURL)
			require.Error(t, err)
			assert.True(t, crawlerrors.IsType(err, crawlerrors.ErrorTypeMalformedEmbeddedData), err.Error())
		})
	}
}

func TestExtractObject(t *testing.T) {
	obj, ok := extractObject(`  window.data = {"a": {"b": 1}};  `)
	assert.True(t, ok)
	assert.Equal(t, `{"a": {"b": 1}}`, obj)

	_, ok = extractObject("} reversed {")
	assert.False(t, ok)
}
