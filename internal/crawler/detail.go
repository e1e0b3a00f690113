package crawler

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"sjsage522/krishaworker/helpers"
	crawlerrors "sjsage522/krishaworker/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// DetailDataSelector locates the script block carrying the listing's data
const DetailDataSelector = "script#jsdata"

// embeddedData is the object assigned inside the jsdata script
type embeddedData struct {
	Advert  *embeddedAdvert   `json:"advert"`
	Adverts []embeddedSummary `json:"adverts"`
}

type embeddedAdvert struct {
	ID     *float64        `json:"id"`
	Rooms  *float64        `json:"rooms"`
	Square *float64        `json:"square"`
	Price  *float64        `json:"price"`
	Map    *embeddedMap    `json:"map"`
	Photos []embeddedPhoto `json:"photos"`
}

type embeddedMap struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

type embeddedPhoto struct {
	Src string `json:"src"`
}

type embeddedSummary struct {
	UUID        string  `json:"uuid"`
	Description *string `json:"description"`
	FullAddress *string `json:"fullAddress"`
}

// ParseDetailPage extracts a listing from its detail page. A listing without a
// price is returned as is; callers check ListingRecord.Validate before persisting.
func ParseDetailPage(content []byte, sourceURL string) (ListingRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return ListingRecord{}, crawlerrors.NewMalformedEmbeddedData(sourceURL, "unparseable document", err)
	}

	script := doc.Find(DetailDataSelector).First()
	if script.Length() == 0 {
		return ListingRecord{}, crawlerrors.NewMalformedEmbeddedData(sourceURL, "no "+DetailDataSelector+" block", nil)
	}

	raw, ok := extractObject(script.Text())
	if !ok {
		return ListingRecord{}, crawlerrors.NewMalformedEmbeddedData(sourceURL, "no JSON object in "+DetailDataSelector, nil)
	}

	var data embeddedData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return ListingRecord{}, crawlerrors.NewMalformedEmbeddedData(sourceURL, "undecodable JSON object", err)
	}
	if data.Advert == nil || data.Advert.ID == nil {
		return ListingRecord{}, crawlerrors.NewMalformedEmbeddedData(sourceURL, "missing advert object", nil)
	}
	if len(data.Adverts) == 0 || data.Adverts[0].UUID == "" {
		return ListingRecord{}, crawlerrors.NewMalformedEmbeddedData(sourceURL, "missing adverts summary", nil)
	}

	return buildRecord(data.Advert, data.Adverts[0], sourceURL), nil
}

// extractObject returns the text between the first '{' and the last '}'
func extractObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

func buildRecord(advert *embeddedAdvert, summary embeddedSummary, sourceURL string) ListingRecord {
	record := ListingRecord{
		ExternalID:  int64(*advert.ID),
		UniqueKey:   summary.UUID,
		SourceURL:   sourceURL,
		Area:        advert.Square,
		Description: nonEmpty(summary.Description),
	}

	if advert.Rooms != nil {
		rooms := int(*advert.Rooms)
		record.Rooms = &rooms
	}
	if advert.Price != nil {
		price := int64(math.Round(*advert.Price))
		record.Price = &price
	}

	if address := nonEmpty(summary.FullAddress); address != nil {
		record.City = nonEmpty(strPtr(helpers.BeforeComma(*address)))
	}

	// Coordinates come as a pair or not at all
	if advert.Map != nil && advert.Map.Lat != nil && advert.Map.Lon != nil {
		record.Latitude = advert.Map.Lat
		record.Longitude = advert.Map.Lon
	}

	if len(advert.Photos) > 0 {
		record.PhotoURL = nonEmpty(strPtr(advert.Photos[0].Src))
	}

	return record
}

func strPtr(s string) *string {
	return &s
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
