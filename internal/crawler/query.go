package crawler

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// DefaultBaseURL is the site root
const DefaultBaseURL = "https://krisha.kz"

const salePath = "/prodazha/kvartiry/"

// City is a site region code
type City int

const (
	CityAny City = iota
	CityAlmaty
	CityAstana
	CityShymkent
	CityAbayRegion
	CityAkmolaRegion
	CityAktobeRegion
	CityAlmatyRegion
	CityAtyrauRegion
	CityEastKazakhstanRegion
	CityZhambylRegion
	CityJetisuRegion
	CityWestKazakhstanRegion
	CityKaragandaRegion
	CityKostanayRegion
	CityKyzylordaRegion
	CityMangystauRegion
	CityPavlodarRegion
	CityNorthKazakhstanRegion
	CitySouthKazakhstanRegion
	CityUlytauRegion
)

var cityPaths = [...]string{
	CityAny:                   "",
	CityAlmaty:                "almaty/",
	CityAstana:                "astana/",
	CityShymkent:              "shymkent/",
	CityAbayRegion:            "abay-oblast/",
	CityAkmolaRegion:          "akmolinskaja-oblast/",
	CityAktobeRegion:          "aktjubinskaja-oblast/",
	CityAlmatyRegion:          "almatinskaja-oblast/",
	CityAtyrauRegion:          "atyrauskaja-oblast/",
	CityEastKazakhstanRegion:  "vostochno-kazahstanskaja-oblast/",
	CityZhambylRegion:         "zhambylskaja-oblast/",
	CityJetisuRegion:          "jetisyskaya-oblast/",
	CityWestKazakhstanRegion:  "zapadno-kazahstanskaja-oblast/",
	CityKaragandaRegion:       "karagandinskaja-oblast/",
	CityKostanayRegion:        "kostanajskaja-oblast/",
	CityKyzylordaRegion:       "kyzylordinskaja-oblast/",
	CityMangystauRegion:       "mangistauskaja-oblast/",
	CityPavlodarRegion:        "pavlodarskaja-oblast/",
	CityNorthKazakhstanRegion: "severo-kazahstanskaja-oblast/",
	CitySouthKazakhstanRegion: "juzhno-kazahstanskaja-oblast/",
	CityUlytauRegion:          "ulitayskay-oblast/",
}

// PathSegment returns the city's path segment; unknown codes search the whole country
func (c City) PathSegment() string {
	if c < 0 || int(c) >= len(cityPaths) {
		return cityPaths[CityAny]
	}
	return cityPaths[c]
}

// Compound parameter convention of the site: "?das<clause>&das<clause>"
const (
	paramPrefix    = "?das"
	paramDelimiter = "&das"
)

// "5" stands for five or more rooms on the site
var fiveRoomsRe = regexp.MustCompile(`\b5\b`)

// QueryBuilder turns crawl filters into a search URL
type QueryBuilder struct {
	BaseURL string
}

// NewQueryBuilder creates a builder for the given site root
func NewQueryBuilder(baseURL string) QueryBuilder {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return QueryBuilder{BaseURL: strings.TrimRight(baseURL, "/")}
}

// BuildSearchURL builds the search URL on the default site root
func BuildSearchURL(cfg CrawlConfig) string {
	return NewQueryBuilder(DefaultBaseURL).Build(cfg)
}

// Build returns the canonical search URL for cfg. The result depends only on cfg.
func (b QueryBuilder) Build(cfg CrawlConfig) string {
	base := b.BaseURL + salePath + cfg.City.PathSegment()

	var params []string
	if cfg.HasPhoto {
		params = append(params, "[_sys.hasphoto]=1")
	}
	if clause := roomsClause(cfg.Rooms); clause != "" {
		params = append(params, clause)
	}
	if cfg.PriceFrom != nil && *cfg.PriceFrom > 0 {
		params = append(params, "[price][from]="+millionsToUnits(*cfg.PriceFrom))
	}
	if cfg.PriceTo != nil && *cfg.PriceTo > 0 {
		params = append(params, "[price][to]="+millionsToUnits(*cfg.PriceTo))
	}
	if cfg.OwnerOnly {
		params = append(params, "[who]=1")
	}

	if len(params) == 0 {
		return base
	}
	return base + paramPrefix + strings.Join(params, paramDelimiter)
}

func roomsClause(rooms []int) string {
	sorted := slices.Clone(rooms)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	switch len(sorted) {
	case 0:
		return ""
	case 1:
		return "[live.rooms]=" + strconv.Itoa(sorted[0])
	}

	clauses := make([]string, len(sorted))
	for i, r := range sorted {
		clauses[i] = "[live.rooms][]=" + strconv.Itoa(r)
	}
	return fiveRoomsRe.ReplaceAllString(strings.Join(clauses, paramDelimiter), "5.100")
}

func millionsToUnits(millions float64) string {
	return strconv.FormatInt(int64(millions*1_000_000), 10)
}
