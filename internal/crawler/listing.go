package crawler

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"

	"sjsage522/krishaworker/helpers"
	crawlerrors "sjsage522/krishaworker/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// PageCapacity is the number of cards the site renders per search page
const PageCapacity = 20

// ListingSelectors contains CSS selectors for a search results page
type ListingSelectors struct {
	Caption   string
	Paginator string
	Container string
	Card      string
	CardLink  string
	Next      string
}

// DefaultListingSelectors matches the current search page layout
var DefaultListingSelectors = ListingSelectors{
	Caption:   "div.a-search-subtitle",
	Paginator: "nav.paginator",
	Container: "section.a-search-list",
	Card:      "div[data-id]",
	CardLink:  "a.a-card__title",
	Next:      "a.paginator__btn--next",
}

// ParseListingPage parses a search results page fetched from pageURL.
// pageIndex is the 1-based position of the page in the crawl.
func ParseListingPage(content []byte, pageURL string, pageIndex int) (ListingPageResult, error) {
	return DefaultListingSelectors.Parse(content, pageURL, pageIndex)
}

// Parse parses a search results page with these selectors. Later pages
// without a paginator take their page count from the total.
func (s ListingSelectors) Parse(content []byte, pageURL string, pageIndex int) (ListingPageResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return ListingPageResult{}, crawlerrors.New(crawlerrors.ErrorTypeMissingSection, pageURL, "unparseable document", err)
	}

	caption := doc.Find(s.Caption).First()
	if caption.Length() == 0 {
		return ListingPageResult{}, crawlerrors.NewMissingSection(pageURL, s.Caption)
	}
	total, ok := helpers.FirstNumber(caption.Text())
	if !ok {
		return ListingPageResult{}, crawlerrors.NewMissingSection(pageURL, s.Caption+" count")
	}

	result := ListingPageResult{TotalCount: total, PageCount: 1}
	if total > PageCapacity {
		pages, err := s.pageCount(doc, pageURL)
		if err != nil {
			// only the first page has to carry the paginator
			if pageIndex <= 1 {
				return ListingPageResult{}, err
			}
			pages = (total + PageCapacity - 1) / PageCapacity
		}
		result.PageCount = pages
	}

	container := doc.Find(s.Container).First()
	if container.Length() == 0 {
		return ListingPageResult{}, crawlerrors.NewMissingSection(pageURL, s.Container)
	}

	container.Find(s.Card).Each(func(_ int, card *goquery.Selection) {
		href, exists := card.Find(s.CardLink).First().Attr("href")
		if !exists || strings.TrimSpace(href) == "" {
			return
		}
		result.DetailURLs = append(result.DetailURLs, ResolveURL(pageURL, href))
	})

	if result.PageCount > pageIndex {
		if href, exists := doc.Find(s.Next).First().Attr("href"); exists && strings.TrimSpace(href) != "" {
			next := ResolveURL(pageURL, href)
			result.NextPageURL = &next
		}
	}

	return result, nil
}

// pageCount reads the second-to-last token of the paginator ("1 2 3 Дальше")
func (s ListingSelectors) pageCount(doc *goquery.Document, pageURL string) (int, error) {
	paginator := doc.Find(s.Paginator).First()
	if paginator.Length() == 0 {
		return 0, crawlerrors.NewMissingSection(pageURL, s.Paginator)
	}
	token, ok := helpers.SecondToLastField(paginator.Text())
	if !ok {
		return 0, crawlerrors.NewMissingSection(pageURL, s.Paginator+" page count")
	}
	pages, err := strconv.Atoi(token)
	if err != nil || pages < 1 {
		return 0, crawlerrors.New(crawlerrors.ErrorTypeMissingSection, pageURL, "paginator page count "+strconv.Quote(token), err)
	}
	return pages, nil
}

// ResolveURL resolves href against the page it was found on
func ResolveURL(pageURL, href string) string {
	href = strings.TrimSpace(href)
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
