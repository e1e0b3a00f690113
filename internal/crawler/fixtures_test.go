package crawler

import (
	"encoding/json"
	"fmt"
	"strings"
)

// listingFixture renders a search results page the way the site lays it out
type listingFixture struct {
	Caption  string
	Pages    int // 0 renders no paginator
	Cards    []string
	NextHref string
	NoList   bool
}

func (f listingFixture) HTML() string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><title>Продажа квартир</title></head><body>\n")
	if f.Caption != "" {
		fmt.Fprintf(&b, "<div class=\"a-search-subtitle\">\n  %s\n</div>\n", f.Caption)
	}
	if !f.NoList {
		b.WriteString("<section class=\"a-search-list\">\n")
		b.WriteString("<div class=\"a-search-banner\"><a class=\"a-card__title\" href=\"/promo\">promo</a></div>\n")
		for i, href := range f.Cards {
			fmt.Fprintf(&b, "<div class=\"a-card\" data-id=\"%d\">\n", 1000+i)
			fmt.Fprintf(&b, "  <a class=\"a-card__image\" href=\"%s\"><img src=\"/img/%d.jpg\"></a>\n", href, i)
			fmt.Fprintf(&b, "  <a class=\"a-card__title\" href=\"%s\">2-комнатная квартира</a>\n", href)
			b.WriteString("</div>\n")
		}
		b.WriteString("</section>\n")
	}
	if f.Pages > 0 {
		b.WriteString("<nav class=\"paginator\">\n")
		for p := 1; p <= f.Pages; p++ {
			fmt.Fprintf(&b, "  <a class=\"paginator__btn\" href=\"?page=%d\">%d</a>\n", p, p)
		}
		if f.NextHref != "" {
			fmt.Fprintf(&b, "  <a class=\"paginator__btn paginator__btn--next\" href=\"%s\">Дальше</a>\n", f.NextHref)
		} else {
			b.WriteString("  <span class=\"paginator__btn\">Дальше</span>\n")
		}
		b.WriteString("</nav>\n")
	}
	b.WriteString("</body></html>\n")
	return b.String()
}

func cardHrefs(n, offset int) []string {
	hrefs := make([]string, n)
	for i := range hrefs {
		hrefs[i] = fmt.Sprintf("/a/show/%d", 680000000+offset+i)
	}
	return hrefs
}

// detailFixture renders a detail page with its jsdata script block
type detailFixture struct {
	ID          int64
	UUID        string
	Rooms       interface{}
	Square      interface{}
	Price       interface{}
	Address     interface{}
	Description interface{}
	Map         map[string]interface{}
	Photos      []map[string]interface{}
	NoAdverts   bool
}

func (f detailFixture) JSON() string {
	advert := map[string]interface{}{
		"id":     f.ID,
		"rooms":  f.Rooms,
		"square": f.Square,
		"price":  f.Price,
	}
	if f.Map != nil {
		advert["map"] = f.Map
	}
	if f.Photos != nil {
		advert["photos"] = f.Photos
	}
	data := map[string]interface{}{"advert": advert}
	if !f.NoAdverts {
		data["adverts"] = []map[string]interface{}{{
			"id":          f.ID,
			"uuid":        f.UUID,
			"description": f.Description,
			"fullAddress": f.Address,
		}}
	}
	out, err := json.Marshal(data)
	if err != nil {
		panic(err)
	}
	return string(out)
}

func (f detailFixture) HTML() string {
	return detailPage("window.data = " + f.JSON() + ";")
}

func detailPage(script string) string {
	return "<!DOCTYPE html><html><head><title>Квартира</title></head><body>\n" +
		"<div class=\"offer\">...</div>\n" +
		"<script id=\"jsdata\">\n  " + script + "\n</script>\n" +
		"</body></html>\n"
}

func completeDetail(id int64, uuid string) detailFixture {
	return detailFixture{
		ID:          id,
		UUID:        uuid,
		Rooms:       2,
		Square:      54.5,
		Price:       32500000,
		Address:     "Алматы, Бостандыкский р-н, Тимирязева 42",
		Description: "Светлая квартира с ремонтом",
		Map:         map[string]interface{}{"lat": 43.2389, "lon": 76.8897},
		Photos: []map[string]interface{}{
			{"src": "https://photos.krisha.kz/1-full.jpg"},
			{"src": "https://photos.krisha.kz/2-full.jpg"},
		},
	}
}
