package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/rentwatch/internal/models"
)

// Parser extracts listing records from the listings page markup with goquery.
// Extraction is defensive throughout: a missing container yields a sentinel
// or an empty field, never an error, so one malformed item cannot take down
// a crawl.
type Parser struct {
	origin    string
	maxImages int
	logger    arbor.ILogger
}

// NewParser creates a parser. origin is used to absolutize relative links;
// maxImages caps the image URLs kept per listing, 0 or less meaning no cap.
func NewParser(origin string, maxImages int, logger arbor.ILogger) *Parser {
	return &Parser{
		origin:    strings.TrimSuffix(origin, "/"),
		maxImages: maxImages,
		logger:    logger,
	}
}

// ParseListings parses every listing item out of a results page body.
// Items without a title are skipped. A document that matches nothing returns
// an empty slice.
func (p *Parser) ParseListings(body string) []*models.Listing {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		p.logger.Warn().Err(err).Msg("Failed to parse listings document")
		return nil
	}

	var listings []*models.Listing
	doc.Find(".item").Each(func(_ int, item *goquery.Selection) {
		listing := p.parseItem(item)
		if listing == nil {
			return
		}
		listings = append(listings, listing)
	})

	p.logger.Debug().Int("count", len(listings)).Msg("Parsed listings page")
	return listings
}

func (p *Parser) parseItem(item *goquery.Selection) *models.Listing {
	titleLink := item.Find(".item-info-title a").First()
	title := strings.TrimSpace(titleLink.Text())
	if title == "" {
		return nil
	}

	listing := &models.Listing{
		Title:     title,
		Link:      p.absoluteURL(titleLink.AttrOr("href", "")),
		PriceText: strings.TrimSpace(item.Find(".item-info-price").First().Text()),
	}

	item.Find(".item-img img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		if p.maxImages > 0 && len(listing.ImageURLs) >= p.maxImages {
			return false
		}
		src := strings.TrimSpace(img.AttrOr("data-src", ""))
		if src == "" {
			src = strings.TrimSpace(img.AttrOr("src", ""))
		}
		if src != "" {
			listing.ImageURLs = append(listing.ImageURLs, src)
		}
		return true
	})

	item.Find(".item-info-tag span").Each(func(_ int, tag *goquery.Selection) {
		if text := strings.TrimSpace(tag.Text()); text != "" {
			listing.Tags = append(listing.Tags, text)
		}
	})

	listing.HouseType, listing.Rooms = parseLayout(item.Find(".item-style").First())
	listing.MetroValueText, listing.StationName = parseMetro(item.Find(".item-info-txt").First())

	listing.PropertyID = models.DerivePropertyID(listing.Link, listing.Title, listing.StationName)
	return listing
}

// parseLayout reads the style container: the first span without a class is the
// house type, the first span.line is the room layout. Missing or "-" values
// map to the unknown sentinels.
func parseLayout(style *goquery.Selection) (houseType, rooms string) {
	houseType = models.UnknownHouseType
	rooms = models.UnknownRooms

	style.Find("span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
		text := strings.TrimSpace(span.Text())
		if text == "" || text == "-" {
			return true
		}
		if span.HasClass("line") {
			if rooms == models.UnknownRooms {
				rooms = text
			}
		} else if houseType == models.UnknownHouseType {
			houseType = text
		}
		return !(houseType != models.UnknownHouseType && rooms != models.UnknownRooms)
	})

	return houseType, rooms
}

// parseMetro reads the metro info line: the strong element carries the
// distance text, its sibling span the station name.
func parseMetro(info *goquery.Selection) (metroValueText, stationName string) {
	metroValueText = strings.TrimSpace(info.Find("strong").First().Text())
	stationName = strings.TrimSpace(info.Find("span").First().Text())
	return metroValueText, stationName
}

// absoluteURL resolves href against the site origin when it is relative.
func (p *Parser) absoluteURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return p.origin + href
	}
	return p.origin + "/" + href
}
