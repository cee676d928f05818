package sitefetcher

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/vibtellect/immo-scraper/internal/constants"
	"github.com/vibtellect/immo-scraper/internal/core/domain"
)

// Цепочки селекторов по полям, в порядке убывания предпочтения:
// для каждого поля побеждает первый селектор, давший непустой текст.
// Единый список вместо россыпи почти одинаковых функций извлечения.
var fieldSelectorChains = []struct {
	field     string
	selectors []string
}{
	{"title", []string{"h1.listing-title", "h1[itemprop='name']", "div.ad-header h1", "h1"}},
	{"price", []string{"div.price-block .price-value", "span[itemprop='price']", "span.price", "div.price"}},
	{"location", []string{"div.listing-address", "span[itemprop='address']", "span.location", "div.address"}},
	{"description", []string{"div.listing-description", "div[itemprop='description']", "section.description", "#description"}},
}

// Контейнеры блока характеристик; внутри ожидаются пары label/value.
var attributeContainerSelectors = []string{
	"ul.listing-params li",
	"div.characteristics .characteristics-item",
	"table.params tr",
}

// Галереи изображений, в порядке предпочтения.
var gallerySelectors = []string{
	"div.gallery img",
	"div.carousel img",
	"img.listing-photo",
}

// FetchListingDetails извлекает полную запись объявления по URL.
//
// Никогда не возвращает ошибку: любой сбой дает Listing с заполненными
// только ID, URL и ExtractionError – объявление остается в снапшоте и не
// теряется молча. Извлечение полей строго best-effort: пустое поле не
// ошибка. Запись не имеет побочных эффектов кроме исходящего HTTP-вызова.
func (a *SiteFetcherAdapter) FetchListingDetails(ctx context.Context, listingURL string, propertyType domain.PropertyType) domain.Listing {
	listing := domain.Listing{
		ID:           domain.NormalizeID(listingURL),
		URL:          listingURL,
		PropertyType: propertyType,
		ScrapedAt:    time.Now().UTC(),
	}

	if err := ctx.Err(); err != nil {
		listing.ExtractionError = fmt.Sprintf("cancelled before fetch: %v", err)
		return listing
	}

	collector := a.collector.Clone()
	collector.SetRequestTimeout(a.detailTimeout)

	parsed := false
	collector.OnHTML("html", func(e *colly.HTMLElement) {
		a.populateListing(&listing, e)
		parsed = true
	})

	if visitErr := collector.Visit(listingURL); visitErr != nil {
		listing.ExtractionError = fmt.Sprintf("fetch failed: %v", visitErr)
		return listing
	}
	collector.Wait()

	if !parsed {
		listing.ExtractionError = "no parsable document in response"
	}
	return listing
}

func (a *SiteFetcherAdapter) populateListing(listing *domain.Listing, e *colly.HTMLElement) {
	for _, chain := range fieldSelectorChains {
		text := firstNonEmptyText(e.DOM, chain.selectors)
		switch chain.field {
		case "title":
			listing.Title = text
		case "price":
			if text != "" {
				listing.Price = parsePrice(text)
			}
		case "location":
			listing.Location = text
		case "description":
			listing.Description = text
		}
	}

	listing.Attributes = extractAttributes(e.DOM)
	listing.Images = extractImages(e)
}

// firstNonEmptyText возвращает текст первого селектора цепочки,
// давшего непустой результат.
func firstNonEmptyText(doc *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if text != "" {
			return collapseWhitespace(text)
		}
	}
	return ""
}

// extractAttributes собирает пары "характеристика → значение" из первого
// контейнера, давшего хотя бы одну пару.
func extractAttributes(doc *goquery.Selection) map[string]string {
	for _, containerSel := range attributeContainerSelectors {
		attrs := make(map[string]string)
		doc.Find(containerSel).Each(func(_ int, item *goquery.Selection) {
			label := strings.TrimSpace(item.Find(".label, .param-label, th, dt").First().Text())
			value := strings.TrimSpace(item.Find(".value, .param-value, td, dd").First().Text())

			// Одиночный текст вида "label: value" тоже валиден.
			if label == "" || value == "" {
				if parts := strings.SplitN(strings.TrimSpace(item.Text()), ":", 2); len(parts) == 2 {
					label = strings.TrimSpace(parts[0])
					value = strings.TrimSpace(parts[1])
				}
			}
			if label != "" && value != "" {
				attrs[normalizeAttributeName(label)] = collapseWhitespace(value)
			}
		})
		if len(attrs) > 0 {
			return attrs
		}
	}
	return nil
}

// extractImages собирает URL изображений из первой галереи, давшей хотя
// бы одно, дедуплицирует по URL и обрезает до потолка – это ограничивает
// размер сообщений ниже по конвейеру. Скачиваются только URL.
func extractImages(e *colly.HTMLElement) []string {
	for _, gallerySel := range gallerySelectors {
		var images []string
		seen := make(map[string]struct{})

		e.DOM.Find(gallerySel).Each(func(_ int, img *goquery.Selection) {
			if len(images) >= constants.MaxImagesPerListing {
				return
			}
			src, ok := img.Attr("src")
			if !ok || src == "" {
				src, _ = img.Attr("data-src")
			}
			if src == "" {
				return
			}
			abs := e.Request.AbsoluteURL(src)
			if abs == "" {
				return
			}
			if _, dup := seen[abs]; dup {
				return
			}
			seen[abs] = struct{}{}
			images = append(images, abs)
		})
		if len(images) > 0 {
			return images
		}
	}
	return nil
}

var (
	priceNumberPattern    = regexp.MustCompile(`\d[\d\s\x{00a0}.,]*`)
	commaThousandsPattern = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)
	dotThousandsPattern   = regexp.MustCompile(`^\d{1,3}(\.\d{3})+(,\d+)?$`)
	whitespacePattern     = regexp.MustCompile(`\s+`)
)

// Символы и коды валют, встречающиеся в блоке цены.
var currencyMarkers = []struct {
	marker string
	code   string
}{
	{"$", "USD"}, {"USD", "USD"},
	{"€", "EUR"}, {"EUR", "EUR"},
	{"£", "GBP"}, {"GBP", "GBP"},
	{"₽", "RUB"}, {"RUB", "RUB"},
	{"BYN", "BYN"},
}

// parsePrice разбирает текст блока цены: ищет числовой ряд рядом с
// маркером валюты и нормализует разделители тысяч. Отсутствие числа –
// валидный исход ("цена по запросу"): сырой текст сохраняется,
// Amount остается nil.
func parsePrice(raw string) *domain.Price {
	price := &domain.Price{RawText: collapseWhitespace(raw)}

	for _, cm := range currencyMarkers {
		if strings.Contains(raw, cm.marker) {
			price.Currency = cm.code
			break
		}
	}

	match := priceNumberPattern.FindString(raw)
	if match == "" {
		return price
	}

	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\u00a0' {
			return -1
		}
		return r
	}, strings.TrimSpace(match))
	cleaned = strings.Trim(cleaned, ".,")

	// Группировка тысяч различается по локали: "1,250.50" и "1.250,50"
	// обозначают одну и ту же сумму. Сначала распознаются обе формы
	// группировки, и только потом запятая трактуется как десятичная.
	switch {
	case commaThousandsPattern.MatchString(cleaned):
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case dotThousandsPattern.MatchString(cleaned):
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	default:
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return price
	}
	price.Amount = &amount
	return price
}

func normalizeAttributeName(label string) string {
	return strings.ToLower(collapseWhitespace(strings.TrimRight(strings.TrimSpace(label), ":")))
}

func collapseWhitespace(s string) string {
	return whitespacePattern.ReplaceAllString(strings.TrimSpace(s), " ")
}
