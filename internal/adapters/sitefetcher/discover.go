package sitefetcher

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/vibtellect/immo-scraper/internal/constants"
	"github.com/vibtellect/immo-scraper/internal/core/domain"
)

// Упорядоченные паттерны ссылок на объявления: первый паттерн, давший
// хоть одну ссылку на странице, используется для всей страницы – это
// не дает смешивать наборы ссылок разной формы и стабилизирует выдачу.
var listingLinkPatterns = []string{
	"a[href*='/adv/']",
	"article.listing-card a[href]",
	"div.search-results a.listing-link[href]",
}

// Эвристики ссылки "следующая страница", в порядке предпочтения.
var nextPagePatterns = []string{
	"a[rel='next']",
	"a.pagination-next",
	"ul.pagination li.next a",
}

// buildSearchURL строит URL первой страницы выдачи из критериев.
func (a *SiteFetcherAdapter) buildSearchURL(criteria domain.Criteria) string {
	searchURL := a.baseURL + "/" + constants.PathSegmentFor(criteria.PropertyType)

	queryParams := url.Values{}
	if criteria.PriceMax > 0 {
		queryParams.Set("pmax", strconv.Itoa(criteria.PriceMax))
	}
	if criteria.District != "" {
		queryParams.Set("district", criteria.District)
	}
	if len(queryParams) > 0 {
		searchURL += "?" + queryParams.Encode()
	}
	return searchURL
}

// DiscoverListings выполняет постраничное обнаружение ID объявлений.
//
// Определяющее свойство – ранний пропуск: как только нормализованный ID
// найден в knownIDs, он попадает в SkippedIDs и исключается из NewIDs,
// оставаясь в AllIDs. Детальный запрос для пропущенного ID не выдается
// никогда – уже в рамках текущего прогона, а не только между прогонами.
func (a *SiteFetcherAdapter) DiscoverListings(ctx context.Context, criteria domain.Criteria, knownIDs map[string]struct{}) (*domain.DiscoveryResult, error) {
	collector := a.collector.Clone()
	collector.SetRequestTimeout(a.pageTimeout)

	maxPages := criteria.MaxPages
	if maxPages <= 0 {
		maxPages = constants.DefaultMaxPages
	}

	result := &domain.DiscoveryResult{IDToURL: make(map[string]string)}
	seen := make(map[string]struct{})

	// Обработчик наполняет эти переменные для текущей страницы;
	// обход строго последовательный, гонок нет.
	var pageLinks []string
	var nextPageURL string

	collector.OnHTML("html", func(e *colly.HTMLElement) {
		pageLinks = extractPageLinks(e)
		nextPageURL = extractNextPageURL(e)
	})

	pageURL := a.buildSearchURL(criteria)
	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			if page == 1 {
				return nil, fmt.Errorf("site fetcher: discovery cancelled: %w", err)
			}
			log.Printf("SiteFetcher: discovery cancelled on page %d, returning partial result\n", page)
			break
		}

		pageLinks = nil
		nextPageURL = ""

		visitErr := collector.Visit(pageURL)
		collector.Wait()

		if visitErr != nil {
			// Сбой первой страницы фатален; поздняя страница завершает
			// пагинацию, сохранив собранное – обход, дошедший до
			// страницы 6 из 10, не выбрасывает страницы 1-5.
			if page == 1 {
				return nil, fmt.Errorf("site fetcher: failed to fetch first results page %s: %w", pageURL, visitErr)
			}
			log.Printf("SiteFetcher: page %d failed (%v), returning partial result\n", page, visitErr)
			break
		}
		result.PagesCrawled++

		if len(pageLinks) == 0 && page == 1 {
			// Ноль кандидатов на первой странице – скорее всего,
			// сменилась верстка сайта. Ошибка, а не молчаливый ноль.
			return nil, fmt.Errorf("site fetcher: no listing links found on first results page %s (selectors broken?)", pageURL)
		}

		for _, link := range pageLinks {
			id := domain.NormalizeID(link)
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			result.AllIDs = append(result.AllIDs, id)
			result.IDToURL[id] = link

			if _, known := knownIDs[id]; known {
				result.SkippedIDs = append(result.SkippedIDs, id)
				result.RequestsSaved++
				continue
			}
			result.NewIDs = append(result.NewIDs, id)
		}

		if nextPageURL == "" {
			break
		}
		pageURL = nextPageURL
	}

	log.Printf("SiteFetcher: discovery for filter '%s' done: %d ids (%d new, %d skipped) on %d pages\n",
		criteria.FilterKey(), len(result.AllIDs), len(result.NewIDs), len(result.SkippedIDs), result.PagesCrawled)
	return result, nil
}

// extractPageLinks применяет паттерны ссылок по порядку: побеждает
// первый, давший хоть одну ссылку на этой странице.
func extractPageLinks(e *colly.HTMLElement) []string {
	for _, pattern := range listingLinkPatterns {
		sel := e.DOM.Find(pattern)
		if sel.Length() == 0 {
			continue
		}

		var links []string
		sel.Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			if !ok || href == "" {
				return
			}
			if abs := e.Request.AbsoluteURL(href); abs != "" {
				links = append(links, abs)
			}
		})
		if len(links) > 0 {
			return links
		}
	}
	return nil
}

func extractNextPageURL(e *colly.HTMLElement) string {
	for _, pattern := range nextPagePatterns {
		href, ok := e.DOM.Find(pattern).First().Attr("href")
		if ok && href != "" {
			return e.Request.AbsoluteURL(href)
		}
	}
	return ""
}
