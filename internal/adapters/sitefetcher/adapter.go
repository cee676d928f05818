package sitefetcher

import (
	"log"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"
)

// SiteFetcherAdapter отвечает за все взаимодействия с сайтом объявлений.
// Он инкапсулирует в себе настроенный colly.Collector; каждый вызов
// работает на клоне коллектора – клон наследует лимиты, но имеет свои
// собственные обработчики.
type SiteFetcherAdapter struct {
	collector *colly.Collector
	baseURL   string

	// Таймауты различаются по типу запроса: страница выдачи легкая,
	// страница объявления тяжелее (галерея, характеристики). Каждый
	// вызов выставляет свой таймаут на клоне перед обходом.
	pageTimeout   time.Duration
	detailTimeout time.Duration
}

// NewSiteFetcherAdapter – единый конструктор.
// politeDelay задает случайную задержку между запросами к сайту
// (0..politeDelay); тесты передают 0.
func NewSiteFetcherAdapter(baseURL string, pageTimeout, detailTimeout, politeDelay time.Duration) (*SiteFetcherAdapter, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" {
		return nil, &InvalidBaseURLError{BaseURL: baseURL}
	}

	c := colly.NewCollector(colly.AllowedDomains(parsed.Hostname()))
	c.SetRequestTimeout(pageTimeout)

	// Параллелизм на уровне HTTP-запросов равен 1: последовательный
	// обход – осознанный выбор в пользу незаметности, а не скорости.
	// Случайная задержка делает поведение менее предсказуемым.
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  parsed.Hostname(),
		Parallelism: 1,
		RandomDelay: politeDelay,
	}); err != nil {
		return nil, err
	}

	// Ротация User-Agent и Referer эффективнее одного статического
	// заголовка.
	extensions.RandomUserAgent(c)
	extensions.Referer(c)

	c.OnError(func(r *colly.Response, err error) {
		log.Printf("SiteFetcher: Error during request to %s: Status=%d, Error=%v", r.Request.URL, r.StatusCode, err)
	})
	c.OnRequest(func(r *colly.Request) {
		log.Printf("SiteFetcher: Making request to %s", r.URL.String())
	})

	return &SiteFetcherAdapter{
		collector:     c,
		baseURL:       baseURL,
		pageTimeout:   pageTimeout,
		detailTimeout: detailTimeout,
	}, nil
}

// InvalidBaseURLError сигнализирует о непригодном базовом URL сайта.
type InvalidBaseURLError struct {
	BaseURL string
}

func (e *InvalidBaseURLError) Error() string {
	return "site fetcher: invalid base URL: " + e.BaseURL
}
