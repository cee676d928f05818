package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/vibtellect/immo-scraper/internal/constants"
	"github.com/vibtellect/immo-scraper/internal/core/domain"
	"github.com/vibtellect/immo-scraper/internal/core/port"
)

// NotifyOptions – параметры дисциплины доставки. Нулевые значения
// заменяются константами политики; тесты задают наносекундные задержки.
type NotifyOptions struct {
	NewLimit           int
	RemovedDetailLimit int
	RetryLimit         int
	BaseDelay          time.Duration
	DelayStep          time.Duration
	MaxDelay           time.Duration
	BackoffStart       time.Duration
}

// NotifyUseCase – диспетчер уведомлений. Побочные эффекты строго
// исходящие: снапшот и RunResult никогда не мутируются.
type NotifyUseCase struct {
	messenger port.MessengerPort // nil => конечная точка не сконфигурирована
	opts      NotifyOptions
}

// NewNotifyUseCase создает новый диспетчер уведомлений.
func NewNotifyUseCase(messenger port.MessengerPort, opts NotifyOptions) *NotifyUseCase {
	if opts.NewLimit <= 0 {
		opts.NewLimit = constants.DefaultNotifyNewLimit
	}
	if opts.RemovedDetailLimit <= 0 {
		opts.RemovedDetailLimit = constants.DefaultRemovedDetailLimit
	}
	if opts.RetryLimit <= 0 {
		opts.RetryLimit = constants.NotifyRetryLimit
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = constants.NotifyBaseDelay
	}
	if opts.DelayStep <= 0 {
		opts.DelayStep = constants.NotifyDelayStep
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = constants.NotifyMaxDelay
	}
	if opts.BackoffStart <= 0 {
		opts.BackoffStart = constants.NotifyBackoffStart
	}
	return &NotifyUseCase{messenger: messenger, opts: opts}
}

// Notify отправляет сводку прогона и, при необходимости, сообщения по
// каждому новому объявлению. Возвращает true, если хоть что-то было
// доставлено. Ошибки доставки логируются и не прерывают очередь:
// объявления к этому моменту уже надежно сохранены.
func (uc *NotifyUseCase) Notify(ctx context.Context, result *domain.RunResult, force bool) (bool, error) {
	if uc.messenger == nil {
		log.Println("NotifyUseCase: messenger is not configured, skipping notifications")
		return false, nil
	}
	if result.IsFirstRun && !force {
		log.Printf("NotifyUseCase: first run for filter '%s', seeding silently\n", result.FilterKey)
		return false, nil
	}

	d := &dispatch{uc: uc, ctx: ctx}

	d.sendText(uc.buildSummary(result), port.SendOptions{DisableLinkPreview: true})

	if len(result.RemovedListings) > 0 {
		d.sendText(uc.buildRemoved(result), port.SendOptions{DisableLinkPreview: true})
	}

	switch {
	case len(result.NewListings) == 0:
		// Нечего перечислять.
	case len(result.NewListings) > uc.opts.NewLimit && !force:
		// Защита бюджета скорости: вместо поштучной детализации – одно
		// сообщение о превышении.
		d.sendText(fmt.Sprintf(
			"Too many new listings to detail (%d > limit %d). See the site for the full set.",
			len(result.NewListings), uc.opts.NewLimit), port.SendOptions{DisableLinkPreview: true})
	default:
		for i := range result.NewListings {
			listing := &result.NewListings[i]
			d.sendText(uc.buildListingMessage(listing), port.SendOptions{})
			uc.sendImages(d, listing)
		}
	}

	if d.failures > 0 {
		log.Printf("NotifyUseCase: %d of %d messages failed to deliver for filter '%s'\n", d.failures, d.index, result.FilterKey)
	}
	return d.index > d.failures, nil
}

// NotifyFailure отправляет принудительное уведомление о фатальной ошибке
// прогона (сбой обнаружения на первой странице или сбой персистентности).
func (uc *NotifyUseCase) NotifyFailure(ctx context.Context, runID, filterKey string, runErr error) {
	if uc.messenger == nil {
		return
	}
	d := &dispatch{uc: uc, ctx: ctx}
	d.sendText(fmt.Sprintf("❌ Run %s failed for filter %s:\n%v", runID, filterKey, runErr),
		port.SendOptions{DisableLinkPreview: true})
}

func (uc *NotifyUseCase) sendImages(d *dispatch, listing *domain.Listing) {
	switch {
	case len(listing.Images) == 0:
	case len(listing.Images) == 1:
		d.send(func(ctx context.Context) error {
			return uc.messenger.SendPhoto(ctx, listing.Images[0], listing.Title)
		})
	default:
		d.send(func(ctx context.Context) error {
			return uc.messenger.SendPhotoGroup(ctx, listing.Images, listing.Title)
		})
	}
}

// dispatch ведет счетчик сообщений внутри одной серии: от номера зависит
// минимальная пауза перед отправкой.
type dispatch struct {
	uc       *NotifyUseCase
	ctx      context.Context
	index    int
	failures int
}

func (d *dispatch) sendText(text string, opts port.SendOptions) {
	for _, part := range splitText(text, d.uc.messenger.MaxTextLength()) {
		part := part
		d.send(func(ctx context.Context) error {
			return d.uc.messenger.SendText(ctx, part, opts)
		})
	}
}

func (d *dispatch) send(fn func(ctx context.Context) error) {
	if d.index > 0 {
		if err := sleepCtx(d.ctx, d.uc.interMessageDelay(d.index)); err != nil {
			d.failures++
			d.index++
			return
		}
	}
	d.index++

	if err := d.uc.sendWithRetry(d.ctx, fn); err != nil {
		// Логируем и продолжаем очередь: частичная доставка лучше
		// оборванной.
		log.Printf("NotifyUseCase: message %d delivery failed: %v\n", d.index, err)
		d.failures++
	}
}

// interMessageDelay возвращает минимальную паузу перед сообщением с
// данным номером: первые сообщения идут быстрее, последующие медленнее –
// аппроксимация скользящего окна лимита без сигнала обратной связи.
func (uc *NotifyUseCase) interMessageDelay(index int) time.Duration {
	base := uc.opts.BaseDelay
	step := uc.opts.DelayStep
	maxDelay := uc.opts.MaxDelay
	if index < 3 {
		return base
	}
	d := base + time.Duration(index-2)*step
	if maxDelay > 0 && d > maxDelay {
		return maxDelay
	}
	return d
}

// sendWithRetry повторяет отправку при троттлинге с экспоненциальным
// backoff, уважая RetryAfter конечной точки.
func (uc *NotifyUseCase) sendWithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := uc.opts.BackoffStart
	var lastErr error

	for attempt := 0; attempt <= uc.opts.RetryLimit; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, port.ErrThrottled) {
			return lastErr
		}
		if attempt == uc.opts.RetryLimit {
			break
		}

		wait := backoff
		var throttled *port.ThrottledError
		if errors.As(lastErr, &throttled) && throttled.RetryAfter > wait {
			wait = throttled.RetryAfter
		}
		log.Printf("NotifyUseCase: throttled by endpoint, retrying in %s (attempt %d/%d)\n", wait, attempt+1, uc.opts.RetryLimit)
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
		backoff *= 2
	}
	return fmt.Errorf("notify use case: retries exhausted: %w", lastErr)
}

func (uc *NotifyUseCase) buildSummary(result *domain.RunResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏠 Listing sync %s\n", result.FilterKey)
	if result.IsFirstRun {
		b.WriteString("First run: snapshot seeded.\n")
	}
	fmt.Fprintf(&b, "Current: %d | New: %d | Removed: %d | Unchanged: %d\n",
		len(result.CurrentListings), len(result.NewListings), len(result.RemovedListings), result.UnchangedCount)
	for _, w := range result.Warnings {
		fmt.Fprintf(&b, "⚠️ %s\n", w)
	}
	if result.Error != "" {
		fmt.Fprintf(&b, "❌ %s\n", result.Error)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (uc *NotifyUseCase) buildRemoved(result *domain.RunResult) string {
	removed := result.RemovedListings
	if len(removed) > uc.opts.RemovedDetailLimit {
		return fmt.Sprintf("➖ %d listings disappeared since the last run.", len(removed))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "➖ %d listings disappeared:\n", len(removed))
	for _, l := range removed {
		title := l.Title
		if title == "" {
			title = "listing " + l.ID
		}
		fmt.Fprintf(&b, "• %s — %s\n", title, formatPrice(l.Price))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (uc *NotifyUseCase) buildListingMessage(l *domain.Listing) string {
	var b strings.Builder
	if l.Title != "" {
		fmt.Fprintf(&b, "🆕 %s\n", l.Title)
	} else {
		fmt.Fprintf(&b, "🆕 Listing %s\n", l.ID)
	}
	fmt.Fprintf(&b, "💰 %s\n", formatPrice(l.Price))
	if l.Location != "" {
		fmt.Fprintf(&b, "📍 %s\n", l.Location)
	}
	for _, key := range []string{"rooms", "area", "floor"} {
		if v, ok := l.Attributes[key]; ok {
			fmt.Fprintf(&b, "%s: %s\n", key, v)
		}
	}
	if l.ExtractionError != "" {
		b.WriteString("(details could not be extracted)\n")
	}
	b.WriteString(l.URL)
	return b.String()
}

func formatPrice(p *domain.Price) string {
	switch {
	case p == nil:
		return "price unknown"
	case p.Amount == nil:
		if p.RawText != "" {
			return p.RawText
		}
		return "price on request"
	default:
		return strings.TrimSpace(fmt.Sprintf("%.0f %s", *p.Amount, p.Currency))
	}
}

// splitText режет текст сверх лимита по границам строк; каждая часть,
// кроме первой, получает маркер "part i/n".
func splitText(text string, limit int) []string {
	if limit <= 0 || len([]rune(text)) <= limit {
		return []string{text}
	}

	// Маркер резервирует место в каждой части.
	const markerReserve = 16
	budget := limit - markerReserve
	if budget < 1 {
		budget = 1
	}

	var chunks []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, string(current))
			current = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		runes := []rune(line)
		// Строка длиннее бюджета режется жестко.
		for len(runes) > budget {
			flush()
			chunks = append(chunks, string(runes[:budget]))
			runes = runes[budget:]
		}
		if len(current)+len(runes)+1 > budget {
			flush()
		}
		if len(current) > 0 {
			current = append(current, '\n')
		}
		current = append(current, runes...)
	}
	flush()

	if len(chunks) <= 1 {
		return chunks
	}
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		if i == 0 {
			parts[i] = c
			continue
		}
		parts[i] = fmt.Sprintf("part %d/%d\n%s", i+1, len(chunks), c)
	}
	return parts
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
