package domain

import "time"

// DiscoveryResult – итог одного вызова постраничного обнаружения.
type DiscoveryResult struct {
	// AllIDs – все уникальные нормализованные ID, найденные на
	// просмотренных страницах (включая пропущенные).
	AllIDs []string
	// NewIDs – ID, отсутствующие в knownIDs; только для них будет
	// выполняться загрузка деталей.
	NewIDs []string
	// SkippedIDs – ID, отсеянные ранним пропуском: найдены в knownIDs,
	// детальный запрос для них не выполнялся.
	SkippedIDs []string
	// IDToURL – канонический URL страницы объявления для каждого ID.
	IDToURL map[string]string

	PagesCrawled  int
	RequestsSaved int
}

// RunResult – эфемерный итог одного прогона пайплайна для одного
// FilterKey. Не сохраняется дольше уведомления, которое он порождает.
type RunResult struct {
	RunID     string
	FilterKey string
	Criteria  Criteria

	NewListings     []Listing
	RemovedListings []Listing
	UnchangedCount  int
	CurrentListings []Listing

	IsFirstRun bool
	// AnomalyWarning выставляется, когда объем "новых" объявлений
	// похож на поломку селекторов, а не на реальный оборот рынка.
	AnomalyWarning bool
	Warnings       []string
	Error          string
}

// RunSummary – выходной объект контракта вызова, агрегированный по всем
// типам недвижимости одного прогона.
type RunSummary struct {
	RunID         string    `json:"run_id"`
	Timestamp     time.Time `json:"timestamp"`
	TotalListings int       `json:"total_listings"`
	NewCount      int       `json:"new_count"`
	RemovedCount  int       `json:"removed_count"`
	Success       bool      `json:"success"`
	Error         string    `json:"error,omitempty"`
}
