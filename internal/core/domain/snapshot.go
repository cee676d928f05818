package domain

import "time"

// Snapshot – сохраненное состояние для одного FilterKey: единственная
// долговечная сущность системы. Хранится как один объект по стабильному
// ключу и перезаписывается целиком на каждом успешном прогоне
// (не версионируется по дате).
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Listings  []Listing `json:"listings"`
}

// ByID возвращает объявления снапшота, проиндексированные по
// нормализованному ID. Дубликаты ID внутри снапшота – нарушение
// инварианта; при загрузке побеждает первая запись.
func (s *Snapshot) ByID() map[string]Listing {
	index := make(map[string]Listing, len(s.Listings))
	for _, l := range s.Listings {
		id := NormalizeID(l.ID)
		if id == "" {
			id = NormalizeID(l.URL)
		}
		if _, exists := index[id]; exists {
			continue
		}
		index[id] = l
	}
	return index
}

// IDSet возвращает множество нормализованных ID снапшота.
func (s *Snapshot) IDSet() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.Listings))
	for id := range s.ByID() {
		ids[id] = struct{}{}
	}
	return ids
}
