package constants

// Имя обменника для событий пайплайна
const ExchangeListings = "listings_exchange"

// Ключи маршрутизации
const (
	RoutingKeyNewListings = "listings.new"
)