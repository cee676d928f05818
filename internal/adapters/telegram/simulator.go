package telegram

import (
	"context"
	"log"

	"github.com/vibtellect/immo-scraper/internal/core/port"
)

// SimulatorAdapter – мессенджер для dry-run: сообщения печатаются в лог
// вместо отправки, дисциплина доставки при этом прогоняется полностью.
type SimulatorAdapter struct{}

func NewSimulatorAdapter() *SimulatorAdapter {
	return &SimulatorAdapter{}
}

func (s *SimulatorAdapter) MaxTextLength() int {
	return maxMessageLength
}

func (s *SimulatorAdapter) SendText(_ context.Context, text string, _ port.SendOptions) error {
	log.Printf("Simulator: would send text (%d chars):\n%s\n", len(text), text)
	return nil
}

func (s *SimulatorAdapter) SendPhoto(_ context.Context, photoURL, caption string) error {
	log.Printf("Simulator: would send photo %s (caption: %s)\n", photoURL, caption)
	return nil
}

func (s *SimulatorAdapter) SendPhotoGroup(_ context.Context, photoURLs []string, caption string) error {
	log.Printf("Simulator: would send photo group of %d (caption: %s)\n", len(photoURLs), caption)
	return nil
}
