package store

import (
	"fmt"
	"time"

	"github.com/eduintel/eduintel/internal/model"
)

// Export builds the full learning history snapshot for the export
// subcommand and the backup endpoint.
func (s *Store) Export() (*model.HistoryExport, error) {
	generations, err := s.ListGenerations(0)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	quizzes, err := s.ListQuizResults()
	if err != nil {
		return nil, fmt.Errorf("list quiz results: %w", err)
	}
	practices, err := s.ListPracticeResults()
	if err != nil {
		return nil, fmt.Errorf("list practice results: %w", err)
	}
	stats, err := s.Stats()
	if err != nil {
		return nil, fmt.Errorf("aggregate stats: %w", err)
	}

	return &model.HistoryExport{
		ExportedAt:  time.Now().Format(time.RFC3339),
		Generations: generations,
		Quizzes:     quizzes,
		Practices:   practices,
		Stats:       stats,
	}, nil
}
