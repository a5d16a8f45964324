package model

// HistoryExport is the top-level JSON structure for the export subcommand.
type HistoryExport struct {
	ExportedAt  string             `json:"exported_at"`
	Generations []GenerationRecord `json:"generations"`
	Quizzes     []QuizResult       `json:"quizzes"`
	Practices   []PracticeResult   `json:"practices"`
	Stats       UsageStats         `json:"stats"`
}

// UsageStats aggregates the generation log for the dashboard.
type UsageStats struct {
	TotalGenerations int               `json:"total_generations"`
	ByFeature        map[Feature]int   `json:"by_feature"`
	ByBackend        map[Backend]int   `json:"by_backend"`
	ByErrorKind      map[ErrorKind]int `json:"by_error_kind"`
	AvgQuizScore     float64           `json:"avg_quiz_score"`
	AvgPracticeScore float64           `json:"avg_practice_score"`
}
