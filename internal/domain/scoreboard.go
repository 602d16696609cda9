package domain

import (
	"math"
	"sort"
)

// ScoreEntry is one row of a ranked scoreboard snapshot.
type ScoreEntry struct {
	ParticipantID  string  `json:"participant_id"`
	Rank           int     `json:"rank"`
	Name           string  `json:"name"`
	Score          int     `json:"score"`
	TotalQuestions int     `json:"total_questions"`
	Percentage     float64 `json:"percentage"`
}

// BuildScoreboard computes the ranked scoreboard from raw answer records.
// Score is the count of correct records per participant. Ordering is score
// descending, ties broken by ascending name; ranks are distinct 1-based
// positions. The function is deterministic and side-effect free.
func BuildScoreboard(participants []Participant, answers []AnswerRecord, totalQuestions int) []ScoreEntry {
	scores := make(map[string]int, len(participants))
	for _, a := range answers {
		if a.IsCorrect {
			scores[a.ParticipantID]++
		}
	}

	entries := make([]ScoreEntry, 0, len(participants))
	for _, p := range participants {
		score := scores[p.ID]
		entries = append(entries, ScoreEntry{
			ParticipantID:  p.ID,
			Name:           p.Name,
			Score:          score,
			TotalQuestions: totalQuestions,
			Percentage:     Percentage(score, totalQuestions),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].ParticipantID < entries[j].ParticipantID
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// Percentage returns score/total as a percentage rounded to two decimals,
// defined as 0.0 when total is zero.
func Percentage(score, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return math.Round(float64(score)/float64(total)*100*100) / 100
}
