package app

import (
	"context"
	"errors"
	"math"
	"sort"

	"lecture-quiz-service/internal/domain"
)

// ResultsAggregator derives participant statistics and rankings from the raw
// answer log. Read-only; safe to expose to host and display clients.
type ResultsAggregator struct {
	store SessionStore
}

func NewResultsAggregator(store SessionStore) *ResultsAggregator {
	return &ResultsAggregator{store: store}
}

// GetCurrentQuestionAnswers filters the answer log by session and question
// index, in insertion order.
func (a *ResultsAggregator) GetCurrentQuestionAnswers(ctx context.Context, sessionID string, questionIndex int) ([]domain.LiveAnswer, error) {
	return a.store.ListQuestionAnswers(ctx, sessionID, questionIndex)
}

// GetSessionResults computes per-participant stats and the final ranking.
// A missing session is not an error: (nil, nil) signals "not yet ready".
func (a *ResultsAggregator) GetSessionResults(ctx context.Context, sessionID string) (*domain.SessionResults, error) {
	session, err := a.store.GetSession(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	answers, err := a.store.ListAnswers(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	stats := make(map[string]*participantTally, len(session.Participants))
	order := make([]string, 0, len(session.Participants))
	for _, p := range session.Participants {
		stats[p.ID] = &participantTally{
			stats: domain.ParticipantStats{
				ParticipantID: p.ID,
				DisplayName:   p.DisplayName,
				Score:         p.Score,
			},
		}
		order = append(order, p.ID)
	}

	for _, ans := range answers {
		tally, ok := stats[ans.ParticipantID]
		if !ok {
			// Answers can outlive their participant record only if the store
			// was seeded out of band; keep them visible rather than dropping.
			tally = &participantTally{stats: domain.ParticipantStats{ParticipantID: ans.ParticipantID}}
			stats[ans.ParticipantID] = tally
			order = append(order, ans.ParticipantID)
		}
		tally.stats.TotalAnswers++
		if ans.IsCorrect {
			tally.stats.CorrectAnswers++
		}
		tally.timeSpent += ans.TimeSpent
	}

	ranking := make([]domain.ParticipantStats, 0, len(order))
	for _, id := range order {
		tally := stats[id]
		if tally.stats.TotalAnswers > 0 {
			total := float64(tally.stats.TotalAnswers)
			tally.stats.Accuracy = int(math.Round(float64(tally.stats.CorrectAnswers) / total * 100))
			tally.stats.AverageTime = int(math.Round(tally.timeSpent / total))
		}
		ranking = append(ranking, tally.stats)
	}

	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].CorrectAnswers != ranking[j].CorrectAnswers {
			return ranking[i].CorrectAnswers > ranking[j].CorrectAnswers
		}
		if ranking[i].AverageTime != ranking[j].AverageTime {
			return ranking[i].AverageTime < ranking[j].AverageTime
		}
		return ranking[i].DisplayName < ranking[j].DisplayName
	})

	participantCount := len(session.Participants)
	if participantCount == 0 {
		participantCount = 1
	}

	return &domain.SessionResults{
		Session: session,
		Ranking: ranking,
		// Approximation, not an authoritative question count.
		TotalQuestions: len(answers) / participantCount,
	}, nil
}

type participantTally struct {
	stats     domain.ParticipantStats
	timeSpent float64
}
