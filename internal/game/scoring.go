package game

import "sort"

// podiumPositions caps how many distinct score groups are shown.
const podiumPositions = 5

// ComputeResults flattens all answers across prompts and ranks them by
// vote count, descending. Ties keep their original order.
func ComputeResults(prompts []*Prompt, roundNumber int, nameOf func(id string) string) []RankedAnswer {
	out := make([]RankedAnswer, 0)
	for _, pr := range prompts {
		for _, a := range pr.Answers {
			out = append(out, RankedAnswer{
				AnswerID:   a.ID,
				PromptID:   a.PromptID,
				AuthorID:   a.AuthorID,
				AuthorName: nameOf(a.AuthorID),
				Text:       a.Text,
				Votes:      len(a.Votes),
				Score:      len(a.Votes) * roundNumber * 100,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Votes > out[j].Votes
	})
	return out
}

// ComputeRoundScores converts vote counts to scores. Later rounds are worth
// more: score = votes * roundNumber * 100, summed per authoring player.
func ComputeRoundScores(prompts []*Prompt, roundNumber int) map[string]int {
	scores := make(map[string]int)
	for _, pr := range prompts {
		for _, a := range pr.Answers {
			scores[a.AuthorID] += len(a.Votes) * roundNumber * 100
		}
	}
	return scores
}

// BuildPodium ranks players by total score, grouping ties into shared
// positions. Ties are ordered alphabetically for deterministic output.
// Only the top positions are shown; everyone else keeps their score but
// gets no podium rank.
func BuildPodium(players []*Participant) []PodiumGroup {
	ranked := make([]*Participant, len(players))
	copy(ranked, players)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].TotalScore != ranked[j].TotalScore {
			return ranked[i].TotalScore > ranked[j].TotalScore
		}
		return ranked[i].Name < ranked[j].Name
	})

	podium := make([]PodiumGroup, 0, podiumPositions)
	for _, p := range ranked {
		if n := len(podium); n > 0 && podium[n-1].Score == p.TotalScore {
			podium[n-1].Names = append(podium[n-1].Names, p.Name)
			continue
		}
		if len(podium) == podiumPositions {
			break
		}
		podium = append(podium, PodiumGroup{
			Position: len(podium) + 1,
			Score:    p.TotalScore,
			Names:    []string{p.Name},
		})
	}
	return podium
}
