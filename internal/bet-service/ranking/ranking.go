package ranking

import (
	"sort"

	"github.com/bingaodosamigos/bingao-platform/internal/shared/repo"
)

type Entry struct {
	UserID     string `json:"userId"`
	Name       string `json:"name,omitempty"`
	MaxHits    int    `json:"maxHits"`
	TotalGames int    `json:"totalGames"`
}

// Compute cruza cada bilhete pago com o sorteio do mesmo concurso.
// Bilhetes sem sorteio correspondente não entram. Ordem: maxHits desc, totalGames desc.
func Compute(draws []repo.Draw, bets []repo.Bet) []Entry {
	drawn := make(map[int]map[int]struct{}, len(draws))
	for _, d := range draws {
		set := make(map[int]struct{}, len(d.Numbers))
		for _, n := range d.Numbers {
			set[n] = struct{}{}
		}
		drawn[d.ContestNumber] = set
	}

	byUser := map[string]*Entry{}
	for _, b := range bets {
		if b.Status != repo.StatusApproved || b.ContestNumber == nil {
			continue
		}
		set, ok := drawn[*b.ContestNumber]
		if !ok {
			continue
		}
		for _, sel := range b.Selections {
			hits := 0
			for _, n := range sel {
				if _, ok := set[n]; ok {
					hits++
				}
			}
			e, ok := byUser[b.UserID]
			if !ok {
				byUser[b.UserID] = &Entry{UserID: b.UserID, MaxHits: hits, TotalGames: 1}
				continue
			}
			e.TotalGames++
			if hits > e.MaxHits {
				e.MaxHits = hits
			}
		}
	}

	out := make([]Entry, 0, len(byUser))
	for _, e := range byUser {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MaxHits != out[j].MaxHits {
			return out[i].MaxHits > out[j].MaxHits
		}
		if out[i].TotalGames != out[j].TotalGames {
			return out[i].TotalGames > out[j].TotalGames
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// UserIDs lista os usuários do ranking (para resolver nomes)
func UserIDs(entries []Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.UserID
	}
	return ids
}
