package aggregate

import (
	"sort"

	"github.com/sells-group/paddock/internal/model"
)

// FoldCircuit rolls up the races held at a circuit. Races are expected to
// carry at least their winning result; races without one still count as
// held.
func FoldCircuit(circuit model.Circuit, races []model.Race) model.CircuitStats {
	st := model.CircuitStats{CircuitID: circuit.ID, Name: circuit.Name}

	drivers := map[string]*model.WinCount{}
	teams := map[string]*model.WinCount{}

	for _, r := range chronological(races) {
		if circuit.ID != "" && r.Circuit.ID != "" && r.Circuit.ID != circuit.ID {
			continue
		}
		if st.Name == "" {
			st.Name = r.Circuit.Name
		}
		st.Races++
		if st.FirstSeason == 0 {
			st.FirstSeason = r.Season
		}
		st.LastSeason = r.Season

		for _, e := range r.Results {
			if !e.Position.Is(1) {
				continue
			}
			st.Winners = append(st.Winners, model.RaceWinner{
				Season:        r.Season,
				Round:         r.Round,
				DriverID:      e.Driver.ID,
				ConstructorID: e.Constructor.ID,
			})
			bump(drivers, e.Driver.ID, e.Driver.Name())
			bump(teams, e.Constructor.ID, e.Constructor.Name)
			break
		}
	}

	st.TopDrivers = rankWins(drivers)
	st.TopConstructors = rankWins(teams)
	return st
}

func bump(m map[string]*model.WinCount, id, name string) {
	w, ok := m[id]
	if !ok {
		w = &model.WinCount{ID: id, Name: name}
		m[id] = w
	}
	w.Wins++
}

func rankWins(m map[string]*model.WinCount) []model.WinCount {
	out := make([]model.WinCount, 0, len(m))
	for _, w := range m {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].ID < out[j].ID
	})
	return out
}
