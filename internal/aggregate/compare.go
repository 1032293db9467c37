package aggregate

import (
	"github.com/sells-group/paddock/internal/model"
)

// HeadToHead pairs two driver careers and counts, over the races both
// drivers started, who finished ahead. A numeric finish beats an
// unclassified one; two unclassified finishes count for neither.
func HeadToHead(a, b model.CareerStats, aRaces, bRaces []model.Race) model.HeadToHead {
	h := model.HeadToHead{A: a, B: b}

	bFinish := finishes(b.ID, bRaces)
	for key, pa := range finishes(a.ID, aRaces) {
		pb, ok := bFinish[key]
		if !ok {
			continue
		}
		h.SharedRaces++
		switch {
		case pa.Valid && (!pb.Valid || pa.Value < pb.Value):
			h.AAhead++
		case pb.Valid && (!pa.Valid || pb.Value < pa.Value):
			h.BAhead++
		}
	}
	return h
}

func finishes(driverID string, races []model.Race) map[model.RaceKey]model.Position {
	out := map[model.RaceKey]model.Position{}
	for _, r := range races {
		for _, e := range r.Results {
			if e.Driver.ID == driverID {
				out[r.Key()] = e.Position
				break
			}
		}
	}
	return out
}
