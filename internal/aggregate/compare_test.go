package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/paddock/internal/model"
)

func TestHeadToHead(t *testing.T) {
	shared1 := raceOf(2021, 1, entry("ham", "mercedes", "1", "25"), entry("ver", "red_bull", "2", "18"))
	shared2 := raceOf(2021, 2, entry("ver", "red_bull", "1", "25"), entry("ham", "mercedes", "R", "0"))
	shared3 := raceOf(2021, 3, entry("ver", "red_bull", "R", "0"), entry("ham", "mercedes", "R", "0"))
	onlyHam := raceOf(2012, 1, entry("ham", "mclaren", "1", "25"))

	hamRaces := []model.Race{onlyHam, shared1, shared2, shared3}
	verRaces := []model.Race{shared1, shared2, shared3}

	ham := FoldCareer(model.EntityDriver, "ham", hamRaces)
	ver := FoldCareer(model.EntityDriver, "ver", verRaces)

	h := HeadToHead(ham, ver, hamRaces, verRaces)

	assert.Equal(t, 3, h.SharedRaces)
	assert.Equal(t, 1, h.AAhead)
	assert.Equal(t, 1, h.BAhead)
	assert.Equal(t, 4, h.A.Races)
	assert.Equal(t, 3, h.B.Races)
}
