package aggregate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/paddock/internal/model"
)

func TestFoldPitStops(t *testing.T) {
	stops := []model.PitStopEntry{
		stop("gasly", 2023, 1, 1, "23.456"),
		stop("ocon", 2023, 1, 1, ""),
		stop("gasly", 2023, 1, 2, "1:23.456"),
		stop("ocon", 2023, 2, 1, "21.000"),
		stop("alonso", 2023, 2, 1, "21.000"),
		stop("alonso", 2023, 2, 2, "garbage"),
	}

	sum := FoldPitStops(2023, 2023, stops)

	assert.Equal(t, 4, sum.Stops)
	assert.Equal(t, 2, sum.Dropped)
	require.NotNil(t, sum.Fastest)
	assert.Equal(t, "ocon", sum.Fastest.DriverID, "first of two equal stops wins the tie")
	require.NotNil(t, sum.Slowest)
	assert.Equal(t, ms(83456), sum.Slowest.Duration.Value)

	want := []model.DriverPitStops{
		{DriverID: "gasly", Stops: 2, Total: ms(106912), Average: ms(53456)},
		{DriverID: "alonso", Stops: 1, Total: ms(21000), Average: ms(21000)},
		{DriverID: "ocon", Stops: 1, Total: ms(21000), Average: ms(21000)},
	}
	if diff := cmp.Diff(want, sum.Rankings); diff != "" {
		t.Errorf("rankings mismatch (-want +got):\n%s", diff)
	}
}

func TestFoldPitStops_AllUnparseable(t *testing.T) {
	sum := FoldPitStops(2020, 2021, []model.PitStopEntry{stop("x", 2020, 1, 1, "")})
	assert.Nil(t, sum.Fastest)
	assert.Nil(t, sum.Slowest)
	assert.Equal(t, 0, sum.Stops)
	assert.Equal(t, 1, sum.Dropped)
	assert.Empty(t, sum.Rankings)
}

func TestFoldPitStops_ExtremeNotAliased(t *testing.T) {
	stops := []model.PitStopEntry{stop("x", 2020, 1, 1, "20.0")}
	sum := FoldPitStops(2020, 2020, stops)
	stops[0].DriverID = "mutated"
	assert.Equal(t, "x", sum.Fastest.DriverID)
}
