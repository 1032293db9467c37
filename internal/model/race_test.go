package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(driver, pos string) ResultEntry {
	return ResultEntry{Driver: Driver{ID: driver}, PositionText: pos, Position: ParsePosition(pos)}
}

func TestMergeRaces_CombinesPages(t *testing.T) {
	t.Parallel()

	frags := []Race{
		{Season: 2023, Round: 1, Name: "Bahrain", Results: []ResultEntry{result("max", "1"), result("perez", "2")}},
		{Season: 2023, Round: 2, Name: "Saudi", Results: []ResultEntry{result("perez", "1")}},
		{Season: 2023, Round: 1, Name: "ignored", Results: []ResultEntry{result("perez", "2"), result("alonso", "3")}},
	}

	merged := MergeRaces(frags)
	require.Len(t, merged, 2)
	assert.Equal(t, "Bahrain", merged[0].Name)
	require.Len(t, merged[0].Results, 3)
	assert.Equal(t, "alonso", merged[0].Results[2].Driver.ID)
	assert.Equal(t, 2, merged[1].Round)
}

func TestMergeRaces_KeepsSharedDrives(t *testing.T) {
	t.Parallel()

	first := ResultEntry{Number: "2", PositionText: "R", Driver: Driver{ID: "fangio"}, Constructor: Constructor{ID: "ferrari"}, Laps: 30, Status: "Clutch"}
	second := ResultEntry{Number: "34", PositionText: "R", Driver: Driver{ID: "fangio"}, Constructor: Constructor{ID: "ferrari"}, Laps: 12, Status: "Engine"}

	merged := MergeRaces([]Race{
		{Season: 1956, Round: 3, Results: []ResultEntry{first}},
		{Season: 1956, Round: 3, Results: []ResultEntry{second, first}},
	})
	require.Len(t, merged, 1)
	require.Len(t, merged[0].Results, 2)
	assert.Equal(t, "2", merged[0].Results[0].Number)
	assert.Equal(t, "34", merged[0].Results[1].Number)
}

func TestMergeRaces_DoesNotAliasInput(t *testing.T) {
	t.Parallel()

	in := []Race{{Season: 2020, Round: 1, Results: []ResultEntry{result("a", "1")}}}
	out := MergeRaces(append(in, Race{Season: 2020, Round: 1, Results: []ResultEntry{result("b", "2")}}))
	assert.Len(t, in[0].Results, 1)
	assert.Len(t, out[0].Results, 2)
}

func TestRace_HasRun(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 5, 15, 0, 0, 0, time.UTC)
	assert.True(t, Race{Date: "2024-05-05"}.HasRun(now))
	assert.True(t, Race{Date: "2024-04-21"}.HasRun(now))
	assert.False(t, Race{Date: "2024-05-19"}.HasRun(now))
	assert.True(t, Race{}.HasRun(now))
}

func TestResultEntry_Outcome(t *testing.T) {
	t.Parallel()

	assert.Equal(t, OutcomeFinished, ResultEntry{Status: "Finished"}.Outcome())
	assert.Equal(t, OutcomeLapped, ResultEntry{Status: "+1 Lap"}.Outcome())
	assert.Equal(t, OutcomeLapped, ResultEntry{Status: "+3 Laps"}.Outcome())
	assert.Equal(t, OutcomeRetired, ResultEntry{Status: "Engine"}.Outcome())
}

func TestRaceKey_Less(t *testing.T) {
	t.Parallel()

	assert.True(t, RaceKey{2020, 5}.Less(RaceKey{2021, 1}))
	assert.True(t, RaceKey{2021, 2}.Less(RaceKey{2021, 10}))
	assert.False(t, RaceKey{2021, 10}.Less(RaceKey{2021, 10}))
}

func TestDriver_Name(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Lewis Hamilton", Driver{GivenName: "Lewis", FamilyName: "Hamilton"}.Name())
	assert.Equal(t, "Hamilton", Driver{FamilyName: "Hamilton"}.Name())
}
