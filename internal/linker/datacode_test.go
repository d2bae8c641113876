package linker

import (
	"testing"

	"github.com/appsworld/machold/internal/macho/types"
)

func TestSortDice(t *testing.T) {
	e := []types.DataInCodeEntry{
		{Offset: 30, Length: 4, Kind: 1},
		{Offset: 10, Length: 8, Kind: 1},
		{Offset: 20, Length: 4, Kind: 1},
	}
	sortDice(e)
	for i := 1; i < len(e); i++ {
		if e[i-1].Offset > e[i].Offset {
			t.Fatalf("sortDice left entries unordered: %+v", e)
		}
	}
	if e[0].Offset != 10 || e[1].Offset != 20 || e[2].Offset != 30 {
		t.Errorf("sortDice order = %v, %v, %v", e[0].Offset, e[1].Offset, e[2].Offset)
	}
}

func TestSortDiceStability(t *testing.T) {
	e := []types.DataInCodeEntry{
		{Offset: 10, Length: 1},
		{Offset: 10, Length: 2},
	}
	sortDice(e)
	if e[0].Length != 1 || e[1].Length != 2 {
		t.Errorf("sortDice reordered equal-offset entries: %+v", e)
	}
}
