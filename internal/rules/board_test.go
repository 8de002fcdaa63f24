package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFootprintNormalizesAndTranslates(t *testing.T) {
	cells, ok := Footprint(I2, Rotate0, FlipNone, 5, 5)
	require.True(t, ok)
	assert.ElementsMatch(t, []Cell{{5, 5}, {5, 6}}, cells)
}

func TestFootprintRejectsUnknownBlock(t *testing.T) {
	_, ok := Footprint(BlockType("nope"), Rotate0, FlipNone, 0, 0)
	assert.False(t, ok)
}

func TestFootprintRotate90of90DegreeRotationsCoverAllEightOrientations(t *testing.T) {
	seen := map[string]bool{}
	for _, rot := range []Rotation{Rotate0, Rotate90, Rotate180, Rotate270} {
		for _, fl := range []Flip{FlipNone, FlipHorizontal} {
			cells, ok := Footprint(L4, rot, fl, 0, 0)
			require.True(t, ok)
			seen[cellsKey(cells)] = true
		}
	}
	assert.Len(t, seen, 8, "L4 has no symmetry, so all 8 dihedral orientations must be distinct")
}

func cellsKey(cells []Cell) string {
	key := ""
	for _, c := range cells {
		key += string(rune('A'+c.Row)) + string(rune('a'+c.Col))
	}
	return key
}

func TestCanPlaceFirstMoveMustCoverStartingCorner(t *testing.T) {
	b := NewBoard()
	p := Placement{BlockType: I1, Row: 5, Col: 5, Player: Blue}
	assert.False(t, b.CanPlace(p, false))

	p.Row, p.Col = 0, 0
	assert.True(t, b.CanPlace(p, false))
}

func TestCanPlaceRejectsOutOfBounds(t *testing.T) {
	b := NewBoard()
	p := Placement{BlockType: I5, Row: 0, Col: 18, Rotation: Rotate0, Player: Blue}
	assert.False(t, b.CanPlace(p, false))
}

func TestCanPlaceRejectsOccupiedCell(t *testing.T) {
	b := NewBoard()
	first := Placement{BlockType: I1, Row: 0, Col: 0, Player: Blue}
	require.True(t, b.CanPlace(first, false))
	b.Apply(first)

	second := Placement{BlockType: I1, Row: 0, Col: 0, Player: Yellow}
	assert.False(t, b.CanPlace(second, false))
}

func TestCanPlaceRejectsEdgeTouchingOwnColor(t *testing.T) {
	b := NewBoard()
	first := Placement{BlockType: I1, Row: 0, Col: 0, Player: Blue}
	require.True(t, b.CanPlace(first, false))
	b.Apply(first)

	// Edge-adjacent to the existing Blue cell: illegal.
	second := Placement{BlockType: I1, Row: 0, Col: 1, Player: Blue}
	assert.False(t, b.CanPlace(second, true))
}

func TestCanPlaceRequiresCornerTouchAfterFirstMove(t *testing.T) {
	b := NewBoard()
	first := Placement{BlockType: I1, Row: 0, Col: 0, Player: Blue}
	require.True(t, b.CanPlace(first, false))
	b.Apply(first)

	// Diagonally adjacent to the existing Blue cell: legal.
	cornerTouch := Placement{BlockType: I1, Row: 1, Col: 1, Player: Blue}
	assert.True(t, b.CanPlace(cornerTouch, true))

	// Disconnected from any Blue cell: illegal.
	disconnected := Placement{BlockType: I1, Row: 10, Col: 10, Player: Blue}
	assert.False(t, b.CanPlace(disconnected, true))
}

func TestCanPlaceAcceptsCornerMoveWithoutEdgeTouch(t *testing.T) {
	b := NewBoard()
	b.Apply(Placement{BlockType: I1, Row: 0, Col: 0, Player: Blue})

	// Shares a corner at (1,1) but the I2 footprint (1,1)-(1,2) does not
	// edge-touch (0,0); should be legal.
	ok := Placement{BlockType: I2, Row: 1, Col: 1, Rotation: Rotate0, Player: Blue}
	assert.True(t, b.CanPlace(ok, true))
}

func TestApplyWritesWithoutPriorCanPlaceCheck(t *testing.T) {
	b := NewBoard()
	p := Placement{BlockType: I1, Row: 0, Col: 0, Player: Blue}
	b.Apply(p)
	assert.Equal(t, Blue, b.At(0, 0))
}

func TestScoreOfMatchesCellCount(t *testing.T) {
	assert.Equal(t, 1, ScoreOf(I1))
	assert.Equal(t, 2, ScoreOf(I2))
	assert.Equal(t, 5, ScoreOf(I5))
	assert.Equal(t, 5, ScoreOf(X5))
}

func TestHasAnyLegalMoveEmptyBoardFirstMove(t *testing.T) {
	b := NewBoard()
	remaining := map[BlockType]bool{I1: true}
	assert.True(t, b.HasAnyLegalMove(Blue, remaining, false))
}

func TestHasAnyLegalMoveFalseWhenBoxedIn(t *testing.T) {
	b := NewBoard()
	b.Apply(Placement{BlockType: I1, Row: 0, Col: 0, Player: Blue})
	// Surround Blue's only cell's corner diagonal and edges with Yellow so
	// no remaining block (just I1) has anywhere legal to go adjacent to it,
	// and nothing else on the board belongs to Blue.
	for row := 0; row < BoardSize; row++ {
		for col := 0; col < BoardSize; col++ {
			if row == 0 && col == 0 {
				continue
			}
			b.cells[row][col] = Yellow
		}
	}
	remaining := map[BlockType]bool{I1: true}
	assert.False(t, b.HasAnyLegalMove(Blue, remaining, true))
}

func TestIsGameOverAllPlayersStuck(t *testing.T) {
	b := NewBoard()
	for row := 0; row < BoardSize; row++ {
		for col := 0; col < BoardSize; col++ {
			b.cells[row][col] = Blue
		}
	}
	statuses := []PlayerStatus{
		{Color: Yellow, HasPlayedBefore: false, Remaining: map[BlockType]bool{I1: true}},
	}
	assert.True(t, b.IsGameOver(statuses))
}

func TestIsGameOverFalseWhenSomeoneCanMove(t *testing.T) {
	b := NewBoard()
	statuses := []PlayerStatus{
		{Color: Blue, HasPlayedBefore: false, Remaining: map[BlockType]bool{I1: true}},
	}
	assert.False(t, b.IsGameOver(statuses))
}

func TestIsValidBlockType(t *testing.T) {
	assert.True(t, IsValidBlockType(X5))
	assert.False(t, IsValidBlockType(BlockType("Q9")))
}

func TestAllBlockTypesHasTwentyOneEntries(t *testing.T) {
	assert.Len(t, AllBlockTypes, 21)
}
