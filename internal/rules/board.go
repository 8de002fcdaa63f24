package rules

// Board is a 20x20 grid of cell owners.
type Board struct {
	cells [BoardSize][BoardSize]Color
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{}
}

// At returns the owner of (row, col), or None if out of bounds.
func (b *Board) At(row, col int) Color {
	if !inBounds(row, col) {
		return None
	}
	return b.cells[row][col]
}

func inBounds(row, col int) bool {
	return row >= 0 && row < BoardSize && col >= 0 && col < BoardSize
}

// Clone returns an independent copy of the board.
func (b *Board) Clone() *Board {
	out := &Board{}
	out.cells = b.cells
	return out
}

// CanPlace reports whether placement is legal against b. hasPlayedBefore
// must reflect whether placement.Player already owns at least one cell on
// the board; it is the caller's responsibility to track that, since the
// board alone cannot always distinguish "never played" from "played and
// then somehow has zero cells" in a way that matches room bookkeeping.
func (b *Board) CanPlace(p Placement, hasPlayedBefore bool) bool {
	footprint, ok := Footprint(p.BlockType, p.Rotation, p.Flip, p.Row, p.Col)
	if !ok || len(footprint) == 0 {
		return false
	}

	coversCorner := false
	startRow, startCol := StartingCorner(p.Player)

	for _, c := range footprint {
		if !inBounds(c.Row, c.Col) {
			return false
		}
		if b.cells[c.Row][c.Col] != None {
			return false
		}
		if c.Row == startRow && c.Col == startCol {
			coversCorner = true
		}
	}

	for _, c := range footprint {
		for _, n := range orthogonalNeighbors(c) {
			if inBounds(n.Row, n.Col) && b.cells[n.Row][n.Col] == p.Player {
				return false
			}
		}
	}

	if !hasPlayedBefore {
		return coversCorner
	}

	for _, c := range footprint {
		for _, n := range diagonalNeighbors(c) {
			if inBounds(n.Row, n.Col) && b.cells[n.Row][n.Col] == p.Player {
				return true
			}
		}
	}
	return false
}

// Apply writes placement's footprint onto the board. Callers must only call
// this after CanPlace has returned true for the same placement and board
// state; Apply performs no legality checking of its own.
func (b *Board) Apply(p Placement) {
	footprint, ok := Footprint(p.BlockType, p.Rotation, p.Flip, p.Row, p.Col)
	if !ok {
		return
	}
	for _, c := range footprint {
		if inBounds(c.Row, c.Col) {
			b.cells[c.Row][c.Col] = p.Player
		}
	}
}

// HasAnyLegalMove reports whether player has at least one legal placement
// among remaining block types, in any orientation and board position.
func (b *Board) HasAnyLegalMove(player Color, remaining map[BlockType]bool, hasPlayedBefore bool) bool {
	rotations := []Rotation{Rotate0, Rotate90, Rotate180, Rotate270}
	flips := []Flip{FlipNone, FlipHorizontal}

	for bt, has := range remaining {
		if !has {
			continue
		}
		for _, rot := range rotations {
			for _, fl := range flips {
				for row := 0; row < BoardSize; row++ {
					for col := 0; col < BoardSize; col++ {
						p := Placement{BlockType: bt, Row: row, Col: col, Rotation: rot, Flip: fl, Player: player}
						if b.CanPlace(p, hasPlayedBefore) {
							return true
						}
					}
				}
			}
		}
	}
	return false
}

// PlayerStatus is the minimal per-player view IsGameOver needs: whether
// they're still seated, whether they've played before, and what blocks they
// have left.
type PlayerStatus struct {
	Color           Color
	HasPlayedBefore bool
	Remaining       map[BlockType]bool
}

// IsGameOver reports whether no seated player has any legal move left.
func (b *Board) IsGameOver(players []PlayerStatus) bool {
	for _, p := range players {
		if b.HasAnyLegalMove(p.Color, p.Remaining, p.HasPlayedBefore) {
			return false
		}
	}
	return true
}

func orthogonalNeighbors(c Cell) []Cell {
	return []Cell{
		{Row: c.Row - 1, Col: c.Col},
		{Row: c.Row + 1, Col: c.Col},
		{Row: c.Row, Col: c.Col - 1},
		{Row: c.Row, Col: c.Col + 1},
	}
}

func diagonalNeighbors(c Cell) []Cell {
	return []Cell{
		{Row: c.Row - 1, Col: c.Col - 1},
		{Row: c.Row - 1, Col: c.Col + 1},
		{Row: c.Row + 1, Col: c.Col - 1},
		{Row: c.Row + 1, Col: c.Col + 1},
	}
}
