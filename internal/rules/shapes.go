package rules

// BlockType names one of the 21 canonical Blokus polyominoes.
type BlockType string

const (
	I1 BlockType = "I1" // monomino
	I2 BlockType = "I2" // domino
	I3 BlockType = "I3"
	L3 BlockType = "L3"
	I4 BlockType = "I4"
	O4 BlockType = "O4"
	T4 BlockType = "T4"
	S4 BlockType = "S4"
	L4 BlockType = "L4"
	F5 BlockType = "F5"
	I5 BlockType = "I5"
	L5 BlockType = "L5"
	N5 BlockType = "N5"
	P5 BlockType = "P5"
	T5 BlockType = "T5"
	U5 BlockType = "U5"
	V5 BlockType = "V5"
	W5 BlockType = "W5"
	X5 BlockType = "X5"
	Y5 BlockType = "Y5"
	Z5 BlockType = "Z5"
)

// AllBlockTypes enumerates the full 21-piece Blokus set in a stable order.
var AllBlockTypes = []BlockType{
	I1, I2, I3, L3, I4, O4, T4, S4, L4,
	F5, I5, L5, N5, P5, T5, U5, V5, W5, X5, Y5, Z5,
}

// baseShapes gives each block's cells in one canonical (unrotated,
// unflipped) orientation. Coordinates are (row, col) and always include
// (0, 0); they need not be sorted.
var baseShapes = map[BlockType][]Cell{
	I1: {{0, 0}},
	I2: {{0, 0}, {0, 1}},
	I3: {{0, 0}, {0, 1}, {0, 2}},
	L3: {{0, 0}, {1, 0}, {1, 1}},
	I4: {{0, 0}, {0, 1}, {0, 2}, {0, 3}},
	O4: {{0, 0}, {0, 1}, {1, 0}, {1, 1}},
	T4: {{0, 0}, {0, 1}, {0, 2}, {1, 1}},
	S4: {{0, 1}, {0, 2}, {1, 0}, {1, 1}},
	L4: {{0, 0}, {1, 0}, {2, 0}, {2, 1}},
	F5: {{0, 1}, {0, 2}, {1, 0}, {1, 1}, {2, 1}},
	I5: {{0, 0}, {0, 1}, {0, 2}, {0, 3}, {0, 4}},
	L5: {{0, 0}, {1, 0}, {2, 0}, {3, 0}, {3, 1}},
	N5: {{0, 1}, {1, 0}, {1, 1}, {2, 0}, {3, 0}},
	P5: {{0, 0}, {0, 1}, {1, 0}, {1, 1}, {2, 0}},
	T5: {{0, 0}, {0, 1}, {0, 2}, {1, 1}, {2, 1}},
	U5: {{0, 0}, {0, 2}, {1, 0}, {1, 1}, {1, 2}},
	V5: {{0, 0}, {1, 0}, {2, 0}, {2, 1}, {2, 2}},
	W5: {{0, 0}, {1, 0}, {1, 1}, {2, 1}, {2, 2}},
	X5: {{0, 1}, {1, 0}, {1, 1}, {1, 2}, {2, 1}},
	Y5: {{0, 1}, {1, 0}, {1, 1}, {2, 1}, {3, 1}},
	Z5: {{0, 0}, {0, 1}, {1, 1}, {2, 1}, {2, 2}},
}

// ScoreOf returns a block's cell count, which is also its point value.
func ScoreOf(bt BlockType) int {
	return len(baseShapes[bt])
}

// IsValidBlockType reports whether bt names one of the 21 canonical pieces.
func IsValidBlockType(bt BlockType) bool {
	_, ok := baseShapes[bt]
	return ok
}
