package voxel

const (
	EMPTY              uint16 = 0
	CHUNK_SIZE         int32  = 32
	CHUNK_SIZE_SQUARED int32  = CHUNK_SIZE * CHUNK_SIZE
	CHUNK_SIZE_CUBED   int32  = CHUNK_SIZE * CHUNK_SIZE * CHUNK_SIZE
)

func ManhattanDistance3(a, b Int3) int32 {
	return Abs(a.X-b.X) + Abs(a.Y-b.Y) + Abs(a.Z-b.Z)
}

func Abs(i int32) int32 {
	if i < 0 {
		return -i
	}
	return i
}

// floorDiv rounds towards negative infinity, unlike the / operator.
func floorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// floorMod is always in [0, b) for positive b.
func floorMod(a, b int32) int32 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
