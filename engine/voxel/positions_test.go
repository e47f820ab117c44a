package voxel

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestWorldToVoxelFloors(t *testing.T) {
	tests := []struct {
		in   mgl32.Vec3
		want Int3
	}{
		{mgl32.Vec3{0, 0, 0}, Int3{0, 0, 0}},
		{mgl32.Vec3{0.99, 1.0, 31.5}, Int3{0, 1, 31}},
		{mgl32.Vec3{-0.01, -1.0, -1.5}, Int3{-1, -1, -2}},
		{mgl32.Vec3{-32.5, 64, 1e6}, Int3{-33, 64, 1000000}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WorldToVoxel(tt.in), "%v", tt.in)
	}
}

func TestToOffsets(t *testing.T) {
	tests := []struct {
		pos   Int3
		chunk Int3
		local Int3
	}{
		{Int3{0, 0, 0}, Int3{0, 0, 0}, Int3{0, 0, 0}},
		{Int3{31, 32, 33}, Int3{0, 1, 1}, Int3{31, 0, 1}},
		{Int3{-1, -32, -33}, Int3{-1, -1, -2}, Int3{31, 0, 31}},
		{Int3{math.MinInt32, math.MaxInt32, 0}, Int3{math.MinInt32 / 32, math.MaxInt32 / 32, 0}, Int3{0, 31, 0}},
	}
	for _, tt := range tests {
		chunk, local := tt.pos.ToOffsets()
		assert.Equal(t, tt.chunk, chunk, "chunk of %v", tt.pos)
		assert.Equal(t, tt.local, local, "local of %v", tt.pos)
		assert.Equal(t, tt.pos, FromOffsets(local, chunk))
	}
}

func TestOffsetsRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 10000; i++ {
		pos := Int3{int32(rng.Uint32()), int32(rng.Uint32()), int32(rng.Uint32())}
		chunk, local := pos.ToOffsets()
		assert.True(t, local.X >= 0 && local.X < CHUNK_SIZE, "%v", local)
		assert.True(t, local.Y >= 0 && local.Y < CHUNK_SIZE, "%v", local)
		assert.True(t, local.Z >= 0 && local.Z < CHUNK_SIZE, "%v", local)
		if !assert.Equal(t, pos, FromOffsets(local, chunk)) {
			return
		}
	}
}

func TestWorldToChunk(t *testing.T) {
	assert.Equal(t, Int3{-1, 0, 2}, WorldToChunk(mgl32.Vec3{-0.5, 31.9, 64}))
}

func TestInt3Helpers(t *testing.T) {
	a := Int3{1, -2, 3}
	assert.Equal(t, Int3{2, -4, 6}, a.Add(a))
	assert.Equal(t, Int3{0, 0, 0}, a.Sub(a))
	assert.Equal(t, Int3{3, -6, 9}, a.Mul(3))
	assert.Equal(t, mgl32.Vec3{1.5, -1.5, 3.5}, a.ToBlockCenterVec3())
	assert.Equal(t, "1,-2,3", a.String())
	assert.Equal(t, int32(6), ManhattanDistance3(a, Int3{}))
}
