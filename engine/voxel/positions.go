package voxel

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type Int3 struct {
	X, Y, Z int32
}

func (i Int3) Add(other Int3) Int3 {
	return Int3{i.X + other.X, i.Y + other.Y, i.Z + other.Z}
}

func (i Int3) Sub(tr Int3) Int3 {
	return Int3{i.X - tr.X, i.Y - tr.Y, i.Z - tr.Z}
}

func (i Int3) Mul(factor int32) Int3 {
	i.X *= factor
	i.Y *= factor
	i.Z *= factor
	return i
}

func (i Int3) ToVec3() mgl32.Vec3 {
	return mgl32.Vec3{float32(i.X), float32(i.Y), float32(i.Z)}
}

// ToBlockCenterVec3 returns the world position of the middle of the voxel.
func (i Int3) ToBlockCenterVec3() mgl32.Vec3 {
	return mgl32.Vec3{float32(i.X) + 0.5, float32(i.Y) + 0.5, float32(i.Z) + 0.5}
}

func (i Int3) ToString() string {
	return fmt.Sprintf("%d,%d,%d", i.X, i.Y, i.Z)
}

func (i Int3) String() string {
	return i.ToString()
}

// ToOffsets splits a global voxel position into the position of its chunk
// and the position inside that chunk. Local components are in [0, CHUNK_SIZE).
func (i Int3) ToOffsets() (chunk Int3, local Int3) {
	chunk = Int3{floorDiv(i.X, CHUNK_SIZE), floorDiv(i.Y, CHUNK_SIZE), floorDiv(i.Z, CHUNK_SIZE)}
	local = Int3{floorMod(i.X, CHUNK_SIZE), floorMod(i.Y, CHUNK_SIZE), floorMod(i.Z, CHUNK_SIZE)}
	return chunk, local
}

// FromOffsets is the inverse of Int3.ToOffsets.
func FromOffsets(local, chunk Int3) Int3 {
	return chunk.Mul(CHUNK_SIZE).Add(local)
}

// WorldToVoxel returns the voxel containing the world position.
func WorldToVoxel(pos mgl32.Vec3) Int3 {
	return Int3{
		int32(math.Floor(float64(pos.X()))),
		int32(math.Floor(float64(pos.Y()))),
		int32(math.Floor(float64(pos.Z()))),
	}
}

// WorldToChunk returns the chunk containing the world position.
func WorldToChunk(pos mgl32.Vec3) Int3 {
	chunk, _ := WorldToVoxel(pos).ToOffsets()
	return chunk
}
