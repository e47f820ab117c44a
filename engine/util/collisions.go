package util

import (
	"iter"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/memmaker/voxelsweep/engine/voxel"
	"go.uber.org/zap"
)

// Neighborhood is an inclusive box of voxel offsets relative to the voxel
// containing a volume's center.
type Neighborhood struct {
	Min voxel.Int3
	Max voxel.Int3
}

// SweptNeighborhood covers every voxel a volume with the given half extents
// can touch while its center moves by vel, plus one voxel of slack per side.
func SweptNeighborhood(halfExtents, vel mgl32.Vec3) Neighborhood {
	var lo, hi [3]int32
	for axis := 0; axis < 3; axis++ {
		h, v := halfExtents[axis], vel[axis]
		lo[axis] = int32(Floor(min(-h, -h+v))) - 1
		hi[axis] = int32(Ceil(max(h, h+v))) + 1
	}
	return Neighborhood{
		Min: voxel.Int3{X: lo[0], Y: lo[1], Z: lo[2]},
		Max: voxel.Int3{X: hi[0], Y: hi[1], Z: hi[2]},
	}
}

// StaticNeighborhood is the neighborhood of a volume that does not move.
func StaticNeighborhood(halfExtents mgl32.Vec3) Neighborhood {
	return SweptNeighborhood(halfExtents, mgl32.Vec3{})
}

// Offsets yields every offset of the box, x outermost and z innermost.
func (n Neighborhood) Offsets() iter.Seq[voxel.Int3] {
	return func(yield func(voxel.Int3) bool) {
		for x := int64(n.Min.X); x <= int64(n.Max.X); x++ {
			for y := int64(n.Min.Y); y <= int64(n.Max.Y); y++ {
				for z := int64(n.Min.Z); z <= int64(n.Max.Z); z++ {
					if !yield(voxel.Int3{X: int32(x), Y: int32(y), Z: int32(z)}) {
						return
					}
				}
			}
		}
	}
}

func (n Neighborhood) Contains(offset voxel.Int3) bool {
	return offset.X >= n.Min.X && offset.X <= n.Max.X &&
		offset.Y >= n.Min.Y && offset.Y <= n.Max.Y &&
		offset.Z >= n.Min.Z && offset.Z <= n.Max.Z
}

func (n Neighborhood) Volume() int64 {
	size := func(lo, hi int32) int64 {
		if hi < lo {
			return 0
		}
		return int64(hi) - int64(lo) + 1
	}
	return size(n.Min.X, n.Max.X) * size(n.Min.Y, n.Max.Y) * size(n.Min.Z, n.Max.Z)
}

// Candidates yields the world voxels a volume may touch while moving by vel.
func Candidates(aabb AABB, vel mgl32.Vec3) iter.Seq[voxel.Int3] {
	origin := voxel.WorldToVoxel(aabb.Center())
	neighborhood := SweptNeighborhood(aabb.HalfExtents(), vel)
	return func(yield func(voxel.Int3) bool) {
		for offset := range neighborhood.Offsets() {
			if !yield(origin.Add(offset)) {
				return
			}
		}
	}
}

// WorldQuery answers collision questions against a chunked voxel world.
// Absent chunks read as empty space.
type WorldQuery struct {
	chunks voxel.ChunkLookup
	blocks *voxel.BlockTable
}

func NewWorldQuery(chunks voxel.ChunkLookup, blocks *voxel.BlockTable) *WorldQuery {
	return &WorldQuery{chunks: chunks, blocks: blocks}
}

func (q *WorldQuery) blockAt(pos voxel.Int3) (voxel.Block, bool) {
	chunkPos, local := pos.ToOffsets()
	chunk, ok := q.chunks.LookupChunk(chunkPos)
	if !ok || chunk == nil {
		return voxel.NewAirBlock(), false
	}
	return chunk.GetLocalBlock(local), true
}

// SolidAt reports whether the voxel at pos holds a non-empty block.
func (q *WorldQuery) SolidAt(pos voxel.Int3) bool {
	block, ok := q.blockAt(pos)
	return ok && !block.IsEmpty(q.blocks)
}

// AnyCollision reports whether aabb currently overlaps a non-empty voxel.
func (q *WorldQuery) AnyCollision(aabb AABB) bool {
	for pos := range Candidates(aabb, mgl32.Vec3{}) {
		if !Intersects(aabb, VoxelAABB(pos)) {
			continue
		}
		if q.SolidAt(pos) {
			return true
		}
	}
	return false
}

// SweptCollisions returns every non-empty voxel hit by aabb moving by vel
// during one tick, in neighborhood order. The result is never nil.
func (q *WorldQuery) SweptCollisions(aabb AABB, vel mgl32.Vec3) []CollisionInfo {
	collisions := make([]CollisionInfo, 0)
	for pos := range Candidates(aabb, vel) {
		if !q.SolidAt(pos) {
			continue
		}
		if info, ok := SweepAABB(aabb, VoxelAABB(pos), vel); ok {
			collisions = append(collisions, info)
		}
	}
	return collisions
}

type Intersector struct {
	Voxel      voxel.Int3
	Chunk      voxel.Int3
	Local      voxel.Int3
	Block      voxel.Block
	Descriptor voxel.BlockDescriptor
}

// Intersectors lists every non-empty voxel overlapping aabb.
func (q *WorldQuery) Intersectors(aabb AABB) []Intersector {
	var result []Intersector
	for pos := range Candidates(aabb, mgl32.Vec3{}) {
		if !Intersects(aabb, VoxelAABB(pos)) {
			continue
		}
		block, ok := q.blockAt(pos)
		if !ok || block.IsEmpty(q.blocks) {
			continue
		}
		chunkPos, local := pos.ToOffsets()
		desc, _ := q.blocks.Descriptor(block.ID)
		result = append(result, Intersector{
			Voxel:      pos,
			Chunk:      chunkPos,
			Local:      local,
			Block:      block,
			Descriptor: desc,
		})
		LogPhysicsDebug("intersecting voxel",
			zap.Stringer("voxel", pos),
			zap.Stringer("chunk", chunkPos),
			zap.Stringer("local", local),
			zap.String("block", desc.FullName()),
		)
	}
	return result
}
