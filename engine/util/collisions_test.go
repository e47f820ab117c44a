package util

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/memmaker/voxelsweep/engine/voxel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testWorld struct {
	voxels *voxel.Map
	table  *voxel.BlockTable
	stone  voxel.Block
	water  voxel.Block
}

func newTestWorld(t testing.TB) *testWorld {
	t.Helper()
	table := voxel.NewDefaultBlockTable()
	stone, ok := table.GetBlockByName("stone")
	require.True(t, ok)
	water, ok := table.GetBlockByName("minecraft:water")
	require.True(t, ok)
	return &testWorld{voxels: voxel.NewMap(), table: table, stone: stone, water: water}
}

func (w *testWorld) query() *WorldQuery {
	return NewWorldQuery(w.voxels, w.table)
}

func randomVec3(rng *rand.Rand, lo, hi float32) mgl32.Vec3 {
	r := func() float32 { return lo + rng.Float32()*(hi-lo) }
	return mgl32.Vec3{r(), r(), r()}
}

func TestSweptNeighborhoodBounds(t *testing.T) {
	tests := []struct {
		name   string
		half   mgl32.Vec3
		vel    mgl32.Vec3
		min    voxel.Int3
		max    voxel.Int3
		volume int64
	}{
		{"unit cube at rest", mgl32.Vec3{0.5, 0.5, 0.5}, mgl32.Vec3{}, voxel.Int3{X: -2, Y: -2, Z: -2}, voxel.Int3{X: 2, Y: 2, Z: 2}, 125},
		{"moving right", mgl32.Vec3{0.5, 0.5, 0.5}, mgl32.Vec3{1.5, 0, 0}, voxel.Int3{X: -2, Y: -2, Z: -2}, voxel.Int3{X: 3, Y: 2, Z: 2}, 150},
		{"tall body falling", mgl32.Vec3{0.4, 0.9, 0.4}, mgl32.Vec3{0, -1.5, 0}, voxel.Int3{X: -2, Y: -4, Z: -2}, voxel.Int3{X: 2, Y: 2, Z: 2}, 175},
		{"point", mgl32.Vec3{}, mgl32.Vec3{}, voxel.Int3{X: -1, Y: -1, Z: -1}, voxel.Int3{X: 1, Y: 1, Z: 1}, 27},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := SweptNeighborhood(tt.half, tt.vel)
			assert.Equal(t, tt.min, n.Min)
			assert.Equal(t, tt.max, n.Max)
			assert.Equal(t, tt.volume, n.Volume())
		})
	}
	assert.Equal(t, SweptNeighborhood(mgl32.Vec3{1, 2, 3}, mgl32.Vec3{}), StaticNeighborhood(mgl32.Vec3{1, 2, 3}))
}

func TestNeighborhoodOffsets(t *testing.T) {
	n := SweptNeighborhood(mgl32.Vec3{0.4, 0.9, 0.4}, mgl32.Vec3{0.7, -1.2, 0.1})
	var offsets []voxel.Int3
	seen := make(map[voxel.Int3]bool)
	for offset := range n.Offsets() {
		assert.True(t, n.Contains(offset), "offset %v outside %v", offset, n)
		assert.False(t, seen[offset], "offset %v yielded twice", offset)
		seen[offset] = true
		offsets = append(offsets, offset)
	}
	require.Len(t, offsets, int(n.Volume()))
	assert.Equal(t, n.Min, offsets[0])
	assert.Equal(t, n.Max, offsets[len(offsets)-1])
	assert.Equal(t, n.Min.Add(voxel.Int3{Z: 1}), offsets[1], "z varies fastest")

	var again []voxel.Int3
	for offset := range n.Offsets() {
		again = append(again, offset)
	}
	assert.Equal(t, offsets, again)

	count := 0
	for range n.Offsets() {
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)
}

func TestCandidatesCoverEverySweptHit(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 40; trial++ {
		body := mustAABB(t, randomVec3(rng, -5, 5), randomVec3(rng, 0, 1.5))
		vel := randomVec3(rng, -3, 3)
		if trial%5 == 0 {
			vel[trial%3] = 0
		}
		candidates := make(map[voxel.Int3]bool)
		for pos := range Candidates(body, vel) {
			candidates[pos] = true
		}
		for x := int32(-13); x <= 13; x++ {
			for y := int32(-13); y <= 13; y++ {
				for z := int32(-13); z <= 13; z++ {
					pos := voxel.Int3{X: x, Y: y, Z: z}
					if _, hit := SweepAABB(body, VoxelAABB(pos), vel); hit {
						require.True(t, candidates[pos], "trial %d: %v hit by %v moving %v but not a candidate", trial, pos, body, vel)
					}
				}
			}
		}
	}
}

func TestWorldQueryLanding(t *testing.T) {
	w := newTestWorld(t)
	w.voxels.SetBlockCreate(voxel.Int3{}, w.stone)
	q := w.query()

	body := mustAABB(t, mgl32.Vec3{0.5, 2.0, 0.5}, mgl32.Vec3{0.4, 0.9, 0.4})
	collisions := q.SweptCollisions(body, mgl32.Vec3{0, -1.5, 0})
	require.Len(t, collisions, 1)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, collisions[0].Normal)
	assert.InDelta(t, 0.1, collisions[0].Distance, 1e-4)
	assert.Equal(t, VoxelAABB(voxel.Int3{}), collisions[0].Voxel)

	assert.False(t, q.AnyCollision(body))
	none := q.SweptCollisions(body, mgl32.Vec3{0, 1, 0})
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSweptCollisionsStationaryGapOnEveryFace(t *testing.T) {
	w := newTestWorld(t)
	w.voxels.SetBlockCreate(voxel.Int3{}, w.stone)
	q := w.query()
	cube := mgl32.Vec3{0.5, 0.5, 0.5}

	for axis := 0; axis < 3; axis++ {
		for _, side := range []float32{-1, 1} {
			for _, gap := range []float32{0.00005, 0.0005} {
				center := mgl32.Vec3{0.5, 0.5, 0.5}
				center[axis] += side * (1 + gap)
				collisions := q.SweptCollisions(mustAABB(t, center, cube), mgl32.Vec3{})
				if gap > EPSILON {
					assert.Empty(t, collisions, "axis %d side %v gap %v", axis, side, gap)
					continue
				}
				if !assert.Len(t, collisions, 1, "axis %d side %v gap %v", axis, side, gap) || side < 0 {
					continue
				}
				// at rest the entry gap is measured toward the positive side
				var normal mgl32.Vec3
				normal[axis] = 1
				assert.Equal(t, normal, collisions[0].Normal)
				assert.InDelta(t, gap, collisions[0].Distance, 1e-5)
			}
		}
	}
}

func TestWorldQueryIgnoresNonSolidAndMissingChunks(t *testing.T) {
	w := newTestWorld(t)
	w.voxels.SetBlockCreate(voxel.Int3{}, w.water)
	w.voxels.SetBlockCreate(voxel.Int3{X: 100}, w.stone)
	unknown := voxel.Block{ID: 999}
	w.voxels.SetBlockCreate(voxel.Int3{X: 1}, unknown)
	q := w.query()

	body := mustAABB(t, mgl32.Vec3{0.5, 0.5, 0.5}, mgl32.Vec3{0.5, 0.5, 0.5})
	assert.False(t, q.AnyCollision(body))
	assert.Empty(t, q.SweptCollisions(body, mgl32.Vec3{1, 0, 0}))
	assert.Empty(t, q.Intersectors(body))
	assert.False(t, q.SolidAt(voxel.Int3{X: 1}))
	assert.False(t, q.SolidAt(voxel.Int3{X: -500, Y: 7, Z: 3}))
	assert.True(t, q.SolidAt(voxel.Int3{X: 100}))

	far := mustAABB(t, mgl32.Vec3{-1000.5, 0.5, 0.5}, mgl32.Vec3{0.5, 0.5, 0.5})
	assert.False(t, q.AnyCollision(far))
	assert.Empty(t, q.SweptCollisions(far, mgl32.Vec3{0, -10, 0}))
}

func TestWorldQueryAcrossChunkBorder(t *testing.T) {
	w := newTestWorld(t)
	w.voxels.SetBlockCreate(voxel.Int3{X: -1, Y: 0, Z: 0}, w.stone)
	w.voxels.SetBlockCreate(voxel.Int3{X: 32, Y: 0, Z: 0}, w.stone)
	q := w.query()

	left := mustAABB(t, mgl32.Vec3{0.6, 0.5, 0.5}, mgl32.Vec3{0.5, 0.4, 0.4})
	collisions := q.SweptCollisions(left, mgl32.Vec3{-0.5, 0, 0})
	require.Len(t, collisions, 1)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, collisions[0].Normal)
	assert.InDelta(t, 0.1, collisions[0].Distance, 1e-4)

	right := mustAABB(t, mgl32.Vec3{31.3, 0.5, 0.5}, mgl32.Vec3{0.5, 0.4, 0.4})
	collisions = q.SweptCollisions(right, mgl32.Vec3{0.5, 0, 0})
	require.Len(t, collisions, 1)
	assert.Equal(t, mgl32.Vec3{-1, 0, 0}, collisions[0].Normal)
	assert.InDelta(t, 0.2, collisions[0].Distance, 1e-4)
}

func TestAnyCollisionMatchesBruteForce(t *testing.T) {
	w := newTestWorld(t)
	rng := rand.New(rand.NewSource(42))
	for x := int32(-6); x <= 6; x++ {
		for y := int32(-6); y <= 6; y++ {
			for z := int32(-6); z <= 6; z++ {
				switch r := rng.Float32(); {
				case r < 0.08:
					w.voxels.SetBlockCreate(voxel.Int3{X: x, Y: y, Z: z}, w.stone)
				case r < 0.16:
					w.voxels.SetBlockCreate(voxel.Int3{X: x, Y: y, Z: z}, w.water)
				}
			}
		}
	}
	q := w.query()

	hits := 0
	for trial := 0; trial < 300; trial++ {
		body := mustAABB(t, randomVec3(rng, -5, 5), randomVec3(rng, 0.05, 1.2))
		want := false
		for x := int32(-8); x <= 8 && !want; x++ {
			for y := int32(-8); y <= 8 && !want; y++ {
				for z := int32(-8); z <= 8 && !want; z++ {
					pos := voxel.Int3{X: x, Y: y, Z: z}
					if w.voxels.IsSolidBlockAt(pos, w.table) && Intersects(body, VoxelAABB(pos)) {
						want = true
					}
				}
			}
		}
		if want {
			hits++
		}
		require.Equal(t, want, q.AnyCollision(body), "trial %d: %v", trial, body)
		assert.Equal(t, want, len(q.Intersectors(body)) > 0, "trial %d: %v", trial, body)
	}
	assert.Positive(t, hits)
	assert.Less(t, hits, 300)
}

func TestSweptCollisionsAreDeterministic(t *testing.T) {
	w := newTestWorld(t)
	for x := int32(-3); x <= 3; x++ {
		for z := int32(-3); z <= 3; z++ {
			w.voxels.SetBlockCreate(voxel.Int3{X: x, Y: 0, Z: z}, w.stone)
		}
	}
	w.voxels.SetBlockCreate(voxel.Int3{X: 2, Y: 1, Z: 0}, w.stone)
	q := w.query()

	body := mustAABB(t, mgl32.Vec3{0.5, 1.5, 0.5}, mgl32.Vec3{0.4, 0.4, 0.4})
	vel := mgl32.Vec3{1.2, -0.3, 0}
	first := q.SweptCollisions(body, vel)
	require.NotEmpty(t, first)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, q.SweptCollisions(body, vel))
	}
}

func TestIntersectorsDescribeBlocks(t *testing.T) {
	w := newTestWorld(t)
	w.voxels.SetBlockCreate(voxel.Int3{X: -1, Y: 33, Z: 2}, w.stone)
	q := w.query()

	body := mustAABB(t, mgl32.Vec3{-0.5, 33.5, 2.5}, mgl32.Vec3{0.2, 0.2, 0.2})
	intersectors := q.Intersectors(body)
	require.Len(t, intersectors, 1)
	hit := intersectors[0]
	assert.Equal(t, voxel.Int3{X: -1, Y: 33, Z: 2}, hit.Voxel)
	assert.Equal(t, voxel.Int3{X: -1, Y: 1, Z: 0}, hit.Chunk)
	assert.Equal(t, voxel.Int3{X: 31, Y: 1, Z: 2}, hit.Local)
	assert.Equal(t, w.stone, hit.Block)
	assert.Equal(t, "minecraft:stone", hit.Descriptor.FullName())
	assert.True(t, q.AnyCollision(body))
}

func BenchmarkSweptCollisions(b *testing.B) {
	w := newTestWorld(b)
	w.voxels.NewChunk(voxel.Int3{})
	w.voxels.NewChunk(voxel.Int3{Y: -1})
	w.voxels.SetFloorAtHeight(0, w.stone)
	q := w.query()
	body := mustAABB(b, mgl32.Vec3{4.5, 1.95, 4.5}, mgl32.Vec3{0.4, 0.9, 0.4})
	vel := mgl32.Vec3{0.2, -0.5, 0.1}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = q.SweptCollisions(body, vel)
	}
}
