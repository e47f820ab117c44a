package util

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/memmaker/voxelsweep/engine/voxel"
	"github.com/stretchr/testify/assert"
)

func TestRaycast(t *testing.T) {
	w := newTestWorld(t)
	for x := int32(-6); x <= 6; x++ {
		for z := int32(-2); z <= 2; z++ {
			w.voxels.SetBlockCreate(voxel.Int3{X: x, Y: 0, Z: z}, w.stone)
		}
	}
	for y := int32(1); y <= 2; y++ {
		w.voxels.SetBlockCreate(voxel.Int3{X: 3, Y: y, Z: 0}, w.stone)
		w.voxels.SetBlockCreate(voxel.Int3{X: -4, Y: y, Z: 0}, w.stone)
	}
	q := w.query()

	tests := []struct {
		name       string
		start, end mgl32.Vec3
		hit        bool
		voxel      voxel.Int3
		previous   voxel.Int3
		normal     mgl32.Vec3
		distance   float32
	}{
		{"down onto floor", mgl32.Vec3{0.5, 5, 0.5}, mgl32.Vec3{0.5, -5, 0.5}, true, voxel.Int3{}, voxel.Int3{Y: 1}, mgl32.Vec3{0, 1, 0}, 4},
		{"stops short of floor", mgl32.Vec3{0.5, 5, 0.5}, mgl32.Vec3{0.5, 1.5, 0.5}, false, voxel.Int3{}, voxel.Int3{}, mgl32.Vec3{}, 0},
		{"into wall on +x", mgl32.Vec3{0.5, 1.5, 0.5}, mgl32.Vec3{10, 1.5, 0.5}, true, voxel.Int3{X: 3, Y: 1}, voxel.Int3{X: 2, Y: 1}, mgl32.Vec3{-1, 0, 0}, 2.5},
		{"into wall on -x", mgl32.Vec3{-0.5, 1.5, 0.5}, mgl32.Vec3{-10, 1.5, 0.5}, true, voxel.Int3{X: -4, Y: 1}, voxel.Int3{X: -3, Y: 1}, mgl32.Vec3{1, 0, 0}, 2.5},
		{"starts inside", mgl32.Vec3{0.5, 0.5, 0.5}, mgl32.Vec3{0.5, 3, 0.5}, true, voxel.Int3{}, voxel.Int3{}, mgl32.Vec3{}, 0},
		{"zero length in air", mgl32.Vec3{0.5, 3, 0.5}, mgl32.Vec3{0.5, 3, 0.5}, false, voxel.Int3{}, voxel.Int3{}, mgl32.Vec3{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit := q.Raycast(tt.start, tt.end)
			assert.Equal(t, tt.hit, hit.Hit)
			if !tt.hit {
				return
			}
			assert.Equal(t, tt.voxel, hit.Voxel)
			assert.Equal(t, tt.previous, hit.Previous)
			assert.Equal(t, tt.normal, hit.Normal)
			assert.InDelta(t, tt.distance, hit.Distance, 1e-5)
		})
	}
}

func TestDDARaycastVisitsCellsInOrder(t *testing.T) {
	var visited []voxel.Int3
	hit := DDARaycast(mgl32.Vec3{0.5, 0.5, 0.5}, mgl32.Vec3{3.5, 0.5, 0.5}, func(pos voxel.Int3) bool {
		visited = append(visited, pos)
		return false
	})
	assert.False(t, hit.Hit)
	assert.Equal(t, []voxel.Int3{{X: 0}, {X: 1}, {X: 2}, {X: 3}}, visited)

	visited = nil
	DDARaycast(mgl32.Vec3{0.5, 0.5, 0.5}, mgl32.Vec3{2.5, 2.5, 0.5}, func(pos voxel.Int3) bool {
		visited = append(visited, pos)
		return false
	})
	for i := 1; i < len(visited); i++ {
		step := visited[i].Sub(visited[i-1])
		assert.Equal(t, int32(1), voxel.Abs(step.X)+voxel.Abs(step.Y)+voxel.Abs(step.Z), "face neighbours only")
	}
	assert.Equal(t, voxel.Int3{X: 2, Y: 2}, visited[len(visited)-1])
}

// execute with: go test -bench=. -test.benchmem -test.benchtime=10s
func BenchmarkRaycast(b *testing.B) {
	w := newTestWorld(b)
	w.voxels.SetBlockCreate(voxel.Int3{X: 20, Y: 3, Z: 7}, w.stone)
	q := w.query()
	start, end := mgl32.Vec3{0.5, 0.5, 0.5}, mgl32.Vec3{20.5, 3.5, 7.5}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = q.Raycast(start, end)
	}
}
