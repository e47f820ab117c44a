package util

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/memmaker/voxelsweep/engine/voxel"
)

type RayHit struct {
	Hit      bool
	Voxel    voxel.Int3 // first solid voxel on the ray
	Previous voxel.Int3 // last free voxel before it
	Normal   mgl32.Vec3 // face of Voxel the ray entered through, zero if it started inside
	Distance float32
	Point    mgl32.Vec3
}

// Raycast walks the voxels on the segment from rayStart to rayEnd and
// stops at the first solid one.
func (q *WorldQuery) Raycast(rayStart, rayEnd mgl32.Vec3) RayHit {
	return DDARaycast(rayStart, rayEnd, q.SolidAt)
}

// DDARaycast visits voxels in the order the segment crosses them until
// stopRay returns true.
func DDARaycast(rayStart, rayEnd mgl32.Vec3, stopRay func(voxel.Int3) bool) RayHit {
	// adapted from: https://github.com/fenomas/fast-voxel-raycast/blob/master/index.js
	current := voxel.WorldToVoxel(rayStart)
	ray := rayEnd.Sub(rayStart)
	maxRayLength := float64(ray.Len())
	if maxRayLength == 0 {
		if stopRay(current) {
			return RayHit{Hit: true, Voxel: current, Previous: current, Point: rayStart}
		}
		return RayHit{}
	}
	rayDir := ray.Mul(float32(1 / maxRayLength))

	var step [3]int32
	var tDelta, tMax [3]float64
	start := [3]int32{current.X, current.Y, current.Z}
	for axis := 0; axis < 3; axis++ {
		dir := float64(rayDir[axis])
		step[axis] = -1
		dist := float64(rayStart[axis]) - float64(start[axis])
		if dir > 0 {
			step[axis] = 1
			dist = float64(start[axis]+1) - float64(rayStart[axis])
		}
		tDelta[axis] = math.Abs(1 / dir)
		tMax[axis] = math.Inf(1)
		if !math.IsInf(tDelta[axis], 1) {
			tMax[axis] = tDelta[axis] * dist
		}
	}

	cell := start
	t := 0.0
	steppedAxis := -1
	for t <= maxRayLength {
		pos := voxel.Int3{X: cell[0], Y: cell[1], Z: cell[2]}
		if stopRay(pos) {
			hit := RayHit{
				Hit:      true,
				Voxel:    pos,
				Previous: pos,
				Distance: float32(t),
				Point:    rayStart.Add(rayDir.Mul(float32(t))),
			}
			if steppedAxis >= 0 {
				prev := cell
				prev[steppedAxis] -= step[steppedAxis]
				hit.Previous = voxel.Int3{X: prev[0], Y: prev[1], Z: prev[2]}
				hit.Normal[steppedAxis] = float32(-step[steppedAxis])
			}
			return hit
		}

		steppedAxis = 0
		if tMax[1] < tMax[steppedAxis] {
			steppedAxis = 1
		}
		if tMax[2] < tMax[steppedAxis] {
			steppedAxis = 2
		}
		cell[steppedAxis] += step[steppedAxis]
		t = tMax[steppedAxis]
		tMax[steppedAxis] += tDelta[steppedAxis]
	}
	return RayHit{}
}
