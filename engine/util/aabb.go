package util

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/memmaker/voxelsweep/engine/voxel"
	"github.com/pkg/errors"
)

// EPSILON is the tolerance for contact, equality and sign tests between
// volumes. Repeated float32 transforms leave jitter of about this size.
const EPSILON = float32(0.0001)

var ErrInvalidArgument = errors.New("invalid argument")

var (
	margin       = mgl32.Vec3{EPSILON, EPSILON, EPSILON}
	voxelExtents = mgl32.Vec3{0.5, 0.5, 0.5}
)

type AABB struct {
	center      mgl32.Vec3
	halfExtents mgl32.Vec3 // distance from the center to the faces, per axis
}

// NewAABB fails with ErrInvalidArgument for negative or NaN half extents.
func NewAABB(center, halfExtents mgl32.Vec3) (AABB, error) {
	for axis := 0; axis < 3; axis++ {
		h := halfExtents[axis]
		if h < 0 || h != h {
			return AABB{}, errors.Wrapf(ErrInvalidArgument, "half extent %d is %v", axis, h)
		}
	}
	return AABB{center: center, halfExtents: halfExtents}, nil
}

// VoxelAABB is the unit cell of a voxel.
func VoxelAABB(pos voxel.Int3) AABB {
	return AABB{center: pos.ToBlockCenterVec3(), halfExtents: voxelExtents}
}

func (a AABB) Min() mgl32.Vec3 {
	return a.center.Sub(a.halfExtents)
}

func (a AABB) Max() mgl32.Vec3 {
	return a.center.Add(a.halfExtents)
}

func (a AABB) Center() mgl32.Vec3 {
	return a.center
}

func (a AABB) HalfExtents() mgl32.Vec3 {
	return a.halfExtents
}

func (a AABB) Translate(offset mgl32.Vec3) AABB {
	a.center = a.center.Add(offset)
	return a
}

func (a AABB) MoveTo(center mgl32.Vec3) AABB {
	a.center = center
	return a
}

func (a AABB) Contains(vec3 mgl32.Vec3) bool {
	minVal := a.Min()
	maxVal := a.Max()
	return vec3.X() >= minVal.X() && vec3.X() <= maxVal.X() &&
		vec3.Y() >= minVal.Y() && vec3.Y() <= maxVal.Y() &&
		vec3.Z() >= minVal.Z() && vec3.Z() <= maxVal.Z()
}

func (a AABB) Intersects(b AABB) bool {
	return Intersects(a, b)
}

func (a AABB) String() string {
	return fmt.Sprintf("AABB{center: %v, half: %v}", a.center, a.halfExtents)
}

// Intersects reports whether a and b are within EPSILON of each other on every axis.
func Intersects(a, b AABB) bool {
	aMin := a.Min().Sub(margin)
	aMax := a.Max().Add(margin)
	bMin := b.Min().Sub(margin)
	bMax := b.Max().Add(margin)
	return !(aMin.X() > bMax.X() ||
		bMin.X() > aMax.X() ||
		aMin.Y() > bMax.Y() ||
		bMin.Y() > aMax.Y() ||
		aMin.Z() > bMax.Z() ||
		bMin.Z() > aMax.Z())
}

type CollisionInfo struct {
	Voxel    AABB       // the static volume that was hit
	Normal   mgl32.Vec3 // one axis set to +1 or -1, pointing away from Voxel
	Distance float32    // |gap| between the leading faces on the normal axis
}

func (c CollisionInfo) String() string {
	return fmt.Sprintf("Collision @ %v norm %v dist %v", voxel.WorldToVoxel(c.Voxel.Center()), c.Normal, c.Distance)
}

// Axis returns the index of the non-zero normal component.
func (c CollisionInfo) Axis() int {
	for axis := 0; axis < 3; axis++ {
		if c.Normal[axis] != 0 {
			return axis
		}
	}
	return -1
}

// SweepAABB moves a by vel over one tick against the static volume b.
// Per axis, invEnter is the gap between the faces that close first and
// invExit the gap between the faces that separate last; dividing by the
// velocity turns both into fractions of the tick.
func SweepAABB(a, b AABB, vel mgl32.Vec3) (CollisionInfo, bool) {
	aMin, aMax := a.Min(), a.Max()
	bMin, bMax := b.Min(), b.Max()

	var invEnter, invExit, enter, exit mgl32.Vec3
	for axis := 0; axis < 3; axis++ {
		if vel[axis] > 0 {
			invEnter[axis] = bMin[axis] - aMax[axis]
			invExit[axis] = bMax[axis] - aMin[axis]
		} else {
			invEnter[axis] = bMax[axis] - aMin[axis]
			invExit[axis] = bMin[axis] - aMax[axis]
		}

		if vel[axis] == 0 {
			if separated(invEnter[axis], invExit[axis]) {
				// not overlapping on this axis and nothing moves to close the gap
				return CollisionInfo{}, false
			}
			enter[axis] = float32(math.Inf(-1))
			exit[axis] = float32(math.Inf(1))
		} else {
			enter[axis] = invEnter[axis] / vel[axis]
			exit[axis] = invExit[axis] / vel[axis]
		}
	}

	enterTime := max3(enter.X(), enter.Y(), enter.Z())
	exitTime := min3(exit.X(), exit.Y(), exit.Z())
	if enterTime > exitTime ||
		movingAway(enter, vel) ||
		enter.X() > 1 || enter.Y() > 1 || enter.Z() > 1 {
		return CollisionInfo{}, false
	}

	axis := contactAxis(invEnter, enter, vel, enterTime)
	var normal mgl32.Vec3
	if invExit[axis] < 0 {
		normal[axis] = 1
	} else {
		normal[axis] = -1
	}
	return CollisionInfo{
		Voxel:    b,
		Normal:   normal,
		Distance: abs(invEnter[axis]),
	}, true
}

// separated is true when both gaps lie beyond EPSILON on the same side.
func separated(invEnter, invExit float32) bool {
	return (invEnter > EPSILON && invExit > EPSILON) || (invEnter < -EPSILON && invExit < -EPSILON)
}

// movingAway is true when every moving axis entered more than EPSILON in the
// past. A body without velocity is never moving away.
func movingAway(enter, vel mgl32.Vec3) bool {
	moving := false
	for axis := 0; axis < 3; axis++ {
		if vel[axis] == 0 {
			continue
		}
		moving = true
		if enter[axis] >= -EPSILON {
			return false
		}
	}
	return moving
}

// contactAxis picks the normal axis. First an axis already flush and not
// moving, then an axis touching at the start of the tick, then the axis
// that closed last. Ties go to x, then y, then z.
func contactAxis(invEnter, enter, vel mgl32.Vec3, enterTime float32) int {
	for axis := 0; axis < 3; axis++ {
		if vel[axis] == 0 && nearlyEqual(invEnter[axis], 0) {
			return axis
		}
	}
	for axis := 0; axis < 3; axis++ {
		if nearlyEqual(enter[axis], 0) {
			return axis
		}
	}
	for axis := 0; axis < 2; axis++ {
		if nearlyEqual(enter[axis], enterTime) {
			return axis
		}
	}
	return 2
}

func nearlyEqual(a, b float32) bool {
	return a == b || abs(a-b) <= EPSILON
}

func max3(a, b, c float32) float32 {
	return max(max(a, b), c)
}

func min3(a, b, c float32) float32 {
	return min(min(a, b), c)
}
