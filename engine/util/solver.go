package util

import (
	"context"
	"runtime"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrBodyEmbedded = errors.New("body overlaps solid terrain")
	ErrUnknownBody  = errors.New("unknown body")
)

// resolution order of the axes, vertical first
var axisOrder = [3]int{1, 0, 2}

type Body struct {
	ID        uuid.UUID
	Name      string
	AABB      AABB
	Velocity  mgl32.Vec3 // world units per second
	NoCollide bool       // moved without terrain tests
	Grounded  bool       // stopped by a floor during the last tick
}

type CollisionEvent struct {
	Body       uuid.UUID
	Name       string
	Tick       uint64
	Collisions []CollisionInfo
}

type CollisionSolver struct {
	mu                      sync.Mutex
	query                   *WorldQuery
	bodies                  []*Body
	accelerationFromGravity mgl32.Vec3
	maxSpeed                float32
	workers                 int
	tick                    uint64
	onCollision             func(CollisionEvent)
	timer                   *Timer
}

// NewCollisionSolver creates a solver over query. A maxSpeed <= 0 disables
// the velocity clamp, workers <= 0 uses GOMAXPROCS. onCollision may be nil.
func NewCollisionSolver(query *WorldQuery, gravity mgl32.Vec3, maxSpeed float32, workers int, onCollision func(CollisionEvent)) *CollisionSolver {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &CollisionSolver{
		query:                   query,
		accelerationFromGravity: gravity,
		maxSpeed:                maxSpeed,
		workers:                 workers,
		onCollision:             onCollision,
		timer:                   NewTimer(),
	}
}

// AddObject registers a body and returns its id. A colliding body that
// already overlaps solid terrain is refused with ErrBodyEmbedded.
func (c *CollisionSolver) AddObject(body Body) (uuid.UUID, error) {
	if !IsFinite(body.AABB.Center()) || !IsFinite(body.Velocity) {
		return uuid.Nil, errors.Wrapf(ErrInvalidArgument, "body %q has non-finite state", body.Name)
	}
	if !body.NoCollide && c.query.AnyCollision(shrink(body.AABB)) {
		for _, hit := range c.query.Intersectors(shrink(body.AABB)) {
			LogPhysicsDebug("spawn blocked", zap.String("body", body.Name), zap.Stringer("voxel", hit.Voxel), zap.String("block", hit.Descriptor.FullName()))
		}
		return uuid.Nil, errors.Wrapf(ErrBodyEmbedded, "body %q at %v", body.Name, body.AABB.Center())
	}
	if body.ID == uuid.Nil {
		body.ID = uuid.New()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bodies = append(c.bodies, &body)
	LogPhysicsInfo("body added", zap.String("body", body.Name), zap.Stringer("id", body.ID), zap.Stringer("aabb", body.AABB))
	return body.ID, nil
}

func (c *CollisionSolver) RemoveObject(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, body := range c.bodies {
		if body.ID == id {
			c.bodies = append(c.bodies[:i], c.bodies[i+1:]...)
			return true
		}
	}
	return false
}

// Bodies returns copies of all bodies in insertion order.
func (c *CollisionSolver) Bodies() []Body {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]Body, len(c.bodies))
	for i, body := range c.bodies {
		result[i] = *body
	}
	return result
}

func (c *CollisionSolver) Body(id uuid.UUID) (Body, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, body := range c.bodies {
		if body.ID == id {
			return *body, true
		}
	}
	return Body{}, false
}

func (c *CollisionSolver) SetVelocity(id uuid.UUID, velocity mgl32.Vec3) error {
	if !IsFinite(velocity) {
		return errors.Wrapf(ErrInvalidArgument, "velocity %v", velocity)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, body := range c.bodies {
		if body.ID == id {
			body.Velocity = velocity
			return nil
		}
	}
	return errors.Wrapf(ErrUnknownBody, "%v", id)
}

func (c *CollisionSolver) Tick() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick
}

func (c *CollisionSolver) Timer() *Timer {
	return c.timer
}

// Update advances every body by deltaTime seconds. Bodies are processed in
// parallel; events come back in body insertion order. A cancelled context
// aborts the tick and leaves unprocessed bodies where they were.
// onCollision runs after the tick is complete, so it may call back into
// the solver.
func (c *CollisionSolver) Update(ctx context.Context, deltaTime float64) ([]CollisionEvent, error) {
	stop := c.timer.Start("physics")
	defer stop()

	events, err := c.step(ctx, deltaTime)
	if err != nil {
		return nil, err
	}
	if c.onCollision != nil {
		for _, event := range events {
			c.onCollision(event)
		}
	}
	return events, nil
}

func (c *CollisionSolver) step(ctx context.Context, deltaTime float64) ([]CollisionEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick++
	tick := c.tick

	results := make([]*CollisionEvent, len(c.bodies))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.workers)
	for i, body := range c.bodies {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			results[i] = c.moveAndCollide(body, float32(deltaTime), tick)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, errors.Wrapf(err, "tick %d", tick)
	}

	events := make([]CollisionEvent, 0, len(results))
	for _, event := range results {
		if event != nil {
			events = append(events, *event)
		}
	}
	return events, nil
}

func (c *CollisionSolver) moveAndCollide(body *Body, dt float32, tick uint64) *CollisionEvent {
	velocity := ClampLength(body.Velocity.Add(c.accelerationFromGravity.Mul(dt)), c.maxSpeed)
	if !IsFinite(velocity) {
		LogPhysicsWarning("dropping non-finite velocity", zap.String("body", body.Name), zap.Stringer("id", body.ID))
		velocity = mgl32.Vec3{}
	}
	displacement := velocity.Mul(dt)

	if body.NoCollide {
		body.AABB = body.AABB.Translate(displacement)
		body.Velocity = velocity
		body.Grounded = false
		return nil
	}

	if c.query.AnyCollision(shrink(body.AABB)) {
		LogPhysicsWarning("body is embedded in terrain", zap.String("body", body.Name), zap.Stringer("aabb", body.AABB))
		for _, hit := range c.query.Intersectors(shrink(body.AABB)) {
			LogPhysicsDebug("embedded in", zap.String("body", body.Name), zap.Stringer("voxel", hit.Voxel), zap.String("block", hit.Descriptor.FullName()))
		}
	}

	var hits []CollisionInfo
	grounded := false
	for _, axis := range axisOrder {
		if displacement[axis] == 0 {
			continue
		}
		var step mgl32.Vec3
		step[axis] = displacement[axis]
		allowed, blocking := c.resolveAxis(body.AABB, step, axis)
		if len(blocking) > 0 {
			hits = append(hits, blocking...)
			velocity[axis] = 0
			if axis == 1 && step[axis] < 0 {
				grounded = true
			}
		}
		step[axis] = allowed
		body.AABB = body.AABB.Translate(step)
	}
	body.Velocity = velocity
	body.Grounded = grounded

	if len(hits) == 0 {
		return nil
	}
	LogPhysicsDebug("collision", zap.String("body", body.Name), zap.Uint64("tick", tick), zap.Int("hits", len(hits)), zap.Stringer("first", hits[0]))
	return &CollisionEvent{
		Body:       body.ID,
		Name:       body.Name,
		Tick:       tick,
		Collisions: hits,
	}
}

// resolveAxis sweeps aabb by step, which is non-zero on axis only, and
// returns how far it may travel before touching a face that opposes the
// motion, together with those opposing contacts.
func (c *CollisionSolver) resolveAxis(aabb AABB, step mgl32.Vec3, axis int) (float32, []CollisionInfo) {
	allowed := step[axis]
	var blocking []CollisionInfo
	for _, info := range c.query.SweptCollisions(aabb, step) {
		if info.Axis() != axis || info.Normal[axis]*step[axis] >= 0 {
			continue
		}
		if !overlapsAcross(aabb, info.Voxel, axis) {
			continue
		}
		blocking = append(blocking, info)
		limit := info.Distance
		if faceGap(aabb, info) < 0 {
			limit = 0
		}
		if step[axis] > 0 {
			allowed = min(allowed, limit)
		} else {
			allowed = max(allowed, -limit)
		}
	}
	return allowed, blocking
}

// faceGap is the signed distance between the body face and the voxel face
// named by the normal. Negative values mean the faces already overlap.
func faceGap(aabb AABB, info CollisionInfo) float32 {
	axis := info.Axis()
	if info.Normal[axis] > 0 {
		return aabb.Min()[axis] - info.Voxel.Max()[axis]
	}
	return info.Voxel.Min()[axis] - aabb.Max()[axis]
}

// overlapsAcross reports whether a and b overlap by more than EPSILON on
// both axes other than axis. Edge and corner contact does not block.
func overlapsAcross(a, b AABB, axis int) bool {
	aMin, aMax := a.Min(), a.Max()
	bMin, bMax := b.Min(), b.Max()
	for other := 0; other < 3; other++ {
		if other == axis {
			continue
		}
		if min(aMax[other], bMax[other])-max(aMin[other], bMin[other]) <= EPSILON {
			return false
		}
	}
	return true
}

// shrink pulls every face in so that resting contact, which Intersects
// accepts within EPSILON, does not count as overlap.
func shrink(aabb AABB) AABB {
	he := aabb.HalfExtents()
	for axis := 0; axis < 3; axis++ {
		he[axis] = max(he[axis]-4*EPSILON, 0)
	}
	aabb.halfExtents = he
	return aabb
}
