package game

import (
	"context"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/memmaker/voxelsweep/engine/util"
	"github.com/memmaker/voxelsweep/engine/voxel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// groundSearchDepth limits how far below its spawn point a body looks for ground.
const groundSearchDepth = 256

type Stats struct {
	Ticks      uint64
	Events     int
	Collisions int
	Grounded   int // bodies standing on something after the last tick
}

// Simulation owns a world and steps its bodies at a fixed tick rate.
type Simulation struct {
	cfg    *Config
	world  *voxel.Map
	blocks *voxel.BlockTable
	query  *util.WorldQuery
	solver *util.CollisionSolver
	stats  Stats
	ids    map[string]uuid.UUID
}

func NewSimulation(cfg *Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	world, blocks, err := BuildWorld(cfg.World)
	if err != nil {
		return nil, errors.Wrap(err, "build world")
	}
	return NewSimulationWithWorld(cfg, world, blocks)
}

// NewSimulationWithWorld runs cfg against an existing world. cfg.World is ignored.
func NewSimulationWithWorld(cfg *Config, world *voxel.Map, blocks *voxel.BlockTable) (*Simulation, error) {
	query := util.NewWorldQuery(world, blocks)
	s := &Simulation{
		cfg:    cfg,
		world:  world,
		blocks: blocks,
		query:  query,
		solver: util.NewCollisionSolver(query, cfg.Gravity, cfg.MaxSpeed, cfg.Workers, nil),
		ids:    make(map[string]uuid.UUID),
	}
	for _, bodyCfg := range cfg.Bodies {
		if err := s.spawn(bodyCfg); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Simulation) spawn(bodyCfg BodyConfig) error {
	aabb, err := util.NewAABB(bodyCfg.Position, bodyCfg.HalfExtents)
	if err != nil {
		return errors.Wrapf(err, "body %q", bodyCfg.Name)
	}
	if bodyCfg.SnapToGround {
		aabb = aabb.MoveTo(s.groundPosition(aabb))
	}
	id, err := s.solver.AddObject(util.Body{
		Name:      bodyCfg.Name,
		AABB:      aabb,
		Velocity:  bodyCfg.Velocity,
		NoCollide: bodyCfg.NoCollide,
	})
	if err != nil {
		return errors.Wrap(err, "spawn")
	}
	s.ids[bodyCfg.Name] = id
	return nil
}

// groundPosition is the center that rests aabb on the first solid block
// below it. Without ground the current center is kept.
func (s *Simulation) groundPosition(aabb util.AABB) mgl32.Vec3 {
	position := aabb.Center()
	hit := s.query.Raycast(position, position.Sub(mgl32.Vec3{0, groundSearchDepth, 0}))
	if !hit.Hit || hit.Normal.Y() != 1 {
		return position
	}
	return mgl32.Vec3{position.X(), float32(hit.Voxel.Y+1) + aabb.HalfExtents().Y(), position.Z()}
}

// Step advances the simulation by one tick.
func (s *Simulation) Step(ctx context.Context) ([]util.CollisionEvent, error) {
	events, err := s.solver.Update(ctx, s.cfg.TickDuration())
	if err != nil {
		return nil, err
	}
	s.stats.Ticks = s.solver.Tick()
	s.stats.Events += len(events)
	for _, event := range events {
		s.stats.Collisions += len(event.Collisions)
		util.LogPhysicsDebug("body collided",
			zap.String("body", event.Name),
			zap.Uint64("tick", event.Tick),
			zap.Int("voxels", len(event.Collisions)),
		)
	}
	grounded := 0
	for _, body := range s.solver.Bodies() {
		if body.Grounded {
			grounded++
		}
	}
	s.stats.Grounded = grounded
	return events, nil
}

// Run steps the simulation ticks times, or until ctx is done. With
// Realtime set, ticks are paced by a wall clock ticker.
func (s *Simulation) Run(ctx context.Context, ticks int) (Stats, error) {
	var pace <-chan time.Time
	if s.cfg.Realtime {
		ticker := time.NewTicker(time.Duration(s.cfg.TickDuration() * float64(time.Second)))
		defer ticker.Stop()
		pace = ticker.C
	}
	util.LogSystemInfo("simulation started", zap.Int("ticks", ticks), zap.Int("bodies", len(s.ids)), zap.Float64("tick_rate", s.cfg.TickRate))
	for i := 0; i < ticks; i++ {
		if pace != nil {
			select {
			case <-ctx.Done():
				return s.stats, errors.Wrap(ctx.Err(), "simulation stopped")
			case <-pace:
			}
		}
		if _, err := s.Step(ctx); err != nil {
			util.LogSystemError("tick failed", zap.Error(err))
			return s.stats, err
		}
	}
	state, _ := s.solver.Timer().GetState("physics")
	util.LogSystemInfo("simulation finished",
		zap.Uint64("ticks", s.stats.Ticks),
		zap.Int("events", s.stats.Events),
		zap.Int("collisions", s.stats.Collisions),
		zap.Duration("avg_tick", state.Average()),
		zap.Duration("max_tick", state.Max()),
	)
	return s.stats, nil
}

func (s *Simulation) Stats() Stats {
	return s.stats
}

func (s *Simulation) Bodies() []util.Body {
	return s.solver.Bodies()
}

// Body looks a body up by its configured name.
func (s *Simulation) Body(name string) (util.Body, bool) {
	id, ok := s.ids[name]
	if !ok {
		return util.Body{}, false
	}
	return s.solver.Body(id)
}

func (s *Simulation) World() *voxel.Map {
	return s.world
}

func (s *Simulation) Blocks() *voxel.BlockTable {
	return s.blocks
}

func (s *Simulation) Query() *util.WorldQuery {
	return s.query
}
