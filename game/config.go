package game

import (
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

const (
	GeneratorFlat         = "flat"
	GeneratorNoise        = "noise"
	GeneratorConstruction = "construction"
)

// Config holds everything needed to run a simulation.
type Config struct {
	LogLevel      string     `yaml:"log_level"`
	LogCategories []string   `yaml:"log_categories"`
	Ticks         int        `yaml:"ticks"`
	TickRate      float64    `yaml:"tick_rate"` // ticks per second
	Realtime      bool       `yaml:"realtime"`  // pace ticks with a wall clock
	Gravity       mgl32.Vec3 `yaml:"gravity"`
	MaxSpeed      float32    `yaml:"max_speed"` // 0 = unlimited
	Workers       int        `yaml:"workers"`   // 0 = GOMAXPROCS

	World  WorldConfig  `yaml:"world"`
	Bodies []BodyConfig `yaml:"bodies"`
}

type WorldConfig struct {
	Generator    string `yaml:"generator"`    // "flat", "noise" or "construction"
	Construction string `yaml:"construction"` // Amulet .construction file
	BlockTable   string `yaml:"block_table"`  // YAML block table, built-in table when empty
	ChunkRadius  int32  `yaml:"chunk_radius"` // generated chunks around the origin
	FloorHeight  int32  `yaml:"floor_height"`
	FloorBlock   string `yaml:"floor_block"`
	FillBlock    string `yaml:"fill_block"`
	Seed         int64  `yaml:"seed"`
	Amplitude    int32  `yaml:"amplitude"` // highest hill above the floor
}

type BodyConfig struct {
	Name         string     `yaml:"name"`
	Position     mgl32.Vec3 `yaml:"position"`
	HalfExtents  mgl32.Vec3 `yaml:"half_extents"`
	Velocity     mgl32.Vec3 `yaml:"velocity"`
	NoCollide    bool       `yaml:"no_collide"`
	SnapToGround bool       `yaml:"snap_to_ground"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:      "info",
		LogCategories: []string{"voxel", "physics", "system", "io"},
		Ticks:         200,
		TickRate:      20,
		Gravity:       mgl32.Vec3{0, -9.8, 0},
		MaxSpeed:      50,
		World: WorldConfig{
			Generator:   GeneratorFlat,
			ChunkRadius: 1,
			FloorHeight: 0,
			FloorBlock:  "stone",
			FillBlock:   "dirt",
			Amplitude:   8,
		},
		Bodies: []BodyConfig{
			{
				Name:        "steve",
				Position:    mgl32.Vec3{0.5, 6, 0.5},
				HalfExtents: mgl32.Vec3{0.3, 0.9, 0.3},
				Velocity:    mgl32.Vec3{2, 0, 1},
			},
		},
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	defer file.Close()
	cfg := DefaultConfig()
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, errors.Wrapf(err, "decode config %s", path)
	}
	return cfg, nil
}

// Merge applies file-loaded values into cfg, but only for fields that were
// NOT explicitly set via CLI flags. Sections without flags always come from
// the file.
func Merge(cfg *Config, fromFile *Config, explicitFlags map[string]bool) {
	if !explicitFlags["log-level"] {
		cfg.LogLevel = fromFile.LogLevel
	}
	if !explicitFlags["log-categories"] {
		cfg.LogCategories = fromFile.LogCategories
	}
	if !explicitFlags["ticks"] {
		cfg.Ticks = fromFile.Ticks
	}
	if !explicitFlags["tick-rate"] {
		cfg.TickRate = fromFile.TickRate
	}
	if !explicitFlags["realtime"] {
		cfg.Realtime = fromFile.Realtime
	}
	if !explicitFlags["workers"] {
		cfg.Workers = fromFile.Workers
	}
	if !explicitFlags["generator"] {
		cfg.World.Generator = fromFile.World.Generator
	}
	if !explicitFlags["construction"] {
		cfg.World.Construction = fromFile.World.Construction
	}
	if !explicitFlags["seed"] {
		cfg.World.Seed = fromFile.World.Seed
	}
	cfg.Gravity = fromFile.Gravity
	cfg.MaxSpeed = fromFile.MaxSpeed
	cfg.World.BlockTable = fromFile.World.BlockTable
	cfg.World.ChunkRadius = fromFile.World.ChunkRadius
	cfg.World.FloorHeight = fromFile.World.FloorHeight
	cfg.World.FloorBlock = fromFile.World.FloorBlock
	cfg.World.FillBlock = fromFile.World.FillBlock
	cfg.World.Amplitude = fromFile.World.Amplitude
	cfg.Bodies = fromFile.Bodies
}

func (c *Config) Validate() error {
	if c.Ticks < 0 {
		return errors.Wrapf(ErrInvalidConfig, "ticks must not be negative, got %d", c.Ticks)
	}
	if c.TickRate <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "tick rate must be positive, got %v", c.TickRate)
	}
	if c.MaxSpeed < 0 {
		return errors.Wrapf(ErrInvalidConfig, "max speed must not be negative, got %v", c.MaxSpeed)
	}
	if c.Workers < 0 {
		return errors.Wrapf(ErrInvalidConfig, "workers must not be negative, got %d", c.Workers)
	}
	switch c.World.Generator {
	case GeneratorFlat, GeneratorNoise:
		if c.World.ChunkRadius < 0 {
			return errors.Wrapf(ErrInvalidConfig, "chunk radius must not be negative, got %d", c.World.ChunkRadius)
		}
		if c.World.FloorBlock == "" {
			return errors.Wrap(ErrInvalidConfig, "floor block missing")
		}
	case GeneratorConstruction:
		if c.World.Construction == "" {
			return errors.Wrap(ErrInvalidConfig, "construction generator needs a construction file")
		}
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown generator %q", c.World.Generator)
	}
	names := make(map[string]bool, len(c.Bodies))
	for i, body := range c.Bodies {
		if body.Name == "" {
			return errors.Wrapf(ErrInvalidConfig, "body #%d has no name", i)
		}
		if names[body.Name] {
			return errors.Wrapf(ErrInvalidConfig, "duplicate body name %q", body.Name)
		}
		names[body.Name] = true
		for axis := 0; axis < 3; axis++ {
			if body.HalfExtents[axis] < 0 {
				return errors.Wrapf(ErrInvalidConfig, "body %q has a negative half extent", body.Name)
			}
		}
	}
	return nil
}

// TickDuration is the simulated time of one tick in seconds.
func (c *Config) TickDuration() float64 {
	return 1 / c.TickRate
}
