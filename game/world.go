package game

import (
	"os"

	"github.com/memmaker/voxelsweep/engine/util"
	"github.com/memmaker/voxelsweep/engine/voxel"
	"github.com/ojrac/opensimplex-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// noiseScale is the horizontal size of a hill in blocks.
const noiseScale = 24.0

// BuildWorld creates the block table and the voxel map described by cfg.
func BuildWorld(cfg WorldConfig) (*voxel.Map, *voxel.BlockTable, error) {
	table, err := loadBlockTable(cfg.BlockTable)
	if err != nil {
		return nil, nil, err
	}

	var world *voxel.Map
	switch cfg.Generator {
	case GeneratorConstruction:
		world, err = loadConstructionWorld(table, cfg.Construction)
	case GeneratorNoise:
		world, err = generateNoiseWorld(table, cfg)
	default:
		world, err = generateFlatWorld(table, cfg)
	}
	if err != nil {
		return nil, nil, err
	}
	util.LogVoxelInfo("world ready", zap.String("generator", cfg.Generator), zap.Int("chunks", world.ChunkCount()), zap.Int("blocks", table.Len()))
	return world, table, nil
}

func loadBlockTable(path string) (*voxel.BlockTable, error) {
	if path == "" {
		return voxel.NewDefaultBlockTable(), nil
	}
	file, err := os.Open(path)
	if err != nil {
		util.LogIOError("cannot open block table", zap.String("path", path), zap.Error(err))
		return nil, errors.Wrap(err, "open block table")
	}
	defer file.Close()
	table, err := voxel.LoadBlockTable(file)
	if err != nil {
		return nil, errors.Wrapf(err, "block table %s", path)
	}
	return table, nil
}

func loadConstructionWorld(table *voxel.BlockTable, path string) (*voxel.Map, error) {
	construction, err := voxel.LoadConstruction(path)
	if err != nil {
		util.LogIOError("cannot load construction", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	world, unknown := voxel.NewMapFromConstruction(table, construction)
	if len(unknown) > 0 {
		util.LogVoxelWarning("construction uses blocks missing from the table, placed as air", zap.Strings("blocks", unknown))
	}
	return world, nil
}

func resolveBlock(table *voxel.BlockTable, name string) (voxel.Block, error) {
	block, ok := table.GetBlockByName(name)
	if !ok {
		return block, errors.Wrapf(ErrInvalidConfig, "unknown block %q", name)
	}
	return block, nil
}

// newChunkColumns creates empty chunks for every column within radius of
// the origin, covering the layers from bottomY to topY.
func newChunkColumns(world *voxel.Map, radius, bottomY, topY int32) {
	bottom, _ := voxel.Int3{Y: bottomY}.ToOffsets()
	top, _ := voxel.Int3{Y: topY}.ToOffsets()
	for x := -radius; x <= radius; x++ {
		for z := -radius; z <= radius; z++ {
			for y := bottom.Y; y <= top.Y; y++ {
				world.NewChunk(voxel.Int3{X: x, Y: y, Z: z})
			}
		}
	}
}

func generateFlatWorld(table *voxel.BlockTable, cfg WorldConfig) (*voxel.Map, error) {
	floor, err := resolveBlock(table, cfg.FloorBlock)
	if err != nil {
		return nil, err
	}
	world := voxel.NewMap()
	newChunkColumns(world, cfg.ChunkRadius, cfg.FloorHeight, cfg.FloorHeight)
	world.SetFloorAtHeight(cfg.FloorHeight, floor)
	return world, nil
}

// generateNoiseWorld lays a floor and raises hills of fill blocks on it,
// their height following 2D simplex noise.
func generateNoiseWorld(table *voxel.BlockTable, cfg WorldConfig) (*voxel.Map, error) {
	floor, err := resolveBlock(table, cfg.FloorBlock)
	if err != nil {
		return nil, err
	}
	fill := floor
	if cfg.FillBlock != "" {
		if fill, err = resolveBlock(table, cfg.FillBlock); err != nil {
			return nil, err
		}
	}

	world := voxel.NewMap()
	newChunkColumns(world, cfg.ChunkRadius, cfg.FloorHeight, cfg.FloorHeight+cfg.Amplitude)
	world.SetFloorAtHeight(cfg.FloorHeight, floor)

	noise := opensimplex.NewNormalized(cfg.Seed)
	minBlock := -cfg.ChunkRadius * voxel.CHUNK_SIZE
	maxBlock := (cfg.ChunkRadius+1)*voxel.CHUNK_SIZE - 1
	for x := minBlock; x <= maxBlock; x++ {
		for z := minBlock; z <= maxBlock; z++ {
			height := int32(noise.Eval2(float64(x)/noiseScale, float64(z)/noiseScale) * float64(cfg.Amplitude))
			for y := cfg.FloorHeight + 1; y <= cfg.FloorHeight+height; y++ {
				world.SetBlock(voxel.Int3{X: x, Y: y, Z: z}, fill)
			}
		}
	}
	return world, nil
}
