package voxel

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// ChunkReader is the read side of a chunk as seen by collision queries.
type ChunkReader interface {
	GetLocalBlock(local Int3) Block
}

// ChunkLookup resolves chunk positions to loaded chunks.
type ChunkLookup interface {
	LookupChunk(chunkPos Int3) (ChunkReader, bool)
}

type Chunk struct {
	mu       sync.RWMutex
	data     []Block
	position Int3
	solid    int
}

func NewChunk(position Int3) *Chunk {
	c := &Chunk{
		data:     make([]Block, CHUNK_SIZE_CUBED),
		position: position,
	}
	for i := int32(0); i < CHUNK_SIZE_CUBED; i++ {
		c.data[i] = NewAirBlock()
	}
	return c
}

func blockIndex(i, j, k int32) int32 {
	return i + j*CHUNK_SIZE + k*CHUNK_SIZE_SQUARED
}

func (c *Chunk) Contains(local Int3) bool {
	return local.X >= 0 && local.X < CHUNK_SIZE && local.Y >= 0 && local.Y < CHUNK_SIZE && local.Z >= 0 && local.Z < CHUNK_SIZE
}

// GetLocalBlock returns air for positions outside the chunk.
func (c *Chunk) GetLocalBlock(local Int3) Block {
	if !c.Contains(local) {
		return NewAirBlock()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data[blockIndex(local.X, local.Y, local.Z)]
}

func (c *Chunk) SetBlock(local Int3, block Block) bool {
	if !c.Contains(local) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	index := blockIndex(local.X, local.Y, local.Z)
	if c.data[index].IsAir() && !block.IsAir() {
		c.solid++
	} else if !c.data[index].IsAir() && block.IsAir() {
		c.solid--
	}
	c.data[index] = block
	return true
}

// IsEmpty reports whether no block of the chunk is solid according to the table.
func (c *Chunk) IsEmpty(table *BlockTable) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.solid == 0 {
		return true
	}
	for _, block := range c.data {
		if !block.IsEmpty(table) {
			return false
		}
	}
	return true
}

func (c *Chunk) Position() Int3 {
	return c.position
}

func (c *Chunk) AABBMin() mgl32.Vec3 {
	return c.position.Mul(CHUNK_SIZE).ToVec3()
}

func (c *Chunk) AABBMax() mgl32.Vec3 {
	return c.position.Add(Int3{1, 1, 1}).Mul(CHUNK_SIZE).ToVec3()
}
