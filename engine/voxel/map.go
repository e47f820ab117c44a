package voxel

import (
	"encoding/binary"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const mapShardCount = 16

type mapShard struct {
	mu     sync.RWMutex
	chunks map[Int3]*Chunk
}

// Map is a sparse, unbounded voxel world. Chunks are spread over shards
// keyed by the xxhash of their position, so concurrent readers touching
// different regions do not share a lock.
type Map struct {
	shards [mapShardCount]*mapShard
}

var _ ChunkLookup = (*Map)(nil)

func NewMap() *Map {
	m := &Map{}
	for i := range m.shards {
		m.shards[i] = &mapShard{chunks: make(map[Int3]*Chunk)}
	}
	return m
}

func (m *Map) shardFor(chunkPos Int3) *mapShard {
	var key [12]byte
	binary.LittleEndian.PutUint32(key[0:4], uint32(chunkPos.X))
	binary.LittleEndian.PutUint32(key[4:8], uint32(chunkPos.Y))
	binary.LittleEndian.PutUint32(key[8:12], uint32(chunkPos.Z))
	return m.shards[xxhash.Sum64(key[:])%mapShardCount]
}

// NewChunk creates an empty chunk, replacing any chunk already at that position.
func (m *Map) NewChunk(chunkPos Int3) *Chunk {
	chunk := NewChunk(chunkPos)
	m.SetChunk(chunkPos, chunk)
	return chunk
}

func (m *Map) SetChunk(chunkPos Int3, c *Chunk) {
	shard := m.shardFor(chunkPos)
	shard.mu.Lock()
	shard.chunks[chunkPos] = c
	shard.mu.Unlock()
}

func (m *Map) RemoveChunk(chunkPos Int3) bool {
	shard := m.shardFor(chunkPos)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	_, ok := shard.chunks[chunkPos]
	delete(shard.chunks, chunkPos)
	return ok
}

func (m *Map) GetChunk(chunkPos Int3) *Chunk {
	shard := m.shardFor(chunkPos)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	return shard.chunks[chunkPos]
}

func (m *Map) LookupChunk(chunkPos Int3) (ChunkReader, bool) {
	chunk := m.GetChunk(chunkPos)
	if chunk == nil {
		return nil, false
	}
	return chunk, true
}

func (m *Map) ChunkExists(chunkPos Int3) bool {
	return m.GetChunk(chunkPos) != nil
}

func (m *Map) GetChunkFromBlock(pos Int3) *Chunk {
	chunkPos, _ := pos.ToOffsets()
	return m.GetChunk(chunkPos)
}

// ChunkPositions returns all loaded chunk positions sorted by x, then y, then z.
func (m *Map) ChunkPositions() []Int3 {
	var positions []Int3
	for _, shard := range m.shards {
		shard.mu.RLock()
		for pos := range shard.chunks {
			positions = append(positions, pos)
		}
		shard.mu.RUnlock()
	}
	sort.Slice(positions, func(i, j int) bool {
		a, b := positions[i], positions[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	return positions
}

func (m *Map) ChunkCount() int {
	count := 0
	for _, shard := range m.shards {
		shard.mu.RLock()
		count += len(shard.chunks)
		shard.mu.RUnlock()
	}
	return count
}

// SetBlock writes into an existing chunk. It reports false when the chunk is not loaded.
func (m *Map) SetBlock(pos Int3, block Block) bool {
	chunkPos, local := pos.ToOffsets()
	chunk := m.GetChunk(chunkPos)
	if chunk == nil {
		return false
	}
	return chunk.SetBlock(local, block)
}

// SetBlockCreate writes the block, creating its chunk on demand.
func (m *Map) SetBlockCreate(pos Int3, block Block) {
	chunkPos, local := pos.ToOffsets()
	shard := m.shardFor(chunkPos)
	shard.mu.Lock()
	chunk, ok := shard.chunks[chunkPos]
	if !ok {
		chunk = NewChunk(chunkPos)
		shard.chunks[chunkPos] = chunk
	}
	shard.mu.Unlock()
	chunk.SetBlock(local, block)
}

func (m *Map) GetGlobalBlock(pos Int3) (Block, bool) {
	chunkPos, local := pos.ToOffsets()
	chunk := m.GetChunk(chunkPos)
	if chunk == nil {
		return NewAirBlock(), false
	}
	return chunk.GetLocalBlock(local), true
}

func (m *Map) IsSolidBlockAt(pos Int3, table *BlockTable) bool {
	block, ok := m.GetGlobalBlock(pos)
	return ok && !block.IsEmpty(table)
}

// SetFloorAtHeight fills the y layer of every loaded chunk that contains it.
func (m *Map) SetFloorAtHeight(yLevel int32, block Block) {
	chunkY, localY := floorDiv(yLevel, CHUNK_SIZE), floorMod(yLevel, CHUNK_SIZE)
	for _, chunkPos := range m.ChunkPositions() {
		if chunkPos.Y != chunkY {
			continue
		}
		chunk := m.GetChunk(chunkPos)
		for x := int32(0); x < CHUNK_SIZE; x++ {
			for z := int32(0); z < CHUNK_SIZE; z++ {
				chunk.SetBlock(Int3{x, localY, z}, block)
			}
		}
	}
}

// GetGroundPosition walks down from startBlock and returns the first free
// position resting on a solid block, or startBlock if there is none above minY.
func (m *Map) GetGroundPosition(startBlock Int3, minY int32, table *BlockTable) Int3 {
	for y := startBlock.Y; y > minY; y-- {
		if m.IsSolidBlockAt(Int3{startBlock.X, y - 1, startBlock.Z}, table) {
			return Int3{startBlock.X, y, startBlock.Z}
		}
	}
	return startBlock
}
