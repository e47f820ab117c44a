package voxel

import (
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const DefaultNamespace = "minecraft"

var ErrDuplicateBlock = errors.New("block already registered")

type Block struct {
	ID uint16
}

func NewAirBlock() Block {
	return Block{ID: EMPTY}
}

func (b Block) IsAir() bool {
	return b.ID == EMPTY
}

// IsEmpty reports whether the block lets bodies pass. Ids the table does
// not know are treated as empty.
func (b Block) IsEmpty(table *BlockTable) bool {
	if b.IsAir() || table == nil {
		return true
	}
	desc, ok := table.Descriptor(b.ID)
	return !ok || !desc.Solid
}

type BlockDescriptor struct {
	Namespace string `yaml:"namespace"`
	Name      string `yaml:"name"`
	Solid     bool   `yaml:"solid"`
}

func (d BlockDescriptor) FullName() string {
	namespace := d.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return namespace + ":" + d.Name
}

// BlockTable assigns ids to block descriptors. Id 0 is always air.
// Lookups may run concurrently with Register.
type BlockTable struct {
	mu      sync.RWMutex
	byID    []BlockDescriptor
	byName  map[string]uint16
	unknown map[string]bool
}

func NewBlockTable() *BlockTable {
	t := &BlockTable{
		byName:  make(map[string]uint16),
		unknown: make(map[string]bool),
	}
	air := BlockDescriptor{Namespace: DefaultNamespace, Name: "air"}
	t.byID = append(t.byID, air)
	t.byName[air.FullName()] = EMPTY
	return t
}

// NewDefaultBlockTable knows a handful of common terrain blocks.
func NewDefaultBlockTable() *BlockTable {
	t := NewBlockTable()
	for _, d := range []BlockDescriptor{
		{Name: "stone", Solid: true},
		{Name: "dirt", Solid: true},
		{Name: "grass_block", Solid: true},
		{Name: "oak_planks", Solid: true},
		{Name: "glass", Solid: true},
		{Name: "water"},
		{Name: "tall_grass"},
	} {
		if _, err := t.Register(d); err != nil {
			panic(err)
		}
	}
	return t
}

func (t *BlockTable) Register(desc BlockDescriptor) (Block, error) {
	if desc.Name == "" {
		return Block{}, errors.New("block descriptor without name")
	}
	if desc.Namespace == "" {
		desc.Namespace = DefaultNamespace
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	name := desc.FullName()
	if _, exists := t.byName[name]; exists {
		return Block{}, errors.Wrap(ErrDuplicateBlock, name)
	}
	if len(t.byID) > int(^uint16(0)) {
		return Block{}, errors.Errorf("block table full, cannot register %s", name)
	}
	id := uint16(len(t.byID))
	t.byID = append(t.byID, desc)
	t.byName[name] = id
	return Block{ID: id}, nil
}

func (t *BlockTable) Descriptor(id uint16) (BlockDescriptor, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) >= len(t.byID) {
		return BlockDescriptor{}, false
	}
	return t.byID[id], true
}

// GetBlockByName accepts "namespace:name" or a bare name in the default
// namespace. Unknown names are remembered, see
// UnknownBlockNames, and resolve to air.
func (t *BlockTable) GetBlockByName(name string) (Block, bool) {
	if !strings.Contains(name, ":") {
		name = DefaultNamespace + ":" + name
	}
	t.mu.RLock()
	id, ok := t.byName[name]
	t.mu.RUnlock()
	if !ok {
		t.mu.Lock()
		t.unknown[name] = true
		t.mu.Unlock()
		return NewAirBlock(), false
	}
	return Block{ID: id}, true
}

// UnknownBlockNames lists the names GetBlockByName could not resolve, sorted.
func (t *BlockTable) UnknownBlockNames() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.unknown))
	for name := range t.unknown {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *BlockTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

type blockTableFile struct {
	Blocks []BlockDescriptor `yaml:"blocks"`
}

// LoadBlockTable reads a YAML document of the form
//
//	blocks:
//	  - {namespace: minecraft, name: stone, solid: true}
func LoadBlockTable(r io.Reader) (*BlockTable, error) {
	var file blockTableFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, errors.Wrap(err, "decode block table")
	}
	t := NewBlockTable()
	for i, desc := range file.Blocks {
		if _, err := t.Register(desc); err != nil {
			return nil, errors.Wrapf(err, "block #%d", i)
		}
	}
	return t, nil
}
