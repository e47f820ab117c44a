package voxel

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"sort"

	"github.com/Tnze/go-mc/nbt"
	"github.com/pkg/errors"
)

/*
	TAG_Compound({
	    "block_entities": TAG_List([
	        TAG_Compound({
	            "namespace": TAG_String(),
	            "base_name": TAG_String(),
	            "x": TAG_Int(),
	            "y": TAG_Int(),
	            "z": TAG_Int(),
	            "nbt": TAG_Compound()
	        })
	        ...
	    ]),
	    "blocks_array_type": TAG_Byte(),
	    "blocks": <palette indices>
	})
*/

const (
	constructionMagic = "constrct"
	blocksArrayByte   = 7
	blocksArrayInt    = 11
)

var ErrBadConstruction = errors.New("malformed construction file")

type SectionBlockInfo struct {
	BlocksArrayType byte `nbt:"blocks_array_type"`
}
type ByteSection struct {
	BlockEntities []BlockEntity `nbt:"block_entities"`
	Blocks        []byte        `nbt:"blocks"`
}
type IntSection struct {
	BlockEntities []BlockEntity `nbt:"block_entities"`
	Blocks        []int32       `nbt:"blocks"`
}

type BlockEntity struct {
	Namespace string `nbt:"namespace"`
	Name      string `nbt:"base_name"`
	X         int32  `nbt:"x"`
	Y         int32  `nbt:"y"`
	Z         int32  `nbt:"z"`
}

type AmuletMetadata struct {
	SelectionBoxes    []int32 `nbt:"selection_boxes"`
	SectionIndexTable []byte  `nbt:"section_index_table"`
	SectionVersion    byte    `nbt:"section_version"`
	ExportVersion     struct {
		Edition string  `nbt:"edition"`
		Version []int32 `nbt:"version"`
	} `nbt:"export_version"`
	BlockPalette []*BlockDefinition `nbt:"block_palette"`
	CreatedWith  string             `nbt:"created_with"`
}
type BlockDefinition struct {
	Name       string         `nbt:"blockname"`
	NameSpace  string         `nbt:"namespace"`
	Properties map[string]any `nbt:"properties"`
}

func (d *BlockDefinition) FullName() string {
	namespace := d.NameSpace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return namespace + ":" + d.Name
}

type Construction struct {
	Sections []*ConstructionSection
}

type ConstructionSection struct {
	Blocks        []*BlockDefinition
	ShapeX        uint8
	ShapeY        uint8
	ShapeZ        uint8
	MinBlockX     int32
	MinBlockY     int32
	MinBlockZ     int32
	BlockEntities []BlockEntity
}

func LoadConstruction(filename string) (*Construction, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "open construction")
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "stat construction")
	}
	construction, err := ReadConstruction(file, info.Size())
	if err != nil {
		return nil, errors.Wrap(err, filename)
	}
	return construction, nil
}

// ReadConstruction parses an Amulet .construction file: the magic number,
// gzipped NBT sections, gzipped NBT metadata, the big endian offset of the
// metadata and the magic number again.
func ReadConstruction(r io.ReaderAt, size int64) (*Construction, error) {
	footerSize := int64(len(constructionMagic) + 4)
	if size < int64(len(constructionMagic))+footerSize {
		return nil, errors.Wrap(ErrBadConstruction, "file too short")
	}
	head := make([]byte, len(constructionMagic))
	if _, err := r.ReadAt(head, 0); err != nil {
		return nil, errors.Wrap(err, "read magic number")
	}
	if string(head) != constructionMagic {
		return nil, errors.Wrap(ErrBadConstruction, "invalid magic number")
	}
	footer := make([]byte, footerSize)
	if _, err := r.ReadAt(footer, size-footerSize); err != nil {
		return nil, errors.Wrap(err, "read footer")
	}
	if string(footer[4:]) != constructionMagic {
		return nil, errors.Wrap(ErrBadConstruction, "invalid trailing magic number")
	}
	metaDataOffset := int64(int32(binary.BigEndian.Uint32(footer[:4])))
	if metaDataOffset < int64(len(constructionMagic)) || metaDataOffset >= size-footerSize {
		return nil, errors.Wrapf(ErrBadConstruction, "metadata offset %d out of range", metaDataOffset)
	}

	var metadata AmuletMetadata
	if err := decodeGzipNBT(io.NewSectionReader(r, metaDataOffset, size-footerSize-metaDataOffset), &metadata); err != nil {
		return nil, errors.Wrap(err, "metadata")
	}

	sectionTable := decodeSectionTable(metadata.SectionIndexTable)
	sections := make([]*ConstructionSection, len(sectionTable))
	for sIndex, section := range sectionTable {
		raw, err := gunzip(io.NewSectionReader(r, int64(section.Offset), int64(section.Size)))
		if err != nil {
			return nil, errors.Wrapf(err, "section %d", sIndex)
		}
		var sectionBlockType SectionBlockInfo
		if _, err = nbt.NewDecoder(bytes.NewReader(raw)).Decode(&sectionBlockType); err != nil {
			return nil, errors.Wrapf(err, "section %d header", sIndex)
		}
		var blockEntities []BlockEntity
		var blocks []*BlockDefinition
		switch sectionBlockType.BlocksArrayType {
		case blocksArrayByte:
			var decodedSection ByteSection
			if _, err = nbt.NewDecoder(bytes.NewReader(raw)).Decode(&decodedSection); err != nil {
				return nil, errors.Wrapf(err, "section %d", sIndex)
			}
			blockEntities = decodedSection.BlockEntities
			blocks, err = decodeBlocks(decodedSection.Blocks, metadata.BlockPalette)
		case blocksArrayInt:
			var decodedSection IntSection
			if _, err = nbt.NewDecoder(bytes.NewReader(raw)).Decode(&decodedSection); err != nil {
				return nil, errors.Wrapf(err, "section %d", sIndex)
			}
			blockEntities = decodedSection.BlockEntities
			blocks, err = decodeBlocks(decodedSection.Blocks, metadata.BlockPalette)
		default:
			return nil, errors.Wrapf(ErrBadConstruction, "section %d: unsupported blocks array type %d", sIndex, sectionBlockType.BlocksArrayType)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "section %d", sIndex)
		}
		shapeVolume := int(section.ShapeX) * int(section.ShapeY) * int(section.ShapeZ)
		if len(blocks) != shapeVolume {
			return nil, errors.Wrapf(ErrBadConstruction, "section %d: %d blocks for shape %dx%dx%d", sIndex, len(blocks), section.ShapeX, section.ShapeY, section.ShapeZ)
		}
		sections[sIndex] = &ConstructionSection{
			Blocks:        blocks,
			BlockEntities: blockEntities,
			ShapeX:        section.ShapeX,
			ShapeY:        section.ShapeY,
			ShapeZ:        section.ShapeZ,
			MinBlockX:     section.MinBlockX,
			MinBlockY:     section.MinBlockY,
			MinBlockZ:     section.MinBlockZ,
		}
	}

	return &Construction{Sections: sections}, nil
}

func gunzip(r io.Reader) ([]byte, error) {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer gzipReader.Close()
	return io.ReadAll(gzipReader)
}

func decodeGzipNBT(r io.Reader, v any) error {
	raw, err := gunzip(r)
	if err != nil {
		return err
	}
	_, err = nbt.NewDecoder(bytes.NewReader(raw)).Decode(v)
	return err
}

func decodeBlocks[T int32 | byte](blocks []T, palette []*BlockDefinition) ([]*BlockDefinition, error) {
	result := make([]*BlockDefinition, len(blocks))
	for i, block := range blocks {
		if int(block) < 0 || int(block) >= len(palette) {
			return nil, errors.Wrapf(ErrBadConstruction, "palette index %d out of range", block)
		}
		result[i] = palette[block]
	}
	return result, nil
}

/*
The section_index_table is an Mx23 TAG_Byte_Array where M is the number of section data entries present in the construction file.

The real format of the section_index_table is IIIBBBII where I is a uint32 and B is a uint8.

III: The X, Y, and Z block coordinates of the minimum point of the section
BBB: The shape of the section in blocks in X, Y, Z order
I: The starting byte of the section data entry in the file
I: The byte length of the section data entry
*/

const sectionIndexSize = 23

type SectionIndex struct {
	MinBlockX int32
	MinBlockY int32
	MinBlockZ int32
	ShapeX    uint8
	ShapeY    uint8
	ShapeZ    uint8
	Offset    uint32
	Size      uint32
}

func decodeSectionTable(table []byte) []SectionIndex {
	sectionCount := len(table) / sectionIndexSize
	sections := make([]SectionIndex, sectionCount)
	for i := 0; i < sectionCount; i++ {
		entry := table[i*sectionIndexSize : (i+1)*sectionIndexSize]
		sections[i].MinBlockX = int32(binary.LittleEndian.Uint32(entry[0:4]))
		sections[i].MinBlockY = int32(binary.LittleEndian.Uint32(entry[4:8]))
		sections[i].MinBlockZ = int32(binary.LittleEndian.Uint32(entry[8:12]))
		sections[i].ShapeX = entry[12]
		sections[i].ShapeY = entry[13]
		sections[i].ShapeZ = entry[14]
		sections[i].Offset = binary.LittleEndian.Uint32(entry[15:19])
		sections[i].Size = binary.LittleEndian.Uint32(entry[19:23])
	}
	return sections
}

func encodeSectionTable(sections []SectionIndex) []byte {
	table := make([]byte, len(sections)*sectionIndexSize)
	for i, section := range sections {
		entry := table[i*sectionIndexSize : (i+1)*sectionIndexSize]
		binary.LittleEndian.PutUint32(entry[0:4], uint32(section.MinBlockX))
		binary.LittleEndian.PutUint32(entry[4:8], uint32(section.MinBlockY))
		binary.LittleEndian.PutUint32(entry[8:12], uint32(section.MinBlockZ))
		entry[12] = section.ShapeX
		entry[13] = section.ShapeY
		entry[14] = section.ShapeZ
		binary.LittleEndian.PutUint32(entry[15:19], section.Offset)
		binary.LittleEndian.PutUint32(entry[19:23], section.Size)
	}
	return table
}

type byteSectionOut struct {
	BlocksArrayType byte          `nbt:"blocks_array_type"`
	BlockEntities   []BlockEntity `nbt:"block_entities"`
	Blocks          []byte        `nbt:"blocks"`
}

type intSectionOut struct {
	BlocksArrayType byte          `nbt:"blocks_array_type"`
	BlockEntities   []BlockEntity `nbt:"block_entities"`
	Blocks          []int32       `nbt:"blocks"`
}

type paletteEntryOut struct {
	Name      string `nbt:"blockname"`
	NameSpace string `nbt:"namespace"`
}

type metadataOut struct {
	SectionIndexTable []byte            `nbt:"section_index_table"`
	SectionVersion    byte              `nbt:"section_version"`
	BlockPalette      []paletteEntryOut `nbt:"block_palette"`
	CreatedWith       string            `nbt:"created_with"`
}

// WriteConstruction encodes the construction in the layout ReadConstruction
// expects. Nil block definitions are written as air.
func WriteConstruction(w io.Writer, construction *Construction) error {
	var out bytes.Buffer
	out.WriteString(constructionMagic)

	air := &BlockDefinition{Name: "air", NameSpace: DefaultNamespace}
	var palette []paletteEntryOut
	paletteIndex := make(map[string]int32)
	indexOf := func(def *BlockDefinition) int32 {
		if def == nil {
			def = air
		}
		name := def.FullName()
		if index, ok := paletteIndex[name]; ok {
			return index
		}
		index := int32(len(palette))
		palette = append(palette, paletteEntryOut{Name: def.Name, NameSpace: def.NameSpace})
		paletteIndex[name] = index
		return index
	}

	sectionTable := make([]SectionIndex, len(construction.Sections))
	for sIndex, section := range construction.Sections {
		indices := make([]int32, len(section.Blocks))
		for i, def := range section.Blocks {
			indices[i] = indexOf(def)
		}
		var encoded []byte
		var err error
		if len(palette) <= 256 {
			blocks := make([]byte, len(indices))
			for i, index := range indices {
				blocks[i] = byte(index)
			}
			encoded, err = nbt.Marshal(byteSectionOut{BlocksArrayType: blocksArrayByte, BlockEntities: section.BlockEntities, Blocks: blocks})
		} else {
			encoded, err = nbt.Marshal(intSectionOut{BlocksArrayType: blocksArrayInt, BlockEntities: section.BlockEntities, Blocks: indices})
		}
		if err != nil {
			return errors.Wrapf(err, "encode section %d", sIndex)
		}
		offset := out.Len()
		if err = writeGzip(&out, encoded); err != nil {
			return errors.Wrapf(err, "compress section %d", sIndex)
		}
		sectionTable[sIndex] = SectionIndex{
			MinBlockX: section.MinBlockX,
			MinBlockY: section.MinBlockY,
			MinBlockZ: section.MinBlockZ,
			ShapeX:    section.ShapeX,
			ShapeY:    section.ShapeY,
			ShapeZ:    section.ShapeZ,
			Offset:    uint32(offset),
			Size:      uint32(out.Len() - offset),
		}
	}

	metadata, err := nbt.Marshal(metadataOut{
		SectionIndexTable: encodeSectionTable(sectionTable),
		SectionVersion:    1,
		BlockPalette:      palette,
		CreatedWith:       "voxelsweep",
	})
	if err != nil {
		return errors.Wrap(err, "encode metadata")
	}
	metaDataOffset := out.Len()
	if err = writeGzip(&out, metadata); err != nil {
		return errors.Wrap(err, "compress metadata")
	}
	var offsetBytes [4]byte
	binary.BigEndian.PutUint32(offsetBytes[:], uint32(metaDataOffset))
	out.Write(offsetBytes[:])
	out.WriteString(constructionMagic)

	_, err = w.Write(out.Bytes())
	return errors.Wrap(err, "write construction")
}

func writeGzip(out *bytes.Buffer, data []byte) error {
	gzipWriter := gzip.NewWriter(out)
	if _, err := gzipWriter.Write(data); err != nil {
		return err
	}
	return gzipWriter.Close()
}

// NewMapFromConstruction places every section of the construction into a
// fresh map at its original coordinates. Names missing from the table are
// placed as air and returned.
func NewMapFromConstruction(table *BlockTable, construction *Construction) (*Map, []string) {
	voxelMap := NewMap()
	unknown := make(map[string]bool)
	resolve := func(name string) Block {
		block, ok := table.GetBlockByName(name)
		if !ok {
			unknown[name] = true
		}
		return block
	}
	for _, section := range construction.Sections {
		blockIndex := 0
		for x := section.MinBlockX; x < section.MinBlockX+int32(section.ShapeX); x++ {
			for y := section.MinBlockY; y < section.MinBlockY+int32(section.ShapeY); y++ {
				for z := section.MinBlockZ; z < section.MinBlockZ+int32(section.ShapeZ); z++ {
					block := NewAirBlock()
					if def := section.Blocks[blockIndex]; def != nil {
						block = resolve(def.FullName())
					}
					voxelMap.SetBlockCreate(Int3{x, y, z}, block)
					blockIndex++
				}
			}
		}

		for _, blockEntityDef := range section.BlockEntities {
			def := BlockDefinition{Name: blockEntityDef.Name, NameSpace: blockEntityDef.Namespace}
			voxelMap.SetBlockCreate(Int3{blockEntityDef.X, blockEntityDef.Y, blockEntityDef.Z}, resolve(def.FullName()))
		}
	}

	unknownNames := make([]string, 0, len(unknown))
	for name := range unknown {
		unknownNames = append(unknownNames, name)
	}
	sort.Strings(unknownNames)
	return voxelMap, unknownNames
}
