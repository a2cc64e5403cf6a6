// Package editor owns the ordered block sequence of one document and the
// mutations on it. The sequence functions in this file are pure: they never
// mutate their input and report whether anything changed.
package editor

import "github.com/mx-space/blockdraft/internal/models"

// Field selects which block field UpdateBlock replaces.
type Field string

const (
	FieldData Field = "data"
	FieldName Field = "name"
)

// Valid reports whether f is a known field.
func (f Field) Valid() bool { return f == FieldData || f == FieldName }

// Insert places block at index, 0 <= index <= len(blocks).
func Insert(blocks []models.Block, index int, block models.Block) ([]models.Block, bool) {
	if index < 0 || index > len(blocks) {
		return blocks, false
	}
	out := make([]models.Block, 0, len(blocks)+1)
	out = append(out, blocks[:index]...)
	out = append(out, block)
	out = append(out, blocks[index:]...)
	return out, true
}

// Update replaces the data or name of the block at index.
func Update(blocks []models.Block, index int, value string, field Field) ([]models.Block, bool) {
	if !inRange(blocks, index) || !field.Valid() {
		return blocks, false
	}
	out := models.CloneBlocks(blocks)
	switch field {
	case FieldData:
		out[index].Data = value
	case FieldName:
		out[index].Name = value
	}
	return out, true
}

// Replace swaps the whole block at index.
func Replace(blocks []models.Block, index int, block models.Block) ([]models.Block, bool) {
	if !inRange(blocks, index) {
		return blocks, false
	}
	out := models.CloneBlocks(blocks)
	out[index] = block
	return out, true
}

// Retype replaces the block at index with fresh, keeping only the old name.
func Retype(blocks []models.Block, index int, fresh models.Block) ([]models.Block, bool) {
	if !inRange(blocks, index) {
		return blocks, false
	}
	fresh.Name = blocks[index].Name
	return Replace(blocks, index, fresh)
}

// Remove deletes the block at index. Out of range is a no-op.
func Remove(blocks []models.Block, index int) ([]models.Block, bool) {
	if !inRange(blocks, index) {
		return blocks, false
	}
	out := make([]models.Block, 0, len(blocks)-1)
	out = append(out, blocks[:index]...)
	out = append(out, blocks[index+1:]...)
	return out, true
}

// Move reorders by drag and drop: to is an insertion point in the original
// sequence, 0 <= to <= len(blocks). Dropping a block right before or right
// after itself is a no-op.
func Move(blocks []models.Block, from, to int) ([]models.Block, bool) {
	if !inRange(blocks, from) || to < 0 || to > len(blocks) {
		return blocks, false
	}
	if to == from || to == from+1 {
		return blocks, false
	}
	moved := blocks[from]
	out, _ := Remove(blocks, from)
	if from < to {
		to--
	}
	return Insert(out, to, moved)
}

// InverseMove returns the insertion point that undoes Move(blocks, from, to).
func InverseMove(from, to int) (int, int) {
	if from < to {
		// the block now sits at to-1 and returns to before its old successor
		return to - 1, from
	}
	return to, from + 1
}

func inRange(blocks []models.Block, index int) bool {
	return index >= 0 && index < len(blocks)
}
