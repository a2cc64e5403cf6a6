package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// BlockList stores a block sequence as JSON, while tolerating legacy rows
// that hold a single plain-text body.
type BlockList []Block

func (l BlockList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]Block(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *BlockList) Scan(value interface{}) error {
	if l == nil {
		return fmt.Errorf("models.BlockList: Scan on nil pointer")
	}
	if value == nil {
		*l = BlockList{}
		return nil
	}

	var raw string
	switch v := value.(type) {
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("models.BlockList: unsupported Scan type %T", value)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		*l = BlockList{}
		return nil
	}

	var blocks []Block
	if err := json.Unmarshal([]byte(raw), &blocks); err == nil {
		*l = blocks
		return nil
	}

	// legacy drafts kept the whole body as one markdown string
	*l = BlockList{{Type: BlockText, Data: raw}}
	return nil
}
