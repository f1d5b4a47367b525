package keys

import (
	"fmt"
	"strconv"
	"strings"
)

type EntityKeyParts struct {
	Table string
	ID    int64
}

func parsePaddedInt(s string, width int) (int64, error) {
	if len(s) == 0 || len(s) > width {
		return 0, fmt.Errorf("length invalid: %s", s)
	}
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, err
	}
	return v, nil
}

func ParseEntityKey(key string) (*EntityKeyParts, error) {
	if err := ValidateEntityKey(key); err != nil {
		return nil, err
	}
	table, raw, _ := strings.Cut(key, ":")
	id, err := parsePaddedInt(raw, IDPadWidth)
	if err != nil {
		return nil, fmt.Errorf("invalid id in key %q: %w", key, err)
	}
	return &EntityKeyParts{Table: table, ID: id}, nil
}
