package repository

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"

	"github.com/vecollab/backend/internal/domain"
)

func hexes(ids []domain.ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Hex())
	}
	return out
}

// parseHexes drops values that are not valid ids.
func parseHexes(values []string) []domain.ID {
	out := make([]domain.ID, 0, len(values))
	for _, v := range values {
		if id, err := domain.ParseID(v); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func hexOrNil(id *domain.ID) *string {
	if id == nil {
		return nil
	}
	h := id.Hex()
	return &h
}

func idOrNil(hex *string) *domain.ID {
	if hex == nil {
		return nil
	}
	id, err := domain.ParseID(*hex)
	if err != nil {
		return nil
	}
	return &id
}

func toJSON(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal -> %w", err)
	}
	return datatypes.JSON(b), nil
}

func fromJSON[T any](raw datatypes.JSON) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("json.Unmarshal -> %w", err)
	}
	return out, nil
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
