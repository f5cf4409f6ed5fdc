package domain

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ID is the 12 byte identifier shared by every stored entity.
type ID = primitive.ObjectID

var NilID = primitive.NilObjectID

func NewID() ID {
	return primitive.NewObjectID()
}

// ParseID normalizes an id given either as ID or as its hex form.
func ParseID(v any) (ID, error) {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id, nil
	case string:
		parsed, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return NilID, ErrWrongType
		}
		return parsed, nil
	default:
		return NilID, ErrWrongType
	}
}

// MustParseID is meant for constants and tests.
func MustParseID(hex string) ID {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		panic(err)
	}
	return id
}
