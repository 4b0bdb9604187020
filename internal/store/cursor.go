package store

import (
	"encoding/base64"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// A cursor is the base64-encoded (id, groupUrlName, dateTime) triple of the
// last item of a page: the full key set of the group/date index. Opaque to
// callers.

func encodeCursor(lastKey map[string]types.AttributeValue) (string, error) {
	id, err := stringAttribute(lastKey, "id")
	if err != nil {
		return "", err
	}
	group, err := stringAttribute(lastKey, "groupUrlName")
	if err != nil {
		return "", err
	}
	dateTime, err := stringAttribute(lastKey, "dateTime")
	if err != nil {
		return "", err
	}

	parts := []string{
		base64.URLEncoding.EncodeToString([]byte(id)),
		base64.URLEncoding.EncodeToString([]byte(group)),
		base64.URLEncoding.EncodeToString([]byte(dateTime)),
	}
	return strings.Join(parts, "."), nil
}

func decodeCursor(cursor string) (map[string]types.AttributeValue, error) {
	parts := strings.Split(cursor, ".")
	if len(parts) != 3 {
		return nil, ErrInvalidCursor
	}

	decoded := make([]string, len(parts))
	for i, part := range parts {
		raw, err := base64.URLEncoding.DecodeString(part)
		if err != nil {
			return nil, ErrInvalidCursor
		}
		decoded[i] = string(raw)
	}

	return map[string]types.AttributeValue{
		"id":           &types.AttributeValueMemberS{Value: decoded[0]},
		"groupUrlName": &types.AttributeValueMemberS{Value: decoded[1]},
		"dateTime":     &types.AttributeValueMemberS{Value: decoded[2]},
	}, nil
}

func stringAttribute(item map[string]types.AttributeValue, name string) (string, error) {
	attr, ok := item[name].(*types.AttributeValueMemberS)
	if !ok {
		return "", ErrInvalidCursor
	}
	return attr.Value, nil
}
