package service

import (
	"encoding/json"

	invoicedomain "github.com/smallbiznis/payequity/internal/invoice/domain"
	"gorm.io/datatypes"
)

func marshalSnapshot(snapshot invoicedomain.SplitSnapshot) (datatypes.JSON, error) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// DecodeSnapshot reads the snapshot stored on a settled or accepted invoice.
func DecodeSnapshot(raw datatypes.JSON) (*invoicedomain.SplitSnapshot, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var snapshot invoicedomain.SplitSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

