package reporting

import (
	"encoding/json"
	"io"

	"github.com/ducminhle1904/crypto-decision-engine/pkg/types"
)

// WriteRecords writes each decision's output record as one JSON line
func WriteRecords(w io.Writer, decisions []types.TradeDecision) error {
	enc := json.NewEncoder(w)
	for _, d := range decisions {
		if err := enc.Encode(d.Record()); err != nil {
			return err
		}
	}
	return nil
}
