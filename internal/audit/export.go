package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"time"
)

var csvHeader = []string{"occurred_at", "actor_id", "action", "target_kind", "target_id", "diff"}

// WriteCSV renders entries as CSV with a header row.
func WriteCSV(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, e := range entries {
		diff := ""
		if len(e.Diff) > 0 {
			raw, err := json.Marshal(e.Diff)
			if err != nil {
				return nil, err
			}
			diff = string(raw)
		}
		record := []string{e.OccurredAt.UTC().Format(time.RFC3339), e.ActorID, e.Action, e.TargetKind, e.TargetID, diff}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
