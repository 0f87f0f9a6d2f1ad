package settings

import (
	"encoding/csv"
	"strings"
)

// ParsePairs reads a "value,label,value,label" CSV line into choices. Quoted
// cells may contain commas. A trailing unpaired cell is dropped.
func ParsePairs(line string) []Choice {
	reader := csv.NewReader(strings.NewReader(line))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true
	cells, err := reader.Read()
	if err != nil || len(cells) < 2 {
		return nil
	}
	choices := make([]Choice, 0, len(cells)/2)
	for i := 0; i+1 < len(cells); i += 2 {
		choices = append(choices, Choice{Value: cells[i], Label: cells[i+1]})
	}
	return choices
}
