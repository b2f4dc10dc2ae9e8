package plan

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// ReadValues loads the single value column of a dataset file. Row position is
// the record id: the first data row is rid 0. Rows whose value does not parse
// as an integer are skipped, matching the tolerant ingestion of the dataset
// generator.
func ReadValues(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read dataset header: %w", err)
	}
	valueCol := -1
	for i, name := range header {
		if name == "value" {
			valueCol = i
			break
		}
	}
	if valueCol < 0 {
		return nil, fmt.Errorf("dataset %s missing column %q", path, "value")
	}

	var values []int
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset row: %w", err)
		}
		if valueCol >= len(row) {
			continue
		}
		v, err := strconv.Atoi(row[valueCol])
		if err != nil {
			continue
		}
		values = append(values, v)
	}
	return values, nil
}
