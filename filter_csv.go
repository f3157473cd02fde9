// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package expurgate

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/pkg/errors"
)

// ReadFilterColumn returns the values of the zero-based column of the CSV data
// in r, in record order. If withHeaders is true, the first record is skipped.
// Records may have different numbers of fields. A record without the requested
// column fails with an [ErrInvalidFilterColumn] error.
func ReadFilterColumn(r io.Reader, column int, withHeaders bool) ([]string, error) {
	if column < 0 {
		return nil, columnError(column, errors.New("column must not be negative"))
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var values []string
	for line := 1; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			return values, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read filter record %d", line)
		}
		if withHeaders && line == 1 {
			continue
		}
		if column >= len(record) {
			return nil, columnError(column, errors.Errorf("record %d has %d fields", line, len(record)))
		}
		values = append(values, record[column])
	}
}

// ReadFilterColumnFile opens the CSV file at path and passes it to [ReadFilterColumn].
func ReadFilterColumnFile(path string, column int, withHeaders bool) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open filter file")
	}
	defer f.Close()
	return ReadFilterColumn(f, column, withHeaders)
}

// LoadFilterCSV builds a [FilterSet] from a column of the CSV data in r, see
// [ReadFilterColumn]. Empty values are ignored.
func LoadFilterCSV(r io.Reader, column int, withHeaders bool) (FilterSet, error) {
	values, err := ReadFilterColumn(r, column, withHeaders)
	if err != nil {
		return nil, err
	}
	return NewFilterSet(values...), nil
}

func columnError(column int, err error) error {
	e := newError(ErrInvalidFilterColumn, StageFilterSetup, err)
	e.Column = column
	return e
}
