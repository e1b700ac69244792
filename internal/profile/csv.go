package profile

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nonprofit-ranker/internal/model"
)

// CSVOptions configures the CSV reader.
type CSVOptions struct {
	Delimiter rune // default ','
	Comment   rune // comment character (0 = none)
}

// ReadCSV reads profiles from CSV with a header row. Columns are matched
// by name; unknown columns are ignored and blank rows skipped.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([]model.RawProfile, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv: read header")
	}
	mapper, err := newRowMapper(header)
	if err != nil {
		return nil, err
	}

	var out []model.RawProfile
	for line := 2; ; line++ {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "csv: context cancelled")
		}

		record, err := reader.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "csv: read line %d", line)
		}
		if blankRow(record) {
			continue
		}

		p, err := mapper.Map(record, line)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
}
