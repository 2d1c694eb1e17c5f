package forcing

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("forcing: unrecognised time %q", s)
}

// ReadCSV reads a two-column time,value table. A header row is skipped when
// its first field is not a time; empty values are read as missing.
func ReadCSV(r io.Reader, name string, kind Kind) (*Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "forcing: read %s", name)
	}
	var ts []time.Time
	var vs []float64
	for i, rec := range recs {
		if len(rec) < 2 {
			return nil, eris.Errorf("forcing: %s line %d: want 2 fields, got %d", name, i+1, len(rec))
		}
		t, err := parseTime(strings.TrimSpace(rec[0]))
		if err != nil {
			if i == 0 {
				continue
			}
			return nil, eris.Wrapf(err, "forcing: %s line %d", name, i+1)
		}
		v := math.NaN()
		if f := strings.TrimSpace(rec[1]); f != "" {
			if v, err = strconv.ParseFloat(f, 64); err != nil {
				return nil, eris.Wrapf(err, "forcing: %s line %d", name, i+1)
			}
		}
		ts = append(ts, t)
		vs = append(vs, v)
	}
	return New(name, kind, ts, vs)
}

// LoadCSV opens fp and reads it with ReadCSV.
func LoadCSV(fp, name string, kind Kind) (*Series, error) {
	f, err := os.Open(fp)
	if err != nil {
		return nil, eris.Wrapf(err, "forcing: open %s", fp)
	}
	defer f.Close()
	return ReadCSV(f, name, kind)
}

// WriteCSV writes s as a time,value table with a header row.
func (s *Series) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", s.Name}); err != nil {
		return eris.Wrap(err, "forcing: write header")
	}
	for i, t := range s.T {
		v := ""
		if !math.IsNaN(s.V[i]) {
			v = strconv.FormatFloat(s.V[i], 'g', -1, 64)
		}
		if err := cw.Write([]string{t.Format(time.RFC3339), v}); err != nil {
			return eris.Wrap(err, "forcing: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "forcing: flush")
}

// WriteTableCSV writes series sharing one time index as columns of a single
// table, the first series' times in the first column.
func WriteTableCSV(w io.Writer, ss ...*Series) error {
	if len(ss) == 0 {
		return nil
	}
	head := []string{"time"}
	for _, s := range ss {
		if s.Len() != ss[0].Len() {
			return eris.Wrapf(ErrLength, "forcing: table column %s (%d rows, want %d)", s.Name, s.Len(), ss[0].Len())
		}
		head = append(head, s.Name)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(head); err != nil {
		return eris.Wrap(err, "forcing: write header")
	}
	row := make([]string, len(ss)+1)
	for i, t := range ss[0].T {
		row[0] = t.Format(time.RFC3339)
		for j, s := range ss {
			row[j+1] = ""
			if !math.IsNaN(s.V[i]) {
				row[j+1] = strconv.FormatFloat(s.V[i], 'g', -1, 64)
			}
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "forcing: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "forcing: flush")
}
