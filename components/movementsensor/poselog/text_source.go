package poselog

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// textColumns are the columns of a text position log, in order. The two satellite counts may be
// omitted.
var textColumns = []string{"time", "roll", "pitch", "yaw", "x", "y", "z", "sv1", "sv2"}

// ReadTextFile reads a position log from the text file at path.
func ReadTextFile(path string) (*PositionLog, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	log, err := ReadText(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return log, nil
}

// ReadText reads one pose per line as "time roll pitch yaw x y z [sv1 sv2]", separated by
// whitespace or commas. Blank lines and everything after a '#' are ignored.
func ReadText(r io.Reader) (*PositionLog, error) {
	var records []PoseRecord
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if len(fields) == 0 {
			continue
		}
		rec, err := parseTextRecord(fields)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNum)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return NewPositionLog(records), nil
}

func parseTextRecord(fields []string) (PoseRecord, error) {
	if len(fields) != 7 && len(fields) != 9 {
		return PoseRecord{}, errors.Errorf("expected 7 or 9 columns, got %d", len(fields))
	}
	var rec PoseRecord
	t, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return PoseRecord{}, errors.Wrapf(err, "column %q", textColumns[0])
	}
	rec.Time = t

	floats := []*float64{&rec.Roll, &rec.Pitch, &rec.Yaw, &rec.X, &rec.Y, &rec.Z}
	for i, dst := range floats {
		v, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return PoseRecord{}, errors.Wrapf(err, "column %q", textColumns[i+1])
		}
		*dst = v
	}
	if len(fields) == 9 {
		for i := 0; i < 2; i++ {
			v, err := strconv.Atoi(fields[7+i])
			if err != nil {
				return PoseRecord{}, errors.Wrapf(err, "column %q", textColumns[7+i])
			}
			rec.Satellites[i] = v
		}
	}
	return rec, nil
}

// WriteText writes records in the format ReadText reads.
func WriteText(w io.Writer, records []PoseRecord) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("# " + strings.Join(textColumns, " ") + "\n"); err != nil {
		return err
	}
	for _, r := range records {
		values := []string{strconv.FormatInt(r.Time, 10)}
		for _, v := range []float64{r.Roll, r.Pitch, r.Yaw, r.X, r.Y, r.Z} {
			values = append(values, strconv.FormatFloat(v, 'g', -1, 64))
		}
		values = append(values, strconv.Itoa(r.Satellites[0]), strconv.Itoa(r.Satellites[1]))
		if _, err := bw.WriteString(strings.Join(values, " ") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
