// Package input parses block and demand tables into the records the engine
// consumes. Malformed or missing fields are configuration errors reported with
// their row number; nothing is silently defaulted.
package input

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/curbsim/curbsim/sim"
)

// ErrMalformedTable wraps every parse failure in this package.
var ErrMalformedTable = errors.New("malformed table")

// Block table column names, matched case-insensitively.
const (
	ColBlockID   = "BLOCKFACE_ID"
	ColLongitude = "LONGITUDE"
	ColLatitude  = "LATITUDE"
	ColCapacity  = "SPACE_NUM"
)

// blockRow is one YAML block row. Pointer fields tell an absent key apart
// from an explicit zero.
type blockRow struct {
	ID        string   `yaml:"id"`
	Longitude *float64 `yaml:"longitude"`
	Latitude  *float64 `yaml:"latitude"`
	Capacity  *int     `yaml:"capacity"`
}

// blockFile is the YAML block table layout.
type blockFile struct {
	Blocks []blockRow `yaml:"blocks"`
}

// LoadBlocks reads a block table, choosing the parser from the file extension
// (.csv, .yaml or .yml).
func LoadBlocks(path string) ([]sim.BlockRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening block table: %w", err)
		}
		defer f.Close()
		return ReadBlocksCSV(f)
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading block table: %w", err)
		}
		return ParseBlocksYAML(data)
	default:
		return nil, fmt.Errorf("%w: unsupported block table extension %q", ErrMalformedTable, filepath.Ext(path))
	}
}

// ReadBlocksCSV parses a block table with a header row. Columns are located by
// name; extra columns are ignored.
func ReadBlocksCSV(r io.Reader) ([]sim.BlockRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading block header: %v", ErrMalformedTable, err)
	}
	cols, err := columnIndex(header, ColBlockID, ColLongitude, ColLatitude, ColCapacity)
	if err != nil {
		return nil, err
	}

	var records []sim.BlockRecord
	for row := 1; ; row++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: block row %d: %v", ErrMalformedTable, row, err)
		}

		id := strings.TrimSpace(rec[cols[ColBlockID]])
		if id == "" {
			return nil, fmt.Errorf("%w: block row %d: empty %s", ErrMalformedTable, row, ColBlockID)
		}
		lon, err := parseFloat(rec[cols[ColLongitude]], ColLongitude, row)
		if err != nil {
			return nil, err
		}
		lat, err := parseFloat(rec[cols[ColLatitude]], ColLatitude, row)
		if err != nil {
			return nil, err
		}
		capacity, err := parseCount(rec[cols[ColCapacity]], ColCapacity, row)
		if err != nil {
			return nil, err
		}
		records = append(records, sim.BlockRecord{ID: id, Longitude: lon, Latitude: lat, Capacity: capacity})
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: block table has no rows", ErrMalformedTable)
	}
	logrus.Debugf("parsed %d block records", len(records))
	return records, nil
}

// ParseBlocksYAML parses a YAML block table of the form
//
//	blocks:
//	  - {id: "...", longitude: ..., latitude: ..., capacity: ...}
//
// Unrecognized keys are rejected, and so are rows missing any field.
func ParseBlocksYAML(data []byte) ([]sim.BlockRecord, error) {
	var file blockFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: parsing block yaml: %v", ErrMalformedTable, err)
	}
	if len(file.Blocks) == 0 {
		return nil, fmt.Errorf("%w: block table has no rows", ErrMalformedTable)
	}

	records := make([]sim.BlockRecord, len(file.Blocks))
	for i, b := range file.Blocks {
		row := i + 1
		switch {
		case strings.TrimSpace(b.ID) == "":
			return nil, fmt.Errorf("%w: block row %d: empty id", ErrMalformedTable, row)
		case b.Longitude == nil:
			return nil, missingField(row, "longitude")
		case b.Latitude == nil:
			return nil, missingField(row, "latitude")
		case b.Capacity == nil:
			return nil, missingField(row, "capacity")
		}
		records[i] = sim.BlockRecord{ID: b.ID, Longitude: *b.Longitude, Latitude: *b.Latitude, Capacity: *b.Capacity}
	}
	return records, nil
}

func missingField(row int, field string) error {
	return fmt.Errorf("%w: row %d: missing %s", ErrMalformedTable, row, field)
}

// columnIndex maps each required column name to its position in header.
func columnIndex(header []string, required ...string) (map[string]int, error) {
	found := make(map[string]int, len(header))
	for i, name := range header {
		found[strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	cols := make(map[string]int, len(required))
	var missing []string
	for _, name := range required {
		i, ok := found[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		cols[name] = i
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing column(s) %s", ErrMalformedTable, strings.Join(missing, ", "))
	}
	return cols, nil
}

func parseFloat(field, col string, row int) (float64, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return 0, fmt.Errorf("%w: row %d: empty %s", ErrMalformedTable, row, col)
	}
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: row %d: invalid %s %q", ErrMalformedTable, row, col, field)
	}
	return v, nil
}

// parseCount accepts integers, including integral floats such as "4.0" that
// spreadsheet exports produce.
func parseCount(field, col string, row int) (int, error) {
	v, err := parseFloat(field, col, row)
	if err != nil {
		return 0, err
	}
	if v != float64(int(v)) {
		return 0, fmt.Errorf("%w: row %d: %s must be a whole number, got %q", ErrMalformedTable, row, col, field)
	}
	return int(v), nil
}
