package input

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/curbsim/curbsim/sim"
)

// Demand table column names, matched case-insensitively.
const (
	ColSlot   = "SLOT"
	ColDemand = "DEMAND"
)

// demandRow is one YAML demand row; see blockRow.
type demandRow struct {
	BlockID  string   `yaml:"block_id"`
	TimeSlot *int     `yaml:"slot"`
	Demand   *float64 `yaml:"demand"`
}

type demandFile struct {
	Demand []demandRow `yaml:"demand"`
}

// LoadDemand reads a demand table (.csv, .yaml or .yml). An empty path yields
// an empty table.
func LoadDemand(path string) (*sim.DemandTable, error) {
	if path == "" {
		return &sim.DemandTable{}, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening demand table: %w", err)
		}
		defer f.Close()
		return ReadDemandCSV(f)
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading demand table: %w", err)
		}
		return ParseDemandYAML(data)
	default:
		return nil, fmt.Errorf("%w: unsupported demand table extension %q", ErrMalformedTable, filepath.Ext(path))
	}
}

// ReadDemandCSV parses BLOCKFACE_ID,SLOT,DEMAND rows.
func ReadDemandCSV(r io.Reader) (*sim.DemandTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading demand header: %v", ErrMalformedTable, err)
	}
	cols, err := columnIndex(header, ColBlockID, ColSlot, ColDemand)
	if err != nil {
		return nil, err
	}

	table := &sim.DemandTable{}
	for row := 1; ; row++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: demand row %d: %v", ErrMalformedTable, row, err)
		}
		id := strings.TrimSpace(rec[cols[ColBlockID]])
		if id == "" {
			return nil, fmt.Errorf("%w: demand row %d: empty %s", ErrMalformedTable, row, ColBlockID)
		}
		slot, err := parseCount(rec[cols[ColSlot]], ColSlot, row)
		if err != nil {
			return nil, err
		}
		demand, err := parseFloat(rec[cols[ColDemand]], ColDemand, row)
		if err != nil {
			return nil, err
		}
		table.Records = append(table.Records, sim.DemandRecord{BlockID: id, TimeSlot: slot, Demand: demand})
	}
	return table, nil
}

// ParseDemandYAML parses a YAML demand table of the form
//
//	demand:
//	  - {block_id: "...", slot: ..., demand: ...}
//
// Unrecognized keys and rows missing any field are rejected.
func ParseDemandYAML(data []byte) (*sim.DemandTable, error) {
	var file demandFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: parsing demand yaml: %v", ErrMalformedTable, err)
	}

	table := &sim.DemandTable{Records: make([]sim.DemandRecord, 0, len(file.Demand))}
	for i, d := range file.Demand {
		row := i + 1
		switch {
		case strings.TrimSpace(d.BlockID) == "":
			return nil, fmt.Errorf("%w: demand row %d: empty block_id", ErrMalformedTable, row)
		case d.TimeSlot == nil:
			return nil, missingField(row, "slot")
		case d.Demand == nil:
			return nil, missingField(row, "demand")
		}
		table.Records = append(table.Records, sim.DemandRecord{BlockID: d.BlockID, TimeSlot: *d.TimeSlot, Demand: *d.Demand})
	}
	return table, nil
}
