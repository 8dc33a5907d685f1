// Package ingest loads residency observations from newline-delimited JSON
// and groups them per system. It is the loading collaborator of the
// analysis core; the analytics packages never touch files themselves.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/dwellscope/dwellscope/pkg/timeseries"
)

var (
	// ErrMalformedRecord reports an input line that is not a valid record.
	// Wrapped errors carry the one-based line number.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrUnknownSystem reports a system identifier absent from the dataset.
	ErrUnknownSystem = errors.New("unknown system")

	// ErrEmptyDataset reports a dataset with no records at all.
	ErrEmptyDataset = errors.New("dataset contains no records")

	// ErrAmbiguousSystem reports that a system must be named because the
	// dataset holds more than one.
	ErrAmbiguousSystem = errors.New("multiple systems in dataset")
)

// maxLineBytes bounds a single NDJSON line.
const maxLineBytes = 1 << 20

// Record is one residency observation as it appears on the wire.
type Record struct {
	TS        time.Time `json:"ts"`
	System    string    `json:"system"`
	Residency float64   `json:"residency"`
}

// SystemInfo summarizes one system's presence in a dataset.
type SystemInfo struct {
	Name    string    `json:"name"`
	Samples int       `json:"samples"`
	First   time.Time `json:"first"`
	Last    time.Time `json:"last"`
}

// Dataset holds per-system samples in input order.
type Dataset struct {
	samples map[string][]timeseries.Sample
	total   int
}

// ReadFile reads an NDJSON dataset from path. See [Read].
func ReadFile(path string, strict bool) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds, err := Read(f, strict)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return ds, nil
}

// Read reads NDJSON records from r. Blank lines are skipped; a malformed
// line fails the whole read with its line number. In strict mode every
// record is additionally validated against the embedded JSON schema, which
// also bounds residency to [0, 100] and rejects unknown fields.
func Read(r io.Reader, strict bool) (*Dataset, error) {
	var validator *Validator

	if strict {
		v, err := NewValidator()
		if err != nil {
			return nil, err
		}

		validator = v
	}

	ds := &Dataset{samples: make(map[string][]timeseries.Sample)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		if err := ds.addLine(line, lineNo, validator); err != nil {
			return nil, err
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}

	return ds, nil
}

// addLine parses and validates one non-blank line, then appends its sample.
func (d *Dataset) addLine(line []byte, lineNo int, validator *Validator) error {
	if validator != nil {
		issues, err := validator.ValidateLine(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}

		if len(issues) > 0 {
			return fmt.Errorf("line %d: %w: %s: %s",
				lineNo, ErrMalformedRecord, issues[0].Field, issues[0].Description)
		}
	}

	var rec Record

	if err := json.Unmarshal(line, &rec); err != nil {
		return fmt.Errorf("line %d: %w: %v", lineNo, ErrMalformedRecord, err)
	}

	if rec.System == "" || rec.TS.IsZero() {
		return fmt.Errorf("line %d: %w: ts and system are required", lineNo, ErrMalformedRecord)
	}

	d.samples[rec.System] = append(d.samples[rec.System], timeseries.Sample{
		Time:  rec.TS,
		Value: rec.Residency,
	})
	d.total++

	return nil
}

// Len returns the total record count across all systems.
func (d *Dataset) Len() int {
	return d.total
}

// Systems returns a per-system overview sorted by name. First and Last are
// the time extents of the raw samples, which need not arrive sorted.
func (d *Dataset) Systems() []SystemInfo {
	infos := make([]SystemInfo, 0, len(d.samples))

	for name, samples := range d.samples {
		info := SystemInfo{Name: name, Samples: len(samples)}

		for i, s := range samples {
			if i == 0 || s.Time.Before(info.First) {
				info.First = s.Time
			}

			if i == 0 || s.Time.After(info.Last) {
				info.Last = s.Time
			}
		}

		infos = append(infos, info)
	}

	slices.SortFunc(infos, func(a, b SystemInfo) int {
		return strings.Compare(a.Name, b.Name)
	})

	return infos
}

// Samples returns the raw samples for one system in input order. The
// returned slice is shared; callers must not mutate it.
func (d *Dataset) Samples(system string) ([]timeseries.Sample, error) {
	samples, ok := d.samples[system]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSystem, system)
	}

	return samples, nil
}

// Select resolves which system to analyze. An empty requested name is
// accepted only when the dataset holds exactly one system; otherwise the
// error names the candidates so the caller can pick.
func (d *Dataset) Select(requested string) (string, error) {
	if requested != "" {
		if _, ok := d.samples[requested]; !ok {
			return "", fmt.Errorf("%w: %q", ErrUnknownSystem, requested)
		}

		return requested, nil
	}

	names := make([]string, 0, len(d.samples))
	for name := range d.samples {
		names = append(names, name)
	}

	slices.Sort(names)

	switch len(names) {
	case 0:
		return "", ErrEmptyDataset
	case 1:
		return names[0], nil
	default:
		return "", fmt.Errorf("%w: pick one of %s", ErrAmbiguousSystem, strings.Join(names, ", "))
	}
}
