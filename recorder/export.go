package recorder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"livegraph/models"
)

var ErrNothingToExport = errors.New("nothing to export")

// Header is the csv header row for the given channel names.
func Header(names []string) string {
	return strings.Join(names, ",")
}

// FormatRow writes a sample with the shortest formatting that parses back to the same float64.
func FormatRow(sample models.Sample) string {
	fields := make([]string, len(sample))
	for i, v := range sample {
		fields[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(fields, ",")
}

// ExportCSV writes a header row followed by one row per sample in arrival order.
func ExportCSV(w io.Writer, names []string, samples []models.Sample) error {
	if len(samples) == 0 {
		return ErrNothingToExport
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(Header(names)); err != nil {
		return err
	}
	for _, sample := range samples {
		if _, err := bw.WriteString("\n" + FormatRow(sample)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ExportLog writes the lines joined by newlines, no header.
func ExportLog(w io.Writer, lines []string) error {
	if len(lines) == 0 {
		return ErrNothingToExport
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n"))
	return err
}

// ParseCSV reads back a file written by ExportCSV or a Recorder.
func ParseCSV(r io.Reader) ([]string, []models.Sample, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, nil, err
		}
		return nil, nil, ErrNothingToExport
	}
	names := strings.Split(scanner.Text(), ",")

	var samples []models.Sample
	row := 1
	for scanner.Scan() {
		row++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		sample := make(models.Sample, len(fields))
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("row %d column %d: %w", row, i+1, err)
			}
			sample[i] = v
		}
		samples = append(samples, sample)
	}

	return names, samples, scanner.Err()
}
