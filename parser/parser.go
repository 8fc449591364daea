package parser

import (
	"math"
	"strconv"
	"strings"

	"livegraph/models"
)

// Parser decodes comma separated numeric records into fixed width samples.
type Parser struct {
	channels int
	splitter Splitter
}

func NewParser(channels int) *Parser {
	return &Parser{channels: channels}
}

func (p *Parser) Channels() int {
	return p.channels
}

// Feed consumes a chunk of raw bytes and returns a sample for every complete line that contained at least one
// number. Lines without numbers and tokens that aren't numbers are dropped silently.
func (p *Parser) Feed(chunk []byte) []models.Sample {
	var samples []models.Sample
	for _, line := range p.splitter.Feed(chunk) {
		if sample, ok := ParseLine(line, p.channels); ok {
			samples = append(samples, sample)
		}
	}
	return samples
}

// Pending is the partial record held until the next newline arrives.
func (p *Parser) Pending() string {
	return p.splitter.Pending()
}

func (p *Parser) Reset() {
	p.splitter.Reset()
}

// ParseLine decodes a single record into a sample of exactly n values.
func ParseLine(line string, n int) (models.Sample, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false
	}

	values := make([]float64, 0, n)
	for _, token := range strings.Split(line, ",") {
		value, err := strconv.ParseFloat(strings.TrimSpace(token), 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}
		values = append(values, value)
	}
	if len(values) == 0 {
		return nil, false
	}

	return models.NewSample(values, n), true
}
