package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"livegraph/logging"
	"livegraph/recorder"
)

// logfilter keeps the lines of a recorded serial log that contain any of the --match patterns.
func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	var (
		patterns []string
		outPath  string
		invert   bool
	)
	flagSet := pflag.NewFlagSet("logfilter", pflag.ContinueOnError)
	flagSet.StringArrayVarP(&patterns, "match", "m", nil, "keep lines containing this text (repeatable)")
	flagSet.StringVarP(&outPath, "out", "o", "", "write to this file instead of stdout")
	flagSet.BoolVarP(&invert, "invert", "v", false, "keep the lines that match none of the patterns")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("usage: logfilter [flags] <recording>\n%s", flagSet.FlagUsages())
	}
	if len(patterns) == 0 {
		return errors.New("at least one --match is required")
	}

	logger := logging.NewLogger(os.Stderr, "info")

	in, err := recorder.OpenRecording(flagSet.Arg(0))
	if err != nil {
		return err
	}
	defer in.Close()

	out := stdout
	if outPath != "" {
		file, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}

	kept, err := filter(in, out, patterns, invert)
	if err != nil {
		return err
	}
	logger.Info("filtered", "recording", flagSet.Arg(0), "kept", kept)
	return nil
}

func filter(in io.Reader, out io.Writer, patterns []string, invert bool) (int, error) {
	writer := bufio.NewWriter(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	kept := 0
	for scanner.Scan() {
		line := scanner.Text()
		if matches(line, patterns) == invert {
			continue
		}
		if _, err := writer.WriteString(line + "\n"); err != nil {
			return kept, err
		}
		kept++
	}
	if err := scanner.Err(); err != nil {
		return kept, err
	}
	return kept, writer.Flush()
}

func matches(line string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(line, pattern) {
			return true
		}
	}
	return false
}
