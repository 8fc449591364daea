package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func NextAvailableFilename(dir, name, ext string) string {
	path := filepath.Join(dir, name+ext)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	for i := 1; ; i++ {
		newName := fmt.Sprintf("%s_%d%s", name, i, ext)
		newPath := filepath.Join(dir, newName)
		if _, err := os.Stat(newPath); os.IsNotExist(err) {
			return newPath
		}
	}
}

// TimestampedName appends an ISO-8601 timestamp (to the second, colons swapped for dashes so it is a legal file
// name everywhere) to prefix, e.g. live_graph_2025-01-02T15-04-05.
func TimestampedName(prefix string, t time.Time) string {
	stamp := strings.ReplaceAll(t.UTC().Format("2006-01-02T15:04:05"), ":", "-")
	return prefix + "_" + stamp
}
