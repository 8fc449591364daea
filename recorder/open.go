package recorder

import (
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

type compressedRecording struct {
	*zstd.Decoder
	file *os.File
}

func (c compressedRecording) Close() error {
	c.Decoder.Close()
	return c.file.Close()
}

// OpenRecording opens a file written by a Recorder for reading, decompressing it when it ends in .zst.
func OpenRecording(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ZSTD_EXT) {
		return file, nil
	}
	decoder, err := zstd.NewReader(file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return compressedRecording{decoder, file}, nil
}
