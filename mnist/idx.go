package mnist

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// IDX magic numbers: two zero bytes, the 0x08 (unsigned byte) type code and
// the number of dimensions.
const (
	imageMagic = 0x00000803
	labelMagic = 0x00000801
)

var (
	ErrBadMagic = errors.New("bad idx magic number")
	ErrShape    = errors.New("idx payload does not match header")
)

// readFile returns the file contents, gunzipping paths that end in ".gz".
func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open dataset file")
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "gzip file '%s'", path)
		}
		defer gz.Close()
		r = gz
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read file '%s'", path)
	}
	return data, nil
}

// parseIDX validates the header against magic and returns the dimensions
// and the unsigned byte payload.
func parseIDX(data []byte, magic uint32) ([]int, []byte, error) {
	r := bytes.NewReader(data)
	var got uint32
	if err := binary.Read(r, binary.BigEndian, &got); err != nil {
		return nil, nil, errors.Wrap(ErrShape, "truncated header")
	}
	if got != magic {
		return nil, nil, errors.Wrapf(ErrBadMagic, "got 0x%08x, want 0x%08x", got, magic)
	}
	dims := make([]int, magic&0xff)
	size := 1
	for i := range dims {
		var d uint32
		if err := binary.Read(r, binary.BigEndian, &d); err != nil {
			return nil, nil, errors.Wrap(ErrShape, "truncated header")
		}
		dims[i] = int(d)
		size *= int(d)
	}
	payload := data[len(data)-r.Len():]
	if len(payload) != size {
		return nil, nil, errors.Wrapf(ErrShape, "header %v declares %d bytes, file holds %d", dims, size, len(payload))
	}
	return dims, payload, nil
}
