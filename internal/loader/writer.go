package loader

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Tensor is a named tensor to be written.
type Tensor struct {
	Name  string
	Shape []int
	Data  []float32
}

// Write writes tensors to path in SafeTensors format, storing elements as
// dtype. The SHA-256 of the data section is recorded under
// MetadataChecksum. The file is written to a temporary name and renamed into place.
func Write(path string, dtype DType, tensors []Tensor, metadata map[string]string) error {
	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	header := Header{Metadata: meta, Tensors: make(map[string]TensorInfo, len(tensors))}
	payload := make([][]byte, len(tensors))

	var offset int64
	for i, t := range tensors {
		if _, dup := header.Tensors[t.Name]; dup {
			return fmt.Errorf("duplicate tensor name %q", t.Name)
		}
		data, err := encode(dtype, t.Data)
		if err != nil {
			return err
		}
		payload[i] = data
		header.Tensors[t.Name] = TensorInfo{
			DType:       dtype,
			Shape:       t.Shape,
			DataOffsets: [2]int64{offset, offset + int64(len(data))},
		}
		offset += int64(len(data))
	}

	meta[MetadataChecksum] = computeChecksum(payload)

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	// Pad the header with spaces so tensor data starts 8-byte aligned.
	if rem := len(headerJSON) % 8; rem != 0 {
		headerJSON = append(headerJSON, bytes.Repeat([]byte{' '}, 8-rem)...)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	w := bufio.NewWriter(tmp)
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, data := range payload {
		if _, err := w.Write(data); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("failed to write tensor data: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
