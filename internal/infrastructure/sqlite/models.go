package sqlite

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrBlobNotFound is matched by BlobNotFoundError.
var ErrBlobNotFound = errors.New("blob not found")

// BlobNotFoundError names the missing key.
type BlobNotFoundError struct {
	Key string
}

func (e *BlobNotFoundError) Error() string {
	return fmt.Sprintf("blob %q not found", e.Key)
}

func (e *BlobNotFoundError) Is(target error) bool { return target == ErrBlobNotFound }

// Blob is one stored array: raw element bytes plus the layout needed to read them.
type Blob struct {
	Key string
	// Format is the element format name, e.g. "FLOAT32".
	Format    string
	Dims      []int
	Data      []byte
	// Version starts at 1 and increases on every Put of the key.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BlobInfo describes a stored blob without its data.
type BlobInfo struct {
	Key       string
	Format    string
	Dims      []int
	Size      int
	Version   int64
	UpdatedAt time.Time
}

// blobModel is the database row of the blobs table. Dims are JSON encoded and
// times are Unix seconds.
type blobModel struct {
	Key       string
	Format    string
	Dims      string
	Data      []byte
	Version   int64
	CreatedAt int64
	UpdatedAt int64
}

func toBlobModel(b *Blob) (*blobModel, error) {
	dims, err := json.Marshal(b.Dims)
	if err != nil {
		return nil, fmt.Errorf("encoding dims: %w", err)
	}
	data := b.Data
	if data == nil {
		data = []byte{}
	}
	return &blobModel{
		Key:       b.Key,
		Format:    b.Format,
		Dims:      string(dims),
		Data:      data,
		CreatedAt: b.CreatedAt.Unix(),
		UpdatedAt: b.UpdatedAt.Unix(),
	}, nil
}

func (m *blobModel) toBlob() (*Blob, error) {
	dims, err := decodeDims(m.Dims)
	if err != nil {
		return nil, err
	}
	return &Blob{
		Key:       m.Key,
		Format:    m.Format,
		Dims:      dims,
		Data:      m.Data,
		Version:   m.Version,
		CreatedAt: time.Unix(m.CreatedAt, 0),
		UpdatedAt: time.Unix(m.UpdatedAt, 0),
	}, nil
}

func decodeDims(s string) ([]int, error) {
	var dims []int
	if err := json.Unmarshal([]byte(s), &dims); err != nil {
		return nil, fmt.Errorf("decoding dims %q: %w", s, err)
	}
	return dims, nil
}
