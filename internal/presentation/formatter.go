package presentation

import (
	"encoding/json"
	"fmt"
	"io"
)

// Formatter writes command results either as indented JSON or as styled
// text tables.
type Formatter struct {
	writer io.Writer
	json   bool
}

// NewFormatter creates a JSON formatter.
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{writer: writer, json: true}
}

// NewTextFormatter creates a formatter that renders text tables.
func NewTextFormatter(writer io.Writer) *Formatter {
	return &Formatter{writer: writer}
}

func (f *Formatter) FormatFormats(formats []FormatDTO) error {
	if f.json {
		return f.encode(formats)
	}
	return f.text(RenderFormats(formats))
}

func (f *Formatter) FormatFamilies(families []FamilyDTO) error {
	if f.json {
		return f.encode(families)
	}
	return f.text(RenderFamilies(families))
}

func (f *Formatter) FormatPath(path PathDTO) error {
	if f.json {
		return f.encode(path)
	}
	return f.text(RenderPath(path))
}

func (f *Formatter) FormatVolume(volume VolumeDTO) error {
	if f.json {
		return f.encode(volume)
	}
	return f.text(RenderVolume(volume))
}

func (f *Formatter) FormatBlobs(blobs []BlobDTO) error {
	if f.json {
		return f.encode(blobs)
	}
	return f.text(RenderBlobs(blobs))
}

func (f *Formatter) encode(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (f *Formatter) text(s string) error {
	_, err := fmt.Fprintln(f.writer, s)
	return err
}
