package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"maps"
	"slices"
)

// CropBox is the region of a downsampled image that holds the tissue.
type CropBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect returns the box as [X, Y, X+Width, Y+Height].
func (b CropBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// TierName returns the key a downsampling tier is stored under.
func TierName(downsample int) string {
	return fmt.Sprintf("downsample_%d", downsample)
}

// ImageRecord describes one sub-image of a batch. Every attribute of the
// source JSON object is kept in Attributes; the typed fields are the ones
// the index and downloaders rely on.
type ImageRecord struct {
	SubImageID    int
	TissueIndex   int
	ImageFileName string
	Downsampling  map[string]CropBox
	Attributes    map[string]any
}

type imageRecordJSON struct {
	ID            *int               `json:"id"`
	SectionNumber *int               `json:"section_number"`
	ImageFileName string             `json:"image_file_name"`
	Downsampling  map[string]CropBox `json:"downsampling"`
}

// UnmarshalJSON requires "id" and "section_number".
func (r *ImageRecord) UnmarshalJSON(data []byte) error {
	var typed imageRecordJSON
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}
	if typed.ID == nil {
		return fmt.Errorf("image record has no id")
	}
	if typed.SectionNumber == nil {
		return fmt.Errorf("image record %d has no section_number", *typed.ID)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var attrs map[string]any
	if err := dec.Decode(&attrs); err != nil {
		return err
	}

	*r = ImageRecord{
		SubImageID:    *typed.ID,
		TissueIndex:   *typed.SectionNumber,
		ImageFileName: typed.ImageFileName,
		Downsampling:  typed.Downsampling,
		Attributes:    attrs,
	}
	return nil
}

// MarshalJSON writes the original attributes.
func (r ImageRecord) MarshalJSON() ([]byte, error) {
	if r.Attributes != nil {
		return json.Marshal(r.Attributes)
	}
	return json.Marshal(imageRecordJSON{
		ID:            &r.SubImageID,
		SectionNumber: &r.TissueIndex,
		ImageFileName: r.ImageFileName,
		Downsampling:  r.Downsampling,
	})
}

// Tier returns the crop box for a downsampling tier.
func (r ImageRecord) Tier(downsample int) (CropBox, bool) {
	box, ok := r.Downsampling[TierName(downsample)]
	return box, ok
}

// Tiers returns the available tier names in sorted order.
func (r ImageRecord) Tiers() []string {
	return slices.Sorted(maps.Keys(r.Downsampling))
}

// Clone returns a deep copy; callers may mutate it freely.
func (r ImageRecord) Clone() ImageRecord {
	out := r
	if r.Downsampling != nil {
		out.Downsampling = maps.Clone(r.Downsampling)
	}
	if r.Attributes != nil {
		out.Attributes = deepCopy(r.Attributes).(map[string]any)
	}
	return out
}

func deepCopy(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return v
	}
}
