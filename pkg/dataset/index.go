// Package dataset indexes the sub-images of one imaging batch by tissue
// index and by sub-image ID.
package dataset

import (
	"errors"
	"fmt"
	"slices"

	"github.com/sgl-project/atlasdata/pkg/logging"
)

// ErrDuplicateIdentifier is returned when two records of a batch share a
// tissue index or a sub-image ID.
var ErrDuplicateIdentifier = errors.New("dataset: duplicate identifier")

// IdentifierKind names which identifier a lookup used.
type IdentifierKind string

const (
	KindTissueIndex IdentifierKind = "tissue_index"
	KindSubImage    IdentifierKind = "sub_image"
)

// NotFoundError describes a lookup miss.
type NotFoundError struct {
	Kind    IdentifierKind
	ID      int
	BatchID int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d does not exist in section_data_set_%d", e.Kind, e.ID, e.BatchID)
}

// Lookup holds either a record or the reason there is none.
type Lookup struct {
	record   *ImageRecord
	notFound *NotFoundError
}

// Found reports whether the lookup produced a record.
func (l Lookup) Found() bool {
	return l.record != nil
}

// Record returns the record and whether it was found.
func (l Lookup) Record() (ImageRecord, bool) {
	if l.record == nil {
		return ImageRecord{}, false
	}
	return *l.record, true
}

// NotFound returns the miss description, or nil when found.
func (l Lookup) NotFound() *NotFoundError {
	return l.notFound
}

// Index maps tissue indices and sub-image IDs of one batch to records.
// It is immutable after NewIndex.
type Index struct {
	batchID       int
	byTissue      map[int]ImageRecord
	subToTissue   map[int]int
	tissueToSub   map[int]int
	tissueIndices []int
	subImageIDs   []int
	logger        logging.Interface
}

// NewIndex builds the index for batchID. Identifiers must be unique.
func NewIndex(batchID int, records []ImageRecord, logger logging.Interface) (*Index, error) {
	idx := &Index{
		batchID:     batchID,
		byTissue:    make(map[int]ImageRecord, len(records)),
		subToTissue: make(map[int]int, len(records)),
		tissueToSub: make(map[int]int, len(records)),
		logger:      logger,
	}

	for _, rec := range records {
		if _, dup := idx.byTissue[rec.TissueIndex]; dup {
			return nil, fmt.Errorf("%w: tissue_index %d appears more than once in section_data_set_%d",
				ErrDuplicateIdentifier, rec.TissueIndex, batchID)
		}
		if _, dup := idx.subToTissue[rec.SubImageID]; dup {
			return nil, fmt.Errorf("%w: sub_image %d appears more than once in section_data_set_%d",
				ErrDuplicateIdentifier, rec.SubImageID, batchID)
		}
		idx.byTissue[rec.TissueIndex] = rec.Clone()
		idx.subToTissue[rec.SubImageID] = rec.TissueIndex
		idx.tissueToSub[rec.TissueIndex] = rec.SubImageID
		idx.tissueIndices = append(idx.tissueIndices, rec.TissueIndex)
		idx.subImageIDs = append(idx.subImageIDs, rec.SubImageID)
	}

	slices.Sort(idx.tissueIndices)
	slices.Sort(idx.subImageIDs)
	return idx, nil
}

// BatchID returns the batch the index was built for.
func (x *Index) BatchID() int {
	return x.batchID
}

// Len returns the number of records.
func (x *Index) Len() int {
	return len(x.byTissue)
}

// TissueIndices returns every tissue index in ascending order.
func (x *Index) TissueIndices() []int {
	return slices.Clone(x.tissueIndices)
}

// SubImageIDs returns every sub-image ID in ascending order.
func (x *Index) SubImageIDs() []int {
	return slices.Clone(x.subImageIDs)
}

// TissueIndexOf maps a sub-image ID to its tissue index.
func (x *Index) TissueIndexOf(subImageID int) (int, bool) {
	i, ok := x.subToTissue[subImageID]
	return i, ok
}

// SubImageOf maps a tissue index to its sub-image ID.
func (x *Index) SubImageOf(tissueIndex int) (int, bool) {
	id, ok := x.tissueToSub[tissueIndex]
	return id, ok
}

// ByTissueIndex returns a copy of the record for tissueIndex. A miss is
// logged as a warning.
func (x *Index) ByTissueIndex(tissueIndex int) Lookup {
	rec, ok := x.byTissue[tissueIndex]
	if !ok {
		return x.miss(KindTissueIndex, tissueIndex)
	}
	clone := rec.Clone()
	return Lookup{record: &clone}
}

// BySubImage resolves subImageID to its tissue index and looks that up.
func (x *Index) BySubImage(subImageID int) Lookup {
	tissueIndex, ok := x.subToTissue[subImageID]
	if !ok {
		return x.miss(KindSubImage, subImageID)
	}
	return x.ByTissueIndex(tissueIndex)
}

func (x *Index) miss(kind IdentifierKind, id int) Lookup {
	nf := &NotFoundError{Kind: kind, ID: id, BatchID: x.batchID}
	x.logger.WithField(string(kind), id).Warn(nf.Error())
	return Lookup{notFound: nf}
}
