package mousebrain

import (
	"context"
	"fmt"

	"github.com/sgl-project/atlasdata/pkg/dataset"
	"github.com/sgl-project/atlasdata/pkg/imaging"
	"github.com/sgl-project/atlasdata/pkg/logging"
)

const viewerBaseURL = "http://mouse.brain-map.org/experiment"

// SectionDataSet is one imaging batch: its attributes and its sub-images.
type SectionDataSet struct {
	ID       int
	Metadata map[string]any

	index     *dataset.Index
	retriever *imaging.Retriever
	logger    logging.Interface
}

// Index exposes the tissue index and sub-image lookups.
func (s *SectionDataSet) Index() *dataset.Index {
	return s.index
}

// TissueIndices returns every tissue index in ascending order.
func (s *SectionDataSet) TissueIndices() []int {
	return s.index.TissueIndices()
}

// SubImageIDs returns every sub-image ID in ascending order.
func (s *SectionDataSet) SubImageIDs() []int {
	return s.index.SubImageIDs()
}

// ImageMetadataFromTissueIndex returns a copy of the record at tissueIndex.
func (s *SectionDataSet) ImageMetadataFromTissueIndex(tissueIndex int) dataset.Lookup {
	return s.index.ByTissueIndex(tissueIndex)
}

// ImageMetadataFromSubImage returns a copy of the record for subImageID.
func (s *SectionDataSet) ImageMetadataFromSubImage(subImageID int) dataset.Lookup {
	return s.index.BySubImage(subImageID)
}

// DownloadImageFromTissueIndex saves the tissue region of one downsampling
// tier of the image at tissueIndex to localPath. Unknown identifiers and
// tiers, and output collisions, are warnings with a false result.
func (s *SectionDataSet) DownloadImageFromTissueIndex(ctx context.Context, tissueIndex, downsample int, localPath string, overwrite bool) (bool, error) {
	rec, ok := s.index.ByTissueIndex(tissueIndex).Record()
	if !ok {
		return false, nil
	}
	return s.downloadImage(ctx, rec, downsample, localPath, overwrite)
}

// DownloadImageFromSubImage is DownloadImageFromTissueIndex keyed by sub-image ID.
func (s *SectionDataSet) DownloadImageFromSubImage(ctx context.Context, subImageID, downsample int, localPath string, overwrite bool) (bool, error) {
	tissueIndex, ok := s.index.TissueIndexOf(subImageID)
	if !ok {
		// logs the sub_image warning
		s.index.BySubImage(subImageID)
		return false, nil
	}
	return s.DownloadImageFromTissueIndex(ctx, tissueIndex, downsample, localPath, overwrite)
}

func (s *SectionDataSet) downloadImage(ctx context.Context, rec dataset.ImageRecord, downsample int, localPath string, overwrite bool) (bool, error) {
	if ok, err := s.retriever.CheckOutput(localPath, overwrite); !ok || err != nil {
		return false, err
	}

	box, ok := rec.Tier(downsample)
	if !ok {
		s.logger.WithField("sub_image", rec.SubImageID).
			Warnf("%d is not a valid downsampling tier for %s", downsample, rec.ImageFileName)
		return false, nil
	}

	return s.retriever.FetchCroppedImage(ctx, s.ImageKey(rec, downsample), box.Rect(), localPath, overwrite)
}

// ImageKey returns the bucket key of rec's image at a downsampling tier.
func (s *SectionDataSet) ImageKey(rec dataset.ImageRecord, downsample int) string {
	return fmt.Sprintf("section_data_set_%d/%s/%s", s.ID, dataset.TierName(downsample), rec.ImageFileName)
}

// SectionURL returns the brain-map.org viewer page for this data set.
func (s *SectionDataSet) SectionURL() string {
	return fmt.Sprintf("%s/show/%d", viewerBaseURL, s.ID)
}

// SubImageURL returns the high resolution viewer page for one sub-image.
func (s *SectionDataSet) SubImageURL(subImageID int) string {
	return fmt.Sprintf("%s/siv?id=%d&imageId=%d&initImage=ish", viewerBaseURL, s.ID, subImageID)
}

// TissueIndexURL is SubImageURL keyed by tissue index.
func (s *SectionDataSet) TissueIndexURL(tissueIndex int) (string, bool) {
	subImageID, ok := s.index.SubImageOf(tissueIndex)
	if !ok {
		return "", false
	}
	return s.SubImageURL(subImageID), true
}
