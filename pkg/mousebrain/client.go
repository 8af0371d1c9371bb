// Package mousebrain reads the Allen Mouse Brain Atlas bucket: the atlas
// listing, per-batch section metadata, and cropped section images.
package mousebrain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sgl-project/atlasdata/pkg/cache"
	"github.com/sgl-project/atlasdata/pkg/dataset"
	"github.com/sgl-project/atlasdata/pkg/imaging"
	"github.com/sgl-project/atlasdata/pkg/logging"
	"github.com/sgl-project/atlasdata/pkg/metadata"
)

// Bucket is the public bucket holding the atlas.
const Bucket = "allen-mouse-brain-atlas"

const atlasMetadataKey = "section_data_sets.json"

// SectionMetadata is one section_data_set.json document. The image list is
// split out; every other attribute is kept in Attributes.
type SectionMetadata struct {
	Attributes    map[string]any
	SectionImages []dataset.ImageRecord
}

// UnmarshalJSON splits "section_images" from the remaining attributes.
func (m *SectionMetadata) UnmarshalJSON(data []byte) error {
	doc, err := metadata.ParseDocument(data)
	if err != nil {
		return err
	}
	attrs, err := doc.Object()
	if err != nil {
		return err
	}

	var images struct {
		SectionImages []dataset.ImageRecord `json:"section_images"`
	}
	if err := json.Unmarshal(data, &images); err != nil {
		return fmt.Errorf("section_images: %w", err)
	}

	delete(attrs, "section_images")
	*m = SectionMetadata{
		Attributes:    attrs,
		SectionImages: images.SectionImages,
	}
	return nil
}

// Client reads atlas metadata and images through a local cache directory.
type Client struct {
	repo      *metadata.Repository
	retriever *imaging.Retriever
	logger    logging.Interface
}

// NewClient creates a client. Metadata is cached in cacheDir; image
// downloads are staged in scratchDir.
func NewClient(fetcher *cache.Fetcher, cacheDir, scratchDir string, logger logging.Interface) *Client {
	logger = logger.WithField("dataset", "mouse-brain")
	return &Client{
		repo:      metadata.NewRepository(fetcher, cacheDir, logger),
		retriever: imaging.NewRetriever(fetcher.Storage(), fetcher.Fs(), scratchDir, logger),
		logger:    logger,
	}
}

// AtlasMetadata returns every section data set listed in the atlas, in the
// order the bucket lists them.
func (c *Client) AtlasMetadata(ctx context.Context) ([]map[string]any, error) {
	doc, err := c.repo.LoadDocument(ctx, atlasMetadataKey, atlasMetadataKey)
	if err != nil {
		return nil, err
	}
	return doc.List()
}

// SectionMetadata returns the metadata for one section data set.
func (c *Client) SectionMetadata(ctx context.Context, sectionID int) (*SectionMetadata, error) {
	remoteKey := fmt.Sprintf("section_data_set_%d/section_data_set.json", sectionID)
	localName := fmt.Sprintf("section_data_set_%d_metadata.json", sectionID)

	var meta SectionMetadata
	if err := c.repo.LoadJSON(ctx, remoteKey, localName, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// SectionDataSet loads one batch and indexes its images.
func (c *Client) SectionDataSet(ctx context.Context, sectionID int) (*SectionDataSet, error) {
	meta, err := c.SectionMetadata(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	logger := c.logger.WithField("section_data_set", sectionID)
	index, err := dataset.NewIndex(sectionID, meta.SectionImages, logger)
	if err != nil {
		return nil, err
	}

	return &SectionDataSet{
		ID:        sectionID,
		Metadata:  meta.Attributes,
		index:     index,
		retriever: c.retriever,
		logger:    logger,
	}, nil
}
