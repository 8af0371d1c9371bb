// Package ivygap reads the Ivy Glioblastoma Atlas bucket: donor, specimen
// and section metadata, plus lazily loaded section images.
package ivygap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"

	"github.com/hashicorp/go-multierror"

	"github.com/sgl-project/atlasdata/pkg/cache"
	"github.com/sgl-project/atlasdata/pkg/logging"
	"github.com/sgl-project/atlasdata/pkg/metadata"
	s3provider "github.com/sgl-project/atlasdata/pkg/storage/s3"
)

// Bucket is the public bucket holding the Ivy GAP data.
const Bucket = "allen-ivy-glioblastoma-atlas"

const (
	donorMetadataKey    = "donor_metadata.json"
	specimenMetadataKey = "specimen_metadata.json"
	sectionMetadataKey  = "section_metadata.json"
)

// ErrSectionNotFound is returned for a section_data_set_id absent from the
// section metadata.
var ErrSectionNotFound = errors.New("ivygap: section data set not found")

// Client reads Ivy GAP metadata through a local cache directory.
type Client struct {
	fetcher  *cache.Fetcher
	repo     *metadata.Repository
	imageDir string
	logger   logging.Interface
}

// Option configures a Client
type Option func(*Client)

// WithLocalImageDir makes image handles read from dir, laid out as
// MirrorSection writes it, instead of streaming from the bucket.
func WithLocalImageDir(dir string) Option {
	return func(c *Client) {
		c.imageDir = dir
	}
}

// NewClient creates a client caching metadata under cacheDir.
func NewClient(fetcher *cache.Fetcher, cacheDir string, logger logging.Interface, opts ...Option) *Client {
	logger = logger.WithField("dataset", "ivy-gap")
	c := &Client{
		fetcher: fetcher,
		repo:    metadata.NewRepository(fetcher, cacheDir, logger),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DonorMetadata returns donor_metadata.json.
func (c *Client) DonorMetadata(ctx context.Context) ([]map[string]any, error) {
	return c.loadList(ctx, donorMetadataKey)
}

// SpecimenMetadata returns specimen_metadata.json.
func (c *Client) SpecimenMetadata(ctx context.Context) ([]map[string]any, error) {
	return c.loadList(ctx, specimenMetadataKey)
}

// SectionMetadata returns section_metadata.json.
func (c *Client) SectionMetadata(ctx context.Context) ([]map[string]any, error) {
	return c.loadList(ctx, sectionMetadataKey)
}

func (c *Client) loadList(ctx context.Context, key string) ([]map[string]any, error) {
	doc, err := c.repo.LoadDocument(ctx, key, key)
	if err != nil {
		return nil, err
	}
	return doc.List()
}

type sectionEntry struct {
	SectionDataSetID int               `json:"section_data_set_id"`
	SubImages        []json.RawMessage `json:"sub_images"`
}

// SectionImages returns the sub-images of one section data set, each with
// an unloaded handle per image it references.
func (c *Client) SectionImages(ctx context.Context, sectionDataSetID int) ([]SectionImage, error) {
	var sections []sectionEntry
	if err := c.repo.LoadJSON(ctx, sectionMetadataKey, sectionMetadataKey, &sections); err != nil {
		return nil, err
	}

	idx := slices.IndexFunc(sections, func(s sectionEntry) bool {
		return s.SectionDataSetID == sectionDataSetID
	})
	if idx < 0 {
		return nil, fmt.Errorf("%w: section_data_set_id %d", ErrSectionNotFound, sectionDataSetID)
	}

	images := make([]SectionImage, 0, len(sections[idx].SubImages))
	for i, raw := range sections[idx].SubImages {
		img, err := c.newSectionImage(raw)
		if err != nil {
			return nil, fmt.Errorf("section_data_set_id %d sub_images[%d]: %w", sectionDataSetID, i, err)
		}
		images = append(images, img)
	}
	return images, nil
}

// MirrorSection copies every image of a section data set under dir,
// keeping the bucket key as the relative path. Objects already present with
// a matching digest are skipped. A failed object does not stop the others;
// all failures are returned together. The count of objects now present is
// returned alongside.
func (c *Client) MirrorSection(ctx context.Context, sectionDataSetID int, dir string) (int, error) {
	images, err := c.SectionImages(ctx, sectionDataSetID)
	if err != nil {
		return 0, err
	}

	var (
		errs *multierror.Error
		done int
	)
	for _, img := range images {
		for _, name := range img.ImageNames() {
			handle := img.Images[name]
			localPath := filepath.Join(dir, filepath.FromSlash(handle.Key))

			c.logger.WithField("uri", handle.URI).
				WithField("path", localPath).
				Info("Mirroring image")

			if err := c.fetcher.EnsureLocal(ctx, handle.Key, localPath); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", handle.URI, err))
				continue
			}
			done++
		}
	}
	return done, errs.ErrorOrNil()
}

func (c *Client) newSectionImage(raw json.RawMessage) (SectionImage, error) {
	doc, err := metadata.ParseDocument(raw)
	if err != nil {
		return SectionImage{}, err
	}
	attrs, err := doc.Object()
	if err != nil {
		return SectionImage{}, err
	}

	var typed struct {
		Width  int               `json:"width"`
		Height int               `json:"height"`
		S3Data map[string]string `json:"s3_data"`
	}
	if err := json.Unmarshal(raw, &typed); err != nil {
		return SectionImage{}, err
	}
	delete(attrs, "s3_data")

	img := SectionImage{
		Attributes: attrs,
		Width:      typed.Width,
		Height:     typed.Height,
		Images:     make(map[string]*ImageHandle, len(typed.S3Data)),
	}
	for _, name := range slices.Sorted(maps.Keys(typed.S3Data)) {
		uri := typed.S3Data[name]
		img.Images[name] = &ImageHandle{
			URI:      uri,
			Key:      s3provider.KeyFromURI(Bucket, uri),
			Width:    typed.Width,
			Height:   typed.Height,
			localDir: c.imageDir,
			store:    c.fetcher.Storage(),
			fs:       c.fetcher.Fs(),
			logger:   c.logger,
		}
	}
	return img, nil
}
