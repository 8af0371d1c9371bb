package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/sgl-project/atlasdata/pkg/cache"
	"github.com/sgl-project/atlasdata/pkg/ivygap"
	"github.com/sgl-project/atlasdata/pkg/logging"
	"github.com/sgl-project/atlasdata/pkg/mousebrain"
)

// ErrWrongDataset is returned when a command is run against a dataset it
// does not apply to.
var ErrWrongDataset = errors.New("command not available for the configured dataset")

// ImageRequest selects one mouse brain sub-image and where to write its crop.
// Exactly one of TissueIndex or SubImageID is set.
type ImageRequest struct {
	SectionID   int
	TissueIndex *int
	SubImageID  *int
	Downsample  int
	Output      string
	Overwrite   bool
}

// App runs the atlas-fetch commands against the configured dataset.
type App struct {
	config  *Config
	fetcher *cache.Fetcher
	mouse   *mousebrain.Client
	ivy     *ivygap.Client
	logger  logging.Interface
}

// NewApp builds the client for config.Dataset on top of fetcher.
func NewApp(config *Config, fetcher *cache.Fetcher) *App {
	a := &App{
		config:  config,
		fetcher: fetcher,
		logger:  config.Logger,
	}
	switch config.Dataset {
	case MouseBrain:
		a.mouse = mousebrain.NewClient(fetcher, config.CacheDir, config.ScratchDir, config.Logger)
	case IvyGAP:
		var opts []ivygap.Option
		if config.ImageDir != "" {
			opts = append(opts, ivygap.WithLocalImageDir(config.ImageDir))
		}
		a.ivy = ivygap.NewClient(fetcher, config.CacheDir, config.Logger, opts...)
	}
	return a
}

// Config returns the resolved configuration.
func (a *App) Config() *Config {
	return a.config
}

// WriteAtlas writes the top-level metadata listing as indented JSON: the
// section data sets for the mouse brain atlas, the section metadata for
// Ivy GAP.
func (a *App) WriteAtlas(ctx context.Context, w io.Writer) error {
	var (
		entries []map[string]any
		err     error
	)
	switch {
	case a.mouse != nil:
		entries, err = a.mouse.AtlasMetadata(ctx)
	case a.ivy != nil:
		entries, err = a.ivy.SectionMetadata(ctx)
	}
	if err != nil {
		return err
	}
	a.logger.WithField("entries", len(entries)).Info("Loaded atlas metadata")
	return writeJSON(w, entries)
}

// WriteSection writes a summary of one section data set.
func (a *App) WriteSection(ctx context.Context, sectionID int, w io.Writer) error {
	if a.ivy != nil {
		return a.writeIvySection(ctx, sectionID, w)
	}

	ds, err := a.mouse.SectionDataSet(ctx, sectionID)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "section_data_set %d\t%s\n", ds.ID, ds.SectionURL()); err != nil {
		return err
	}
	for _, tissueIndex := range ds.TissueIndices() {
		rec, ok := ds.ImageMetadataFromTissueIndex(tissueIndex).Record()
		if !ok {
			continue
		}
		_, err := fmt.Fprintf(w, "tissue_index=%d\tsub_image=%d\t%s\ttiers=%v\n",
			rec.TissueIndex, rec.SubImageID, rec.ImageFileName, rec.Tiers())
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *App) writeIvySection(ctx context.Context, sectionID int, w io.Writer) error {
	images, err := a.ivy.SectionImages(ctx, sectionID)
	if err != nil {
		return err
	}
	for i, img := range images {
		for _, name := range img.ImageNames() {
			handle := img.Images[name]
			_, err := fmt.Fprintf(w, "%d\t%s\t%dx%d\t%s\n", i, name, handle.Width, handle.Height, handle.URI)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// FetchImage crops one mouse brain sub-image to req.Output. It reports
// false, without error, for the soft failures the section data set warns
// about.
func (a *App) FetchImage(ctx context.Context, req ImageRequest) (bool, error) {
	if a.mouse == nil {
		return false, errors.Wrapf(ErrWrongDataset, "image requires dataset %s", MouseBrain)
	}
	if (req.TissueIndex == nil) == (req.SubImageID == nil) {
		return false, errors.New("exactly one of tissue index or sub-image id is required")
	}

	ds, err := a.mouse.SectionDataSet(ctx, req.SectionID)
	if err != nil {
		return false, err
	}
	if req.TissueIndex != nil {
		return ds.DownloadImageFromTissueIndex(ctx, *req.TissueIndex, req.Downsample, req.Output, req.Overwrite)
	}
	return ds.DownloadImageFromSubImage(ctx, *req.SubImageID, req.Downsample, req.Output, req.Overwrite)
}

// Mirror copies every image of an Ivy GAP section data set under dir, or
// under the configured image directory when dir is empty.
func (a *App) Mirror(ctx context.Context, sectionID int, dir string) (int, error) {
	if a.ivy == nil {
		return 0, errors.Wrapf(ErrWrongDataset, "ivygap-mirror requires dataset %s", IvyGAP)
	}
	if dir == "" {
		dir = a.config.ImageDir
	}
	if dir == "" {
		dir = filepath.Join(a.config.CacheDir, "images")
	}
	return a.ivy.MirrorSection(ctx, sectionID, dir)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
