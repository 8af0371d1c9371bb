package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sgl-project/atlasdata/internal/fetcher"
)

type atlasCommand struct{}

func (atlasCommand) Name() string {
	return "atlas"
}

func (atlasCommand) ShortDescription() string {
	return "Print the top-level metadata listing"
}

func (atlasCommand) LongDescription() string {
	return "Downloads (or reuses the cached copy of) section_data_sets.json for the mouse brain atlas, or section_metadata.json for Ivy GAP, and prints it as JSON."
}

func (atlasCommand) ConfigureCommand(cmd *cobra.Command) {
	cmd.Args = cobra.NoArgs
}

func (atlasCommand) Run(ctx context.Context, cmd *cobra.Command, _ []string, app *fetcher.App) error {
	return app.WriteAtlas(ctx, cmd.OutOrStdout())
}

type sectionCommand struct{}

func (sectionCommand) Name() string {
	return "section SECTION_DATA_SET_ID"
}

func (sectionCommand) ShortDescription() string {
	return "List the images of one section data set"
}

func (sectionCommand) LongDescription() string {
	return "Lists tissue indices, sub-image IDs and downsampling tiers of a mouse brain section data set, or the images of an Ivy GAP section data set."
}

func (sectionCommand) ConfigureCommand(cmd *cobra.Command) {
	cmd.Args = cobra.ExactArgs(1)
}

func (sectionCommand) Run(ctx context.Context, cmd *cobra.Command, args []string, app *fetcher.App) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return app.WriteSection(ctx, id, cmd.OutOrStdout())
}

type imageCommand struct {
	tissueIndex int
	subImageID  int
	downsample  int
	output      string
	overwrite   bool
}

func (*imageCommand) Name() string {
	return "image SECTION_DATA_SET_ID"
}

func (*imageCommand) ShortDescription() string {
	return "Download one cropped mouse brain section image"
}

func (*imageCommand) LongDescription() string {
	return "Downloads one downsampled section image, crops it to the tissue bounding box recorded for the tier, and writes it to --output. The output format follows the file extension."
}

func (c *imageCommand) ConfigureCommand(cmd *cobra.Command) {
	cmd.Args = cobra.ExactArgs(1)
	cmd.Flags().IntVar(&c.tissueIndex, "tissue-index", 0, "tissue index (section_number) of the image")
	cmd.Flags().IntVar(&c.subImageID, "sub-image", 0, "sub-image ID of the image")
	cmd.Flags().IntVar(&c.downsample, "downsample", 4, "downsampling tier")
	cmd.Flags().StringVarP(&c.output, "output", "o", "", "output image path (.tiff, .png or .jpg)")
	cmd.Flags().BoolVar(&c.overwrite, "overwrite", false, "replace an existing output file")
	cmd.MarkFlagsMutuallyExclusive("tissue-index", "sub-image")
	cmd.MarkFlagsOneRequired("tissue-index", "sub-image")
	_ = cmd.MarkFlagRequired("output")
}

func (c *imageCommand) Run(ctx context.Context, cmd *cobra.Command, args []string, app *fetcher.App) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	req := fetcher.ImageRequest{
		SectionID:  id,
		Downsample: c.downsample,
		Output:     c.output,
		Overwrite:  c.overwrite,
	}
	if cmd.Flags().Changed("tissue-index") {
		req.TissueIndex = &c.tissueIndex
	} else {
		req.SubImageID = &c.subImageID
	}

	ok, err := app.FetchImage(ctx, req)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("no image written; see warnings above")
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), c.output)
	return err
}

type mirrorCommand struct {
	dir string
}

func (*mirrorCommand) Name() string {
	return "ivygap-mirror SECTION_DATA_SET_ID"
}

func (*mirrorCommand) ShortDescription() string {
	return "Mirror the images of an Ivy GAP section data set"
}

func (*mirrorCommand) LongDescription() string {
	return "Downloads every image of an Ivy GAP section data set, keeping bucket key paths under the target directory. Files already present with a matching checksum are skipped."
}

func (c *mirrorCommand) ConfigureCommand(cmd *cobra.Command) {
	cmd.Args = cobra.ExactArgs(1)
	cmd.Flags().StringVar(&c.dir, "dir", "", "target directory (defaults to image_dir, then <cache_dir>/images)")
}

func (c *mirrorCommand) Run(ctx context.Context, cmd *cobra.Command, args []string, app *fetcher.App) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	n, err := app.Mirror(ctx, id, c.dir)
	if _, werr := fmt.Fprintf(cmd.OutOrStdout(), "%d images mirrored\n", n); werr != nil && err == nil {
		err = werr
	}
	return err
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid section data set id %q: %w", arg, err)
	}
	return id, nil
}
