package dataset

import (
	"encoding/json"
	"fmt"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sgl-project/atlasdata/pkg/logging"
)

// seventeenRecords mirrors a batch of 17 sub-images delivered out of order.
func seventeenRecords() []ImageRecord {
	tissue := []int{66, 13, 154, 58, 114, 1, 90, 42, 7, 130, 22, 101, 35, 77, 145, 3, 50}
	records := make([]ImageRecord, 0, len(tissue))
	for i, t := range tissue {
		raw := fmt.Sprintf(`{
			"id": %d,
			"section_number": %d,
			"image_file_name": "img_%d.aff",
			"x": 0, "y": 0,
			"downsampling": {
				"downsample_4": {"x": %d, "y": 10, "width": 100, "height": 80},
				"downsample_5": {"x": 1, "y": 5, "width": 50, "height": 40}
			}
		}`, 102000000+(i*37)%17*2, t, t, t)
		var rec ImageRecord
		Expect(json.Unmarshal([]byte(raw), &rec)).To(Succeed())
		records = append(records, rec)
	}
	return records
}

var _ = Describe("Index", func() {
	var (
		logs *logging.Recorder
		idx  *Index
	)

	BeforeEach(func() {
		logs = logging.NewRecorder()
		var err error
		idx, err = NewIndex(275693, seventeenRecords(), logs)
		Expect(err).NotTo(HaveOccurred())
	})

	Context("with a batch of 17 sub-images", func() {
		It("returns the tissue indices sorted and unique", func() {
			indices := idx.TissueIndices()
			Expect(indices).To(HaveLen(17))
			Expect(indices).To(Equal([]int{1, 3, 7, 13, 22, 35, 42, 50, 58, 66, 77, 90, 101, 114, 130, 145, 154}))
		})

		It("returns the sub-image ids sorted and unique", func() {
			ids := idx.SubImageIDs()
			Expect(ids).To(HaveLen(17))
			for i := 1; i < len(ids); i++ {
				Expect(ids[i]).To(BeNumerically(">", ids[i-1]))
			}
		})

		It("does not expose its internal slices", func() {
			indices := idx.TissueIndices()
			indices[0] = -1
			Expect(idx.TissueIndices()[0]).To(Equal(1))
		})
	})

	Context("lookups", func() {
		It("finds a record by tissue index", func() {
			lookup := idx.ByTissueIndex(154)
			Expect(lookup.Found()).To(BeTrue())
			rec, ok := lookup.Record()
			Expect(ok).To(BeTrue())
			Expect(rec.TissueIndex).To(Equal(154))
			Expect(rec.ImageFileName).To(Equal("img_154.aff"))
			Expect(lookup.NotFound()).To(BeNil())
			Expect(logs.Warnings()).To(BeEmpty())
		})

		It("is symmetric between sub-image and tissue index", func() {
			for _, id := range idx.SubImageIDs() {
				tissueIndex, ok := idx.TissueIndexOf(id)
				Expect(ok).To(BeTrue())

				bySub, _ := idx.BySubImage(id).Record()
				byTissue, _ := idx.ByTissueIndex(tissueIndex).Record()
				Expect(bySub).To(Equal(byTissue))
				Expect(bySub.SubImageID).To(Equal(id))

				back, ok := idx.SubImageOf(tissueIndex)
				Expect(ok).To(BeTrue())
				Expect(back).To(Equal(id))
			}
		})

		It("returns copies that callers may mutate", func() {
			rec, _ := idx.ByTissueIndex(13).Record()
			rec.Downsampling["downsample_4"] = CropBox{}
			rec.Attributes["image_file_name"] = "changed"
			delete(rec.Attributes["downsampling"].(map[string]any), "downsample_5")

			again, _ := idx.ByTissueIndex(13).Record()
			Expect(again.Downsampling["downsample_4"]).To(Equal(CropBox{X: 13, Y: 10, Width: 100, Height: 80}))
			Expect(again.Attributes["image_file_name"]).To(Equal("img_13.aff"))
			Expect(again.Attributes["downsampling"]).To(HaveKey("downsample_5"))
		})

		It("warns and returns not-found for an unknown tissue index", func() {
			lookup := idx.ByTissueIndex(999)
			Expect(lookup.Found()).To(BeFalse())
			_, ok := lookup.Record()
			Expect(ok).To(BeFalse())
			Expect(lookup.NotFound()).To(Equal(&NotFoundError{Kind: KindTissueIndex, ID: 999, BatchID: 275693}))
			Expect(logs.HasWarning("tissue_index 999 does not exist in section_data_set_275693")).To(BeTrue())
		})

		It("warns and returns not-found for an unknown sub-image", func() {
			lookup := idx.BySubImage(999)
			Expect(lookup.Found()).To(BeFalse())
			Expect(lookup.NotFound().Kind).To(Equal(KindSubImage))
			Expect(logs.HasWarning("sub_image 999 does not exist")).To(BeTrue())

			_, ok := idx.TissueIndexOf(999)
			Expect(ok).To(BeFalse())
		})
	})

	Context("construction", func() {
		It("rejects a duplicate tissue index", func() {
			records := seventeenRecords()
			records[1].TissueIndex = records[0].TissueIndex
			_, err := NewIndex(1, records, logs)
			Expect(err).To(MatchError(ErrDuplicateIdentifier))
			Expect(err.Error()).To(ContainSubstring("tissue_index 66"))
		})

		It("rejects a duplicate sub-image id", func() {
			records := seventeenRecords()
			records[2].SubImageID = records[0].SubImageID
			_, err := NewIndex(1, records, logs)
			Expect(err).To(MatchError(ErrDuplicateIdentifier))
			Expect(err.Error()).To(ContainSubstring("sub_image"))
		})

		It("does not depend on input order", func() {
			records := seventeenRecords()
			rand.New(rand.NewSource(7)).Shuffle(len(records), func(i, j int) {
				records[i], records[j] = records[j], records[i]
			})
			shuffled, err := NewIndex(275693, records, logs)
			Expect(err).NotTo(HaveOccurred())
			Expect(shuffled.TissueIndices()).To(Equal(idx.TissueIndices()))
			Expect(shuffled.SubImageIDs()).To(Equal(idx.SubImageIDs()))
		})

		It("accepts an empty batch", func() {
			empty, err := NewIndex(5, nil, logs)
			Expect(err).NotTo(HaveOccurred())
			Expect(empty.Len()).To(Equal(0))
			Expect(empty.TissueIndices()).To(BeEmpty())
		})
	})
})
