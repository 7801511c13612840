package receipt

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-ocr/internal/extraction"
)

var _ = Describe("BoltDB", func() {
	var db *BoltDB

	BeforeEach(func() {
		path := filepath.Join(GinkgoT().TempDir(), "test.db")
		var err error
		db, err = NewBoltDB(path)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(db.Close()).To(Succeed())
	})

	Describe("scans", func() {
		var scan *Scan

		BeforeEach(func() {
			scan = &Scan{
				ID:     "scan-1",
				Source: "https://example.com/receipt.png",
				Text:   "SUPERMART\nTotal: $45.67",
				Fields: extraction.Fields{
					extraction.FieldTotalAmount:  "45.67",
					extraction.FieldMerchantName: "SUPERMART",
				},
				CreatedAt: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
			}
		})

		It("should round-trip a scan", func() {
			Expect(db.SaveScan(scan)).To(Succeed())

			got, err := db.GetScan("scan-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Source).To(Equal(scan.Source))
			Expect(got.Text).To(Equal(scan.Text))
			Expect(got.Fields).To(Equal(scan.Fields))
			Expect(got.CreatedAt.Equal(scan.CreatedAt)).To(BeTrue())
		})

		It("should error on an unknown ID", func() {
			_, err := db.GetScan("nope")
			Expect(err).To(HaveOccurred())
		})

		It("should list all saved scans", func() {
			Expect(db.SaveScan(scan)).To(Succeed())
			Expect(db.SaveScan(&Scan{ID: "scan-2", Source: "other"})).To(Succeed())

			scans, err := db.ListScans()
			Expect(err).NotTo(HaveOccurred())
			Expect(scans).To(HaveLen(2))
		})

		It("should return an empty list when nothing is saved", func() {
			scans, err := db.ListScans()
			Expect(err).NotTo(HaveOccurred())
			Expect(scans).To(BeEmpty())
		})

		It("should delete a scan", func() {
			Expect(db.SaveScan(scan)).To(Succeed())
			Expect(db.DeleteScan("scan-1")).To(Succeed())

			_, err := db.GetScan("scan-1")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("recognition cache", func() {
		It("should return nil on a miss", func() {
			result, err := db.GetCached("deadbeef")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(BeNil())
		})

		It("should round-trip a cached result", func() {
			cached := &CachedResult{
				Text:   "SUPERMART",
				Fields: extraction.Fields{extraction.FieldMerchantName: "SUPERMART"},
			}
			Expect(db.PutCached("deadbeef", cached)).To(Succeed())

			got, err := db.GetCached("deadbeef")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(cached))
		})

		It("should keep cache entries separate from scans", func() {
			Expect(db.PutCached("scan-1", &CachedResult{Text: "cached"})).To(Succeed())
			_, err := db.GetScan("scan-1")
			Expect(err).To(HaveOccurred())
		})
	})
})
