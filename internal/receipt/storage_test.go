package receipt

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		basePath string
		storage  *LocalStorage
	)

	BeforeEach(func() {
		basePath = filepath.Join(GinkgoT().TempDir(), "archive")
		var err error
		storage, err = NewLocalStorage(basePath)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should create the archive directory", func() {
		info, err := os.Stat(basePath)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
	})

	It("should round-trip image bytes", func() {
		data := []byte("fake image bytes")
		Expect(storage.Save("scan-1", data)).To(Succeed())

		got, err := storage.Get("scan-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(data))
	})

	It("should error on a missing file", func() {
		_, err := storage.Get("nope")
		Expect(err).To(HaveOccurred())
	})

	It("should delete archived bytes", func() {
		Expect(storage.Save("scan-1", []byte("x"))).To(Succeed())
		Expect(storage.Delete("scan-1")).To(Succeed())

		_, err := storage.Get("scan-1")
		Expect(err).To(HaveOccurred())
	})

	It("should keep IDs inside the archive directory", func() {
		Expect(storage.Save("../escape", []byte("x"))).To(Succeed())

		_, err := os.Stat(filepath.Join(basePath, "escape.img"))
		Expect(err).NotTo(HaveOccurred())
	})
})
