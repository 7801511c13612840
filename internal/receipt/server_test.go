package receipt

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-ocr/internal/scanning"
	"github.com/zombor/receipt-ocr/internal/source"
)

var _ = Describe("Server", func() {
	var (
		db         *mockDB
		resolver   *mockResolver
		engine     *mockEngine
		service    *Service
		server     *Server
		testServer *httptest.Server
	)

	postJSON := func(path string, body any) *http.Response {
		data, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.Post(testServer.URL+path, "application/json", bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	BeforeEach(func() {
		db = newMockDB()
		resolver = newMockResolver()
		engine = &mockEngine{text: "SUPERMART\nTotal: $45.67"}
		service = NewServiceWithDeps(
			db, resolver, engine, newMockStorage(),
			Options{BatchWorkers: 2},
			&mockIDGenerator{}, &mockTimeSource{now: time.Now()},
		)
		server = NewServerWithMux(service, "test", http.NewServeMux())
		// httptest serves any number of requests, so specs that seed
		// state with one request before asserting on another stay happy
		testServer = httptest.NewServer(server)

		resolver.data["https://example.com/receipt.png"] = pngBytes(40)
	})

	AfterEach(func() {
		if testServer != nil {
			testServer.Close()
		}
	})

	Describe("handleScan", func() {
		When("the image processes cleanly", func() {
			It("should return the text and fields with success true", func() {
				resp := postJSON("/api/ocr", scanRequest{ImageURL: "https://example.com/receipt.png"})
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var body scanResponse
				Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
				Expect(body.Success).To(BeTrue())
				Expect(body.Text).To(ContainSubstring("SUPERMART"))
				Expect(body.Fields).To(HaveKeyWithValue("total_amount", "45.67"))
			})

			It("should report cache status in the X-Cache header", func() {
				resp := postJSON("/api/ocr", scanRequest{ImageURL: "https://example.com/receipt.png"})
				resp.Body.Close()
				Expect(resp.Header.Get("X-Cache")).To(Equal("MISS"))

				resp = postJSON("/api/ocr", scanRequest{ImageURL: "https://example.com/receipt.png"})
				resp.Body.Close()
				Expect(resp.Header.Get("X-Cache")).To(Equal("HIT"))
			})
		})

		When("the request body is not JSON", func() {
			It("should return 400 with an error envelope", func() {
				resp, err := http.Post(testServer.URL+"/api/ocr", "application/json", bytes.NewReader([]byte("{")))
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				var body errorResponse
				Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
				Expect(body.Success).To(BeFalse())
			})
		})

		When("imageUrl is missing", func() {
			It("should return 400", func() {
				resp := postJSON("/api/ocr", scanRequest{})
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("the reference cannot be resolved", func() {
			It("should return 400 for a decode failure", func() {
				resolver.errs["garbage"] = &source.DecodeError{Reason: "invalid base64"}
				resp := postJSON("/api/ocr", scanRequest{ImageURL: "garbage"})
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})

			It("should return 400 for a fetch failure", func() {
				resolver.errs["https://example.com/gone.png"] = &source.FetchError{
					URL: "https://example.com/gone.png",
					Err: errors.New("404"),
				}
				resp := postJSON("/api/ocr", scanRequest{ImageURL: "https://example.com/gone.png"})
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})

		When("the engine fails", func() {
			It("should return 500", func() {
				engine.err = &scanning.RecognitionError{Engine: "tesseract", Err: errors.New("no text")}
				resp := postJSON("/api/ocr", scanRequest{ImageURL: "https://example.com/receipt.png"})
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

				var body errorResponse
				Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
				Expect(body.Success).To(BeFalse())
				Expect(body.Error).To(ContainSubstring("tesseract"))
			})
		})
	})

	Describe("handleScanBatch", func() {
		BeforeEach(func() {
			resolver.anyData = pngBytes(40)
		})

		It("should return per-item outcomes under a successful envelope", func() {
			resolver.errs["bad"] = &source.DecodeError{Reason: "invalid base64"}
			resp := postJSON("/api/ocr/batch", batchRequest{ImageURLs: []string{"a.png", "bad", "c.png"}})
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body batchResponse
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body.Success).To(BeTrue())
			Expect(body.Results).To(HaveLen(3))

			Expect(body.Results[0].ImageURL).To(Equal("a.png"))
			Expect(body.Results[0].Success).To(BeTrue())
			Expect(body.Results[0].Text).To(ContainSubstring("SUPERMART"))

			Expect(body.Results[1].ImageURL).To(Equal("bad"))
			Expect(body.Results[1].Success).To(BeFalse())
			Expect(body.Results[1].Error).NotTo(BeEmpty())

			Expect(body.Results[2].Success).To(BeTrue())
		})

		When("imageUrls is empty", func() {
			It("should return 400", func() {
				resp := postJSON("/api/ocr/batch", batchRequest{})
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("scan history endpoints", func() {
		BeforeEach(func() {
			resp := postJSON("/api/ocr", scanRequest{ImageURL: "https://example.com/receipt.png"})
			resp.Body.Close()
		})

		It("should list scans", func() {
			resp, err := http.Get(testServer.URL + "/api/scans")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var scans []*Scan
			Expect(json.NewDecoder(resp.Body).Decode(&scans)).To(Succeed())
			Expect(scans).To(HaveLen(1))
		})

		It("should get a scan by ID", func() {
			resp, err := http.Get(testServer.URL + "/api/scans/scan-1")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var scan Scan
			Expect(json.NewDecoder(resp.Body).Decode(&scan)).To(Succeed())
			Expect(scan.Source).To(Equal("https://example.com/receipt.png"))
		})

		It("should return 404 for an unknown scan", func() {
			resp, err := http.Get(testServer.URL + "/api/scans/nope")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("should return the archived image", func() {
			resp, err := http.Get(testServer.URL + "/api/scans/scan-1/image")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			data, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal(pngBytes(40)))
		})

		It("should delete a scan", func() {
			req, err := http.NewRequest("DELETE", testServer.URL+"/api/scans/scan-1", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			resp, err = http.Get(testServer.URL + "/api/scans/scan-1")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("handleHealth", func() {
		It("should report the service name and version", func() {
			resp, err := http.Get(testServer.URL + "/health")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body map[string]string
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body["status"]).To(Equal("healthy"))
			Expect(body["service"]).To(Equal("receipt-ocr"))
			Expect(body["version"]).To(Equal("test"))
		})
	})

	Describe("CORS", func() {
		It("should answer preflight requests through the middleware", func() {
			srv := httptest.NewServer(server.Handler())
			defer srv.Close()

			req, err := http.NewRequest("OPTIONS", srv.URL+"/api/ocr", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})
})
