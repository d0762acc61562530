package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/babyworm/MQSim-CXL/sim/timing"
	"github.com/babyworm/MQSim-CXL/trafficgen"
)

type sampleComponent struct {
	name  string
	stats trafficgen.Statistics
}

func (c *sampleComponent) Name() string {
	return c.name
}

func (c *sampleComponent) Statistics() trafficgen.Statistics {
	return c.stats
}

type silentComponent struct{}

func (c *silentComponent) Name() string {
	return "Silent"
}

var _ = Describe("Monitor", func() {
	var (
		m      *Monitor
		engine *timing.SerialEngine
		comp   *sampleComponent
	)

	get := func(url string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		m.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))

		return rec
	}

	BeforeEach(func() {
		m = NewMonitor()
		engine = timing.NewSerialEngine()
		comp = &sampleComponent{
			name: "Gen",
			stats: trafficgen.Statistics{
				CompletedRequests: 4,
				CacheHits:         3,
				CacheMisses:       1,
			},
		}

		m.RegisterTimeTeller(engine)
		m.RegisterComponent(comp)
		m.RegisterComponent(&silentComponent{})
	})

	It("should fall back to a random port for reserved ports", func() {
		m.WithPortNumber(80)

		Expect(m.portNumber).To(Equal(0))
	})

	It("should report the simulated time", func() {
		m.Do(func() {
			Expect(engine.AdvanceTo(1500)).To(Succeed())
		})

		rec := get("/api/now")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"now":1500}`))
	})

	It("should list components", func() {
		rec := get("/api/list_components")

		Expect(rec.Body.String()).To(MatchJSON(`["Gen","Silent"]`))
	})

	It("should report statistics", func() {
		rec := get("/api/stats/Gen")
		Expect(rec.Code).To(Equal(http.StatusOK))

		rsp := map[string]any{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp["CacheHits"]).To(BeNumerically("==", 3))
		Expect(rsp["hit_rate"]).To(BeNumerically("~", 0.75))
	})

	It("should return 404 for unknown components", func() {
		rec := get("/api/stats/Nobody")

		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should reject statistics of components that have none", func() {
		rec := get("/api/stats/Silent")

		Expect(rec.Code).To(Equal(http.StatusMethodNotAllowed))
	})

	It("should serialize component details", func() {
		rec := get("/api/component/Gen")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))
	})

	It("should track progress bars", func() {
		bar := m.CreateProgressBar("requests", 10)
		bar.IncrementInProgress(4)
		bar.MoveInProgressToFinished(3)

		rec := get("/api/progress")
		rsp := []progressRsp{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())

		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].Name).To(Equal("requests"))
		Expect(rsp[0].Total).To(Equal(uint64(10)))
		Expect(rsp[0].Finished).To(Equal(uint64(3)))
		Expect(rsp[0].InProgress).To(Equal(uint64(1)))

		m.CompleteProgressBar(bar)

		rec = get("/api/progress")
		Expect(rec.Body.String()).To(MatchJSON(`[]`))
	})

	It("should report process resources", func() {
		rec := get("/api/resource")

		rsp := resourceRsp{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should serve the web page", func() {
		rec := get("/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("<!DOCTYPE html>"))
	})
})
