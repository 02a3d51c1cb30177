package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/user/market-intel-service/internal/entity"
	"github.com/user/market-intel-service/internal/signal"
	"github.com/user/market-intel-service/internal/worker"
)

func page(prefix string, n int) []*entity.RawListing {
	out := make([]*entity.RawListing, n)
	for i := range out {
		out[i] = &entity.RawListing{
			ExternalID: fmt.Sprintf("%s-%d", prefix, i),
			Title:      fmt.Sprintf("Abstract acrylic painting %d 24x36 in", i),
			Price:      float64(100 + i),
			Currency:   "USD",
			ItemURL:    fmt.Sprintf("https://market.example.com/itm/%s-%d", prefix, i),
		}
	}
	return out
}

var _ = Describe("OrchestratorUseCase", func() {
	var (
		ctx       context.Context
		jobRepo   *memJobRepo
		jobs      *JobManagerUseCase
		listings  *memListingRepo
		collector *fakeCollector
		tokens    fakeTokens
		enricher  *fakeEnricher
		lock      *memRunLock
		pool      *worker.Pool
		cfg       OrchestratorConfig
	)

	newOrchestrator := func() *OrchestratorUseCase {
		return NewOrchestratorUseCase(jobs, collector, tokens, signal.NewParser(), listings, enricher, lock, pool, cfg, zap.NewNop())
	}

	BeforeEach(func() {
		ctx = context.Background()
		jobRepo = newMemJobRepo()
		jobs = NewJobManagerUseCase(jobRepo, zap.NewNop())
		listings = newMemListingRepo()
		collector = &fakeCollector{pages: map[int][]*entity.RawListing{}}
		tokens = fakeTokens{}
		enricher = &fakeEnricher{desc: "<p>Signed original</p>"}
		lock = newMemRunLock()
		pool = worker.NewPool("runs", 2, zap.NewNop())
		pool.Start()
		cfg = OrchestratorConfig{PageSize: 3, MaxPages: 5, RunTimeout: 5 * time.Second}
	})

	AfterEach(func() {
		pool.Stop()
	})

	Describe("RunSync", func() {
		It("pages until a short page and records items found", func() {
			collector.pages[1] = page("a", 3)
			collector.pages[2] = page("b", 3)
			collector.pages[3] = page("c", 1)

			job, err := newOrchestrator().RunSync(ctx, "user-1", entity.SellerRun{SellerName: "gallery_42"})
			Expect(err).NotTo(HaveOccurred())
			Expect(job.Status).To(Equal(entity.JobCompleted))
			Expect(job.PagesScraped).To(Equal(3))
			Expect(job.ItemsFound).To(Equal(7))
			Expect(collector.calls()).To(Equal(3))

			n, _ := listings.CountByJob(ctx, job.ID)
			Expect(job.ItemsFound).To(Equal(n))
			for _, row := range listings.rows {
				Expect(row.UserID).To(Equal("user-1"))
				Expect(row.Mode).To(Equal(entity.ModeActive))
				Expect(row.SearchTerm).To(Equal("gallery_42"))
			}
			Expect(lock.count()).To(BeZero())
		})

		It("stops at the page cap", func() {
			cfg.MaxPages = 2
			for p := 1; p <= 4; p++ {
				collector.pages[p] = page(fmt.Sprintf("p%d", p), 3)
			}
			job, err := newOrchestrator().RunSync(ctx, "user-1", entity.KeywordRun{Keyword: "abstract"})
			Expect(err).NotTo(HaveOccurred())
			Expect(job.Status).To(Equal(entity.JobCompleted))
			Expect(job.PagesScraped).To(Equal(2))
			Expect(job.ItemsFound).To(Equal(6))
			Expect(collector.calls()).To(Equal(2))
		})

		It("keeps paging when a full page had malformed items dropped", func() {
			cfg.PageSize = 2
			collector.pages[1] = page("a", 1)
			collector.dropped = map[int]int{1: 1}
			collector.pages[2] = page("b", 1)

			job, err := newOrchestrator().RunSync(ctx, "user-1", entity.KeywordRun{Keyword: "abstract"})
			Expect(err).NotTo(HaveOccurred())
			Expect(job.Status).To(Equal(entity.JobCompleted))
			Expect(job.PagesScraped).To(Equal(2))
			Expect(job.ItemsFound).To(Equal(2))
			Expect(collector.calls()).To(Equal(2))
		})

		It("counts only rows actually inserted", func() {
			dup := page("same", 3)
			collector.pages[1] = dup
			collector.pages[2] = dup[:2]

			job, err := newOrchestrator().RunSync(ctx, "user-1", entity.KeywordRun{Keyword: "abstract"})
			Expect(err).NotTo(HaveOccurred())
			Expect(job.ItemsFound).To(Equal(3))
		})

		It("skips items whose signal cannot be parsed", func() {
			items := page("x", 2)
			items[1].Title = "   "
			collector.pages[1] = items

			job, err := newOrchestrator().RunSync(ctx, "user-1", entity.KeywordRun{Keyword: "abstract"})
			Expect(err).NotTo(HaveOccurred())
			Expect(job.Status).To(Equal(entity.JobCompleted))
			Expect(job.ItemsFound).To(Equal(1))
			Expect(listings.signals).To(HaveLen(1))
		})

		It("fails the job on a collector error and keeps earlier pages", func() {
			collector.pages[1] = page("a", 3)
			collector.errAt = 2
			collector.err = fmt.Errorf("%w: search returned status 503", entity.ErrExternalService)

			job, err := newOrchestrator().RunSync(ctx, "user-1", entity.KeywordRun{Keyword: "abstract"})
			Expect(err).NotTo(HaveOccurred())
			Expect(job.Status).To(Equal(entity.JobFailed))
			Expect(job.ErrorMessage).To(HaveValue(ContainSubstring("status 503")))
			Expect(job.PagesScraped).To(Equal(1))
			Expect(job.ItemsFound).To(Equal(3))
			Expect(listings.rows).To(HaveLen(3))
		})

		It("fails the job on a storage error", func() {
			collector.pages[1] = page("a", 3)
			listings.failOn = 1
			listings.saveErr = errStorage

			job, err := newOrchestrator().RunSync(ctx, "user-1", entity.KeywordRun{Keyword: "abstract"})
			Expect(err).NotTo(HaveOccurred())
			Expect(job.Status).To(Equal(entity.JobFailed))
			Expect(job.ErrorMessage).To(HaveValue(ContainSubstring("connection reset")))
		})

		It("fails before fetching when credentials are rejected", func() {
			tokens = fakeTokens{err: fmt.Errorf("%w: invalid_client", entity.ErrUnauthorized)}
			collector.pages[1] = page("a", 3)

			job, err := newOrchestrator().RunSync(ctx, "user-1", entity.KeywordRun{Keyword: "abstract"})
			Expect(err).NotTo(HaveOccurred())
			Expect(job.Status).To(Equal(entity.JobFailed))
			Expect(job.StartedAt).NotTo(BeNil())
			Expect(collector.calls()).To(BeZero())
			Expect(listings.rows).To(BeEmpty())
		})

		It("enriches empty descriptions when enabled", func() {
			cfg.EnrichDescriptions = true
			collector.pages[1] = page("a", 1)

			_, err := newOrchestrator().RunSync(ctx, "user-1", entity.KeywordRun{Keyword: "abstract"})
			Expect(err).NotTo(HaveOccurred())
			Expect(enricher.calls).To(Equal(1))
			Expect(listings.rows[0].Description).To(Equal("Signed original"))
		})

		It("treats enrichment failures as non-fatal", func() {
			cfg.EnrichDescriptions = true
			enricher.err = errors.New("page load timeout")
			collector.pages[1] = page("a", 2)

			job, err := newOrchestrator().RunSync(ctx, "user-1", entity.KeywordRun{Keyword: "abstract"})
			Expect(err).NotTo(HaveOccurred())
			Expect(job.Status).To(Equal(entity.JobCompleted))
			Expect(job.ItemsFound).To(Equal(2))
		})

		It("rejects a second run for the same search while one is active", func() {
			_, held, _ := lock.Acquire(ctx, runLockKey("user-1", entity.KeywordRun{Keyword: "Abstract"}), time.Minute)
			Expect(held).To(BeTrue())

			_, err := newOrchestrator().RunSync(ctx, "user-1", entity.KeywordRun{Keyword: "abstract"})
			Expect(errors.Is(err, entity.ErrRunInProgress)).To(BeTrue())
			Expect(jobRepo.jobs).To(BeEmpty())
		})
		It("does not release a lock taken over by a later run", func() {
			key := runLockKey("user-1", entity.KeywordRun{Keyword: "abstract"})
			collector.pages[1] = page("a", 1)
			enricher.desc = ""
			cfg.EnrichDescriptions = true
			orch := newOrchestrator()

			// The first run's lock expires mid-run and another holder takes the key.
			var successor string
			enricher.onFetch = func() {
				lock.expire(key)
				successor, _, _ = lock.Acquire(ctx, key, time.Minute)
			}

			job, err := orch.RunSync(ctx, "user-1", entity.KeywordRun{Keyword: "abstract"})
			Expect(err).NotTo(HaveOccurred())
			Expect(job.Status).To(Equal(entity.JobCompleted))
			Expect(successor).NotTo(BeEmpty())
			Expect(lock.count()).To(Equal(1))

			_, err = orch.RunSync(ctx, "user-1", entity.KeywordRun{Keyword: "abstract"})
			Expect(errors.Is(err, entity.ErrRunInProgress)).To(BeTrue())
		})
	})

	Describe("Start", func() {
		It("returns a pending job and completes it in the background", func() {
			collector.pages[1] = page("a", 2)

			job, err := newOrchestrator().Start(ctx, "user-1", entity.KeywordRun{Keyword: "abstract"})
			Expect(err).NotTo(HaveOccurred())
			Expect(job.Status).To(Equal(entity.JobPending))

			Eventually(func() entity.JobStatus {
				j, _ := jobs.GetByID(ctx, job.ID)
				return j.Status
			}).Should(Equal(entity.JobCompleted))
			Eventually(lock.count).Should(BeZero())

			done, _ := jobs.GetByID(ctx, job.ID)
			Expect(done.ItemsFound).To(Equal(2))
		})
	})
})
