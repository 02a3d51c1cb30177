package usecase

import (
	"context"
	"errors"
	"testing"

	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/user/market-intel-service/internal/entity"
)

func TestJobLifecycle(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	uc := NewJobManagerUseCase(newMemJobRepo(), zap.NewNop())

	job, err := uc.Create(ctx, "user-1", entity.KeywordRun{Keyword: "abstract"})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(job.Status).To(Equal(entity.JobPending))
	g.Expect(job.Keyword).To(HaveValue(Equal("abstract")))
	g.Expect(job.SellerName).To(BeNil())
	g.Expect(job.StartedAt).To(BeNil())

	// Progress and completion are rejected before the job runs.
	g.Expect(errors.Is(uc.UpdateProgress(ctx, job.ID, 1, 1), entity.ErrInvalidTransition)).To(BeTrue())
	g.Expect(errors.Is(uc.Complete(ctx, job.ID, 1), entity.ErrInvalidTransition)).To(BeTrue())

	g.Expect(uc.MarkRunning(ctx, job.ID)).To(Succeed())
	g.Expect(errors.Is(uc.MarkRunning(ctx, job.ID), entity.ErrInvalidTransition)).To(BeTrue())

	g.Expect(uc.UpdateProgress(ctx, job.ID, 1, 40)).To(Succeed())
	g.Expect(uc.UpdateProgress(ctx, job.ID, 2, 75)).To(Succeed())
	g.Expect(errors.Is(uc.UpdateProgress(ctx, job.ID, 2, 10), entity.ErrInvalidTransition)).To(BeTrue())

	g.Expect(uc.Complete(ctx, job.ID, 75)).To(Succeed())

	done, err := uc.GetByID(ctx, job.ID)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(done.Status).To(Equal(entity.JobCompleted))
	g.Expect(done.StartedAt).NotTo(BeNil())
	g.Expect(done.CompletedAt).NotTo(BeNil())
	g.Expect(done.ErrorMessage).To(BeNil())
	g.Expect(done.ItemsFound).To(Equal(75))
	g.Expect(done.PagesScraped).To(Equal(2))

	// Terminal jobs are immutable.
	g.Expect(errors.Is(uc.Fail(ctx, job.ID, "late failure"), entity.ErrInvalidTransition)).To(BeTrue())
	g.Expect(errors.Is(uc.Complete(ctx, job.ID, 999), entity.ErrInvalidTransition)).To(BeTrue())
	g.Expect(errors.Is(uc.UpdateProgress(ctx, job.ID, 3, 100), entity.ErrInvalidTransition)).To(BeTrue())

	after, _ := uc.GetByID(ctx, job.ID)
	g.Expect(after).To(Equal(done))
}

func TestJobFailRecordsMessage(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	uc := NewJobManagerUseCase(newMemJobRepo(), zap.NewNop())

	job, err := uc.Create(ctx, "user-1", entity.SellerRun{SellerName: "gallery_42"})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(job.Mode).To(Equal(entity.ModeActive))
	g.Expect(job.SellerName).To(HaveValue(Equal("gallery_42")))
	g.Expect(job.Keyword).To(BeNil())

	g.Expect(uc.MarkRunning(ctx, job.ID)).To(Succeed())
	g.Expect(uc.Fail(ctx, job.ID, "search returned status 503")).To(Succeed())

	failed, _ := uc.GetByID(ctx, job.ID)
	g.Expect(failed.Status).To(Equal(entity.JobFailed))
	g.Expect(failed.ErrorMessage).To(HaveValue(Equal("search returned status 503")))
	g.Expect(errors.Is(uc.Fail(ctx, job.ID, "again"), entity.ErrInvalidTransition)).To(BeTrue())
}

func TestJobOwnership(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()
	uc := NewJobManagerUseCase(newMemJobRepo(), zap.NewNop())

	job, _ := uc.Create(ctx, "owner", entity.KeywordRun{Keyword: "floral"})

	got, err := uc.GetForUser(ctx, job.ID, "owner")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(got.ID).To(Equal(job.ID))

	_, err = uc.GetForUser(ctx, job.ID, "intruder")
	g.Expect(errors.Is(err, entity.ErrNotFound)).To(BeTrue())

	_, err = uc.GetByID(ctx, "not-a-uuid")
	g.Expect(errors.Is(err, entity.ErrNotFound)).To(BeTrue())

	err = uc.MarkRunning(ctx, "7f1c1f0e-8a7f-4c36-9d53-0d5b8f0c6a11")
	g.Expect(errors.Is(err, entity.ErrNotFound)).To(BeTrue())
}

func TestJobCreateRequiresUser(t *testing.T) {
	g := NewWithT(t)
	uc := NewJobManagerUseCase(newMemJobRepo(), zap.NewNop())
	_, err := uc.Create(context.Background(), " ", entity.KeywordRun{Keyword: "x"})
	g.Expect(errors.Is(err, entity.ErrUnauthorized)).To(BeTrue())
}
