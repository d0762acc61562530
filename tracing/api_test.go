package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/babyworm/MQSim-CXL/sim/hooking"
)

var _ = Describe("Api", func() {
	var (
		mockCtrl *gomock.Controller
		domain   *MockNamedHookable
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		domain = NewMockNamedHookable(mockCtrl)
		domain.EXPECT().NumHooks().Return(1).AnyTimes()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should panic if ID is not given", func() {
		domain.EXPECT().Name().Return("domain").AnyTimes()
		Expect(func() {
			StartTask("", "123", domain, "kind", "what", nil)
		}).Should(Panic())
	})

	It("should be panic if domain is nil.", func() {
		Expect(func() {
			StartTask("id", "123", nil, "kind", "what", nil)
		}).Should(Panic())
	})

	It("should be panic if domain's name is empty.", func() {
		domain.EXPECT().Name().Return("").AnyTimes()
		Expect(func() {
			StartTask("id", "123", domain, "kind", "what", nil)
		}).Should(Panic())
	})

	It("should be panic if kind is empty.", func() {
		domain.EXPECT().Name().Return("domain").AnyTimes()
		Expect(func() {
			StartTask("id", "123", domain, "", "what", nil)
		}).Should(Panic())
	})

	It("should be panic if what is empty.", func() {
		domain.EXPECT().Name().Return("domain").AnyTimes()
		Expect(func() {
			StartTask("id", "123", domain, "kind", "", nil)
		}).Should(Panic())
	})

	It("should invoke the start hook with the task", func() {
		domain.EXPECT().Name().Return("domain").AnyTimes()
		domain.EXPECT().
			InvokeHook(gomock.Any()).
			Do(func(ctx hooking.HookCtx) {
				Expect(ctx.Pos).To(BeIdenticalTo(HookPosTaskStart))
				task := ctx.Item.(Task)
				Expect(task.ID).To(Equal("id"))
				Expect(task.ParentID).To(Equal("parent"))
				Expect(task.Where).To(Equal("domain"))
			})

		StartTask("id", "parent", domain, "kind", "what", nil)
	})

	It("should invoke the step hook", func() {
		domain.EXPECT().
			InvokeHook(gomock.Any()).
			Do(func(ctx hooking.HookCtx) {
				Expect(ctx.Pos).To(BeIdenticalTo(HookPosTaskStep))
				task := ctx.Item.(Task)
				Expect(task.Steps).To(HaveLen(1))
				Expect(task.Steps[0].What).To(Equal("hit"))
			})

		AddTaskStep("id", domain, "hit")
	})

	It("should invoke the end hook", func() {
		domain.EXPECT().
			InvokeHook(gomock.Any()).
			Do(func(ctx hooking.HookCtx) {
				Expect(ctx.Pos).To(BeIdenticalTo(HookPosTaskEnd))
				Expect(ctx.Item.(Task).ID).To(Equal("id"))
			})

		EndTask("id", domain)
	})
})

var _ = Describe("Api without hooks", func() {
	It("should not invoke anything", func() {
		mockCtrl := gomock.NewController(GinkgoT())
		defer mockCtrl.Finish()

		domain := NewMockNamedHookable(mockCtrl)
		domain.EXPECT().NumHooks().Return(0).AnyTimes()
		domain.EXPECT().Name().Return("domain").AnyTimes()

		StartTask("id", "", domain, "kind", "what", nil)
		AddTaskStep("id", domain, "hit")
		EndTask("id", domain)
	})
})
