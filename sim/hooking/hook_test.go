package hooking_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/babyworm/MQSim-CXL/sim/hooking"
)

var _ = Describe("HookableBase", func() {
	var (
		mockCtrl *gomock.Controller
		base     *hooking.HookableBase
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		base = &hooking.HookableBase{}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should invoke hooks in registration order", func() {
		first := NewMockHook(mockCtrl)
		second := NewMockHook(mockCtrl)
		base.AcceptHook(first)
		base.AcceptHook(second)

		ctx := hooking.HookCtx{Pos: &hooking.HookPos{Name: "P"}}
		gomock.InOrder(
			first.EXPECT().Func(ctx),
			second.EXPECT().Func(ctx),
		)

		base.InvokeHook(ctx)
		Expect(base.NumHooks()).To(Equal(2))
	})

	It("should panic on duplicated hooks", func() {
		hook := NewMockHook(mockCtrl)
		base.AcceptHook(hook)

		Expect(func() { base.AcceptHook(hook) }).To(Panic())
	})

	It("should accept function hooks", func() {
		count := 0
		base.AcceptHook(hooking.HookFunc(func(hooking.HookCtx) { count++ }))
		base.AcceptHook(hooking.HookFunc(func(hooking.HookCtx) { count++ }))

		base.InvokeHook(hooking.HookCtx{})

		Expect(count).To(Equal(2))
	})
})
