package timing

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type sampleEvent struct {
	*EventBase
	order int
}

func newSampleEvent(t VTime, order int) sampleEvent {
	return sampleEvent{EventBase: NewEventBase(t, nil), order: order}
}

var _ = Describe("EventQueueImpl", func() {
	var queue *EventQueueImpl

	BeforeEach(func() {
		queue = NewEventQueue()
	})

	It("should pop in order", func() {
		r := rand.New(rand.NewSource(1))
		numEvents := 100
		for i := 0; i < numEvents; i++ {
			queue.Push(newSampleEvent(VTime(r.Intn(1000)), i))
		}

		now := VTime(0)
		for i := 0; i < numEvents; i++ {
			event := queue.Pop()
			Expect(event.Time()).To(BeNumerically(">=", now))
			now = event.Time()
		}
	})

	It("should pop same-time events in push order", func() {
		queue.Push(newSampleEvent(10, 0))
		queue.Push(newSampleEvent(5, 1))
		queue.Push(newSampleEvent(10, 2))
		queue.Push(newSampleEvent(10, 3))

		Expect(queue.Pop().(sampleEvent).order).To(Equal(1))
		Expect(queue.Pop().(sampleEvent).order).To(Equal(0))
		Expect(queue.Pop().(sampleEvent).order).To(Equal(2))
		Expect(queue.Pop().(sampleEvent).order).To(Equal(3))
		Expect(queue.Len()).To(Equal(0))
	})

	It("should peek without removing", func() {
		Expect(queue.Peek()).To(BeNil())

		queue.Push(newSampleEvent(3, 0))

		Expect(queue.Peek().Time()).To(Equal(VTime(3)))
		Expect(queue.Len()).To(Equal(1))
	})
})
