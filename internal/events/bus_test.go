package events

import "testing"

func TestPublishReachesSubscribers(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe(TopicSession, func(ev Event) { got = append(got, ev) })

	bus.Publish(Event{Topic: TopicSession, Payload: SessionStarted{StaffID: "s1"}})

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	payload, ok := got[0].Payload.(SessionStarted)
	if !ok || payload.StaffID != "s1" {
		t.Fatalf("unexpected payload %#v", got[0].Payload)
	}
	if got[0].At.IsZero() {
		t.Fatal("expected At to be stamped")
	}
}

func TestTopicsAreIsolated(t *testing.T) {
	bus := NewBus()

	sessions := 0
	bus.Subscribe(TopicSession, func(Event) { sessions++ })
	bus.Subscribe(TopicConnectivity, func(Event) {
		t.Fatal("connectivity handler must not see session events")
	})

	bus.Publish(Event{Topic: TopicSession})
	if sessions != 1 {
		t.Fatalf("expected 1 session event, got %d", sessions)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()

	calls := 0
	unsub := bus.Subscribe(TopicNotifications, func(Event) { calls++ })

	bus.Publish(Event{Topic: TopicNotifications})
	unsub()
	bus.Publish(Event{Topic: TopicNotifications})

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestHandlersRunInSubscriptionOrder(t *testing.T) {
	bus := NewBus()

	var order []int
	for i := 0; i < 8; i++ {
		i := i
		bus.Subscribe(TopicSession, func(Event) { order = append(order, i) })
	}

	bus.Publish(Event{Topic: TopicSession})

	if len(order) != 8 {
		t.Fatalf("expected 8 calls, got %d", len(order))
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("handlers ran out of order: %v", order)
		}
	}
}

func TestCollectionTopicPerCollection(t *testing.T) {
	if CollectionTopic("customers") == CollectionTopic("staff_accounts") {
		t.Fatal("collection topics must differ per collection")
	}
}
