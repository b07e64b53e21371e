package eventstream_test

import (
	"encoding/json"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reflex/pkg/eventstream"
)

var _ = Describe("Event", func() {
	It("stamps new events with an id, type and time", func() {
		event := eventstream.NewTurnCompletedEvent(
			eventstream.EventSource{Project: "/work/app", Model: "claude-sonnet-4", Hook: "stop"},
			eventstream.TurnSession{SessionID: "s1"},
			eventstream.TurnPatterns{Retrieved: []string{"pat-00000001", "pat-00000002"}, Applied: []string{"pat-00000001"}, Coverage: 0.5},
		)

		Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(event.EventType).To(Equal(eventstream.EventTypeTurnCompleted))
		_, err := uuid.Parse(event.EventID)
		Expect(err).NotTo(HaveOccurred())
		Expect(event.EmittedAt).NotTo(BeZero())
	})

	It("marshals TurnCompletedEvent with expected top-level keys", func() {
		event := eventstream.NewTurnCompletedEvent(
			eventstream.EventSource{Hook: "stop"},
			eventstream.TurnSession{SessionID: "s1"},
			eventstream.TurnPatterns{},
		)

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("source"))
		Expect(got).To(HaveKey("session"))
		Expect(got).To(HaveKey("patterns"))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.EventTypeTurnCompleted).To(Equal("reflex.turn.completed"))
		Expect(eventstream.ErrNilTurnEvent).To(MatchError("nil turn event"))
	})
})
