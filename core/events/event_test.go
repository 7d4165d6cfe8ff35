package events

import (
	"testing"

	"portalchain/core/types"
)

func TestBufferFlushAndDiscard(t *testing.T) {
	var buf Buffer
	buf.Emit(Wrap(&types.Event{Type: "portal.staked"}))
	buf.Emit(nil)
	buf.Discard()
	if got := buf.Flush(nil); len(got) != 0 {
		t.Fatalf("discarded events flushed: %v", got)
	}

	rec := &Recorder{}
	buf.Emit(Wrap(&types.Event{Type: "portal.staked"}))
	buf.Emit(Wrap(&types.Event{Type: "portal.unstaked"}))
	flushed := buf.Flush(rec)
	if len(flushed) != 2 {
		t.Fatalf("expected 2 flushed events, got %d", len(flushed))
	}
	if types := rec.Types(); len(types) != 2 || types[0] != "portal.staked" || types[1] != "portal.unstaked" {
		t.Fatalf("unexpected recorder order: %v", types)
	}
	if again := buf.Flush(rec); len(again) != 0 {
		t.Fatalf("buffer not cleared after flush")
	}
}

func TestFanoutSkipsNilTargets(t *testing.T) {
	first, second := &Recorder{}, &Recorder{}
	fan := Fanout{first, nil, second}
	fan.Emit(Wrap(&types.Event{Type: "liquidity.converted"}))
	if len(first.Events()) != 1 || len(second.Events()) != 1 {
		t.Fatalf("fanout did not reach every emitter")
	}
	payload, ok := first.Events()[0].(Payload)
	if !ok || payload.Event().Type != "liquidity.converted" {
		t.Fatalf("payload lost through fanout")
	}
}
