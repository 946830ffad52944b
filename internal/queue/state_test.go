package queue

import "testing"

func TestMutatePausedNeverProcessing(t *testing.T) {
	s := NewState()
	got := s.Mutate(func(p *ProcessingStatus) {
		p.IsProcessing = true
		p.IsPaused = true
	})
	if got.IsProcessing {
		t.Fatal("expected paused state to clear processing")
	}
}

func TestMutateClampsProgress(t *testing.T) {
	s := NewState()
	if got := s.Mutate(func(p *ProcessingStatus) { p.Progress = 140 }); got.Progress != 100 {
		t.Fatalf("expected 100, got %d", got.Progress)
	}
	if got := s.Mutate(func(p *ProcessingStatus) { p.Progress = -3 }); got.Progress != 0 {
		t.Fatalf("expected 0, got %d", got.Progress)
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	s := NewState()
	s.Mutate(func(p *ProcessingStatus) {
		p.Queue = append(p.Queue, Item{ID: 1, Status: StatusPending})
	})
	snap := s.Snapshot()
	snap.Queue[0].Status = StatusFailed
	if item, _ := s.Item(1); item.Status != StatusPending {
		t.Fatalf("snapshot mutation leaked into state: %s", item.Status)
	}
}

func TestSubscribeAndCancel(t *testing.T) {
	s := NewState()
	var calls int
	cancel := s.Subscribe(func(ProcessingStatus) { calls++ })
	s.Mutate(func(p *ProcessingStatus) { p.Message = "a" })
	cancel()
	cancel()
	s.Mutate(func(p *ProcessingStatus) { p.Message = "b" })
	if calls != 1 {
		t.Fatalf("expected 1 notification, got %d", calls)
	}
}

func TestSetItemStatusAndCounts(t *testing.T) {
	s := NewState()
	s.Mutate(func(p *ProcessingStatus) {
		p.Queue = []Item{{ID: 1, Status: StatusPending}, {ID: 2, Status: StatusPending}}
		p.Total = 2
	})
	if !s.SetItemStatus(2, StatusFailed, "oops") {
		t.Fatal("expected item 2 to exist")
	}
	if s.SetItemStatus(9, StatusFailed, "") {
		t.Fatal("expected missing item to report false")
	}
	snap := s.Snapshot()
	counts := snap.Counts()
	if counts.Pending != 1 || counts.Failed != 1 || !snap.HasPending() {
		t.Fatalf("unexpected counts: %#v", counts)
	}
	item, _ := s.Item(2)
	if item.ErrorMessage != "oops" {
		t.Fatalf("expected error message, got %q", item.ErrorMessage)
	}

	reset := s.Reset()
	if len(reset.Queue) != 0 || reset.Total != 0 {
		t.Fatalf("expected reset state, got %#v", reset)
	}
}

func TestParseStatus(t *testing.T) {
	if st, ok := ParseStatus(" Skipped "); !ok || st != StatusSkipped {
		t.Fatalf("ParseStatus = %q %v", st, ok)
	}
	if _, ok := ParseStatus("ripping"); ok {
		t.Fatal("expected unknown status to fail")
	}
	if StatusPending.IsTerminal() || !StatusSkipped.IsTerminal() {
		t.Fatal("unexpected terminal classification")
	}
}
