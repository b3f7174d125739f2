package telemetry

import (
	"testing"
)

var testBookmarks = BookmarksConfig{
	SheepCrash:   SheepCrashConfig{DropPercent: 0.3, MinDrop: 10},
	WolfRecovery: WolfRecoveryConfig{MinPopulation: 3, RecoveryMultiplier: 3, MinFinal: 6},
	StableEcosystem: StableEcosystemConfig{
		MinSheep:    10,
		MinWolves:   3,
		CVThreshold: 0.2,
		StableTicks: 5,
	},
}

func hasBookmark(bookmarks []Bookmark, typ BookmarkType) bool {
	for _, bm := range bookmarks {
		if bm.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_SheepCrash(t *testing.T) {
	bd := NewBookmarkDetector(10, testBookmarks)

	// Build up sheep population
	for i := 0; i < 5; i++ {
		bd.Check(Record{Tick: i, Sheep: 100, Wolves: 10})
	}

	// Now crash sheep population
	bookmarks := bd.Check(Record{Tick: 5, Sheep: 50, Wolves: 10})
	if !hasBookmark(bookmarks, BookmarkSheepCrash) {
		t.Error("expected sheep_crash bookmark")
	}

	// Peak was reset; a further small dip is not another crash
	bookmarks = bd.Check(Record{Tick: 6, Sheep: 45, Wolves: 10})
	if hasBookmark(bookmarks, BookmarkSheepCrash) {
		t.Error("unexpected second sheep_crash bookmark")
	}
}

func TestBookmarkDetector_WolfRecovery(t *testing.T) {
	bd := NewBookmarkDetector(10, testBookmarks)

	// Wolf population drops to critical level
	for i := 0; i < 3; i++ {
		bd.Check(Record{Tick: i, Sheep: 100, Wolves: 2})
	}

	// Wolves recover to 5x the minimum
	bookmarks := bd.Check(Record{Tick: 3, Sheep: 100, Wolves: 10})
	if !hasBookmark(bookmarks, BookmarkWolfRecovery) {
		t.Error("expected wolf_recovery bookmark")
	}
}

func TestBookmarkDetector_Extinction(t *testing.T) {
	bd := NewBookmarkDetector(10, testBookmarks)
	bd.Check(Record{Tick: 0, Sheep: 5, Wolves: 5})

	bookmarks := bd.Check(Record{Tick: 1, Sheep: 0, Wolves: 5})
	if !hasBookmark(bookmarks, BookmarkSheepExtinct) {
		t.Error("expected sheep_extinct bookmark")
	}
	if hasBookmark(bookmarks, BookmarkWolvesExtinct) {
		t.Error("wolves are not extinct")
	}

	// Fires once
	bookmarks = bd.Check(Record{Tick: 2, Sheep: 0, Wolves: 0})
	if hasBookmark(bookmarks, BookmarkSheepExtinct) {
		t.Error("sheep_extinct must fire once")
	}
	if !hasBookmark(bookmarks, BookmarkWolvesExtinct) {
		t.Error("expected wolves_extinct bookmark")
	}
}

func TestBookmarkDetector_StableEcosystem(t *testing.T) {
	bd := NewBookmarkDetector(10, testBookmarks)

	fired := 0
	for i := 0; i < 30; i++ {
		bookmarks := bd.Check(Record{Tick: i, Sheep: 100 + int64(i%2), Wolves: 20})
		if hasBookmark(bookmarks, BookmarkStableEcosystem) {
			fired++
			// 5 history records are needed before counting, then 5 stable ticks
			if i != 8 {
				t.Errorf("stable_ecosystem fired at tick %d, want 8", i)
			}
		}
	}
	if fired != 1 {
		t.Errorf("stable_ecosystem fired %d times, want 1", fired)
	}
}

func TestBookmarkDetector_UnstableNeverFires(t *testing.T) {
	bd := NewBookmarkDetector(10, testBookmarks)
	for i := 0; i < 30; i++ {
		sheep := int64(50)
		if i%2 == 0 {
			sheep = 200
		}
		if hasBookmark(bd.Check(Record{Tick: i, Sheep: sheep, Wolves: 20}), BookmarkStableEcosystem) {
			t.Fatalf("unexpected stable_ecosystem at tick %d", i)
		}
	}
}
