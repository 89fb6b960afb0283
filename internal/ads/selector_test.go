package ads

import (
	"path/filepath"
	"testing"
	"time"

	"tokenwatch-telegram-bot/internal/database"
)

func newTestSelector(t *testing.T, now time.Time) *Selector {
	t.Helper()
	if err := database.InitDB(filepath.Join(t.TempDir(), "test.db")); err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { database.CloseDB() })

	s := NewSelector()
	s.now = func() time.Time { return now }
	return s
}

func TestSelectActiveOldestFirst(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSelector(t, now)

	if _, err := database.InsertAd("newer", 7, 100, now.Add(-1*time.Hour)); err != nil {
		t.Fatalf("InsertAd: %v", err)
	}
	oldID, err := database.InsertAd("older", 7, 100, now.Add(-48*time.Hour))
	if err != nil {
		t.Fatalf("InsertAd: %v", err)
	}

	ad, err := s.SelectActive()
	if err != nil {
		t.Fatalf("SelectActive: %v", err)
	}
	if ad == nil || ad.ID != oldID {
		t.Fatalf("selected %+v, want oldest ad %d", ad, oldID)
	}
}

func TestSelectActiveLazilyDeactivatesExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSelector(t, now)

	expiredID, err := database.InsertAd("expired", 1, 100, now.Add(-72*time.Hour))
	if err != nil {
		t.Fatalf("InsertAd: %v", err)
	}
	liveID, err := database.InsertAd("live", 30, 100, now.Add(-1*time.Hour))
	if err != nil {
		t.Fatalf("InsertAd: %v", err)
	}

	ad, err := s.SelectActive()
	if err != nil {
		t.Fatalf("SelectActive: %v", err)
	}
	if ad == nil || ad.ID != liveID {
		t.Fatalf("selected %+v, want live ad %d", ad, liveID)
	}

	all, err := database.GetAllAds()
	if err != nil {
		t.Fatalf("GetAllAds: %v", err)
	}
	for _, a := range all {
		if a.ID == expiredID && a.Active {
			t.Fatal("expired ad was not deactivated at selection time")
		}
	}
}

func TestSelectActiveNoCandidates(t *testing.T) {
	s := newTestSelector(t, time.Now())

	ad, err := s.SelectActive()
	if err != nil {
		t.Fatalf("SelectActive: %v", err)
	}
	if ad != nil {
		t.Fatalf("selected %+v, want nil", ad)
	}
}

func TestAccountViewDeactivatesOnQuota(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSelector(t, now)

	id, err := s.Post("promo", 7, 2)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}

	if err := s.AccountView(id); err != nil {
		t.Fatalf("AccountView: %v", err)
	}
	if ad, _ := s.SelectActive(); ad == nil || ad.ID != id {
		t.Fatalf("ad should still serve at 1/2 views, got %+v", ad)
	}

	if err := s.AccountView(id); err != nil {
		t.Fatalf("AccountView: %v", err)
	}
	if ad, _ := s.SelectActive(); ad != nil {
		t.Fatalf("ad at quota must never be served again, got %+v", ad)
	}
}

func TestDeletedAdStaysGone(t *testing.T) {
	s := newTestSelector(t, time.Now())

	id, err := s.Post("promo", 7, 10)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if err := s.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	all, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("ads after delete = %+v, want none", all)
	}
}
