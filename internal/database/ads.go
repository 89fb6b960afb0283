package database

import (
	"fmt"
	"log"
	"time"

	"tokenwatch-telegram-bot/internal/types"
)

// InsertAd stores a new ad and returns its id. New ads start active with
// zero views.
func InsertAd(message string, durationDays, maxViews int, createdAt time.Time) (int64, error) {
	res, err := DB.Exec(`
	INSERT INTO ads (message, duration_days, max_views, current_views, created_at, active)
	VALUES (?, ?, ?, 0, ?, 1);`,
		message, durationDays, maxViews, createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert ad: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read ad id: %w", err)
	}
	log.Printf("Ad inserted: ID: %d, Duration: %dd, MaxViews: %d", id, durationDays, maxViews)
	return id, nil
}

func scanAds(query string, args ...any) ([]types.Ad, error) {
	rows, err := DB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ads: %w", err)
	}
	defer rows.Close()

	var ads []types.Ad
	for rows.Next() {
		var ad types.Ad
		var createdAt string
		var active int
		if err := rows.Scan(&ad.ID, &ad.Message, &ad.DurationDays, &ad.MaxViews, &ad.CurrentViews, &createdAt, &active); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		ad.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ad %d created_at: %w", ad.ID, err)
		}
		ad.Active = active != 0
		ads = append(ads, ad)
	}
	return ads, rows.Err()
}

// GetActiveAds fetches all ads still flagged active, oldest first.
func GetActiveAds() ([]types.Ad, error) {
	return scanAds(`
	SELECT id, message, duration_days, max_views, current_views, created_at, active
	FROM ads WHERE active = 1 ORDER BY created_at ASC;`)
}

// GetAllAds fetches every ad, oldest first.
func GetAllAds() ([]types.Ad, error) {
	return scanAds(`
	SELECT id, message, duration_days, max_views, current_views, created_at, active
	FROM ads ORDER BY created_at ASC;`)
}

// DeactivateAd flags an ad inactive. Ads are never resurrected.
func DeactivateAd(adID int64) error {
	_, err := DB.Exec(`UPDATE ads SET active = 0 WHERE id = ?;`, adID)
	if err != nil {
		return fmt.Errorf("failed to deactivate ad %d: %w", adID, err)
	}
	return nil
}

// IncrementAdViews bumps the view counter and returns the updated counts so
// the caller can deactivate on quota.
func IncrementAdViews(adID int64) (current, max int, err error) {
	_, err = DB.Exec(`UPDATE ads SET current_views = current_views + 1 WHERE id = ?;`, adID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to increment views for ad %d: %w", adID, err)
	}
	err = DB.QueryRow(`SELECT current_views, max_views FROM ads WHERE id = ?;`, adID).Scan(&current, &max)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read views for ad %d: %w", adID, err)
	}
	return current, max, nil
}

// DeleteAd removes an ad entirely.
func DeleteAd(adID int64) error {
	_, err := DB.Exec(`DELETE FROM ads WHERE id = ?;`, adID)
	if err != nil {
		return fmt.Errorf("failed to delete ad %d: %w", adID, err)
	}
	return nil
}
