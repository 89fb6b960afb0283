package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrVersionConflict is returned by ReplaceWatchlist when the caller's
// version stamp no longer matches the stored row, meaning another writer
// replaced the watchlist since it was read.
var ErrVersionConflict = fmt.Errorf("watchlist version conflict")

// GetWatchlist returns the raw watchlist JSON and version stamp for a user,
// inserting an empty watchlist on first access.
func GetWatchlist(userID int64) (string, int64, error) {
	_, err := DB.Exec(`INSERT OR IGNORE INTO users (user_id, watchlist, version) VALUES (?, '[]', 0);`, userID)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create user %d: %w", userID, err)
	}

	var raw string
	var version int64
	err = DB.QueryRow(`SELECT watchlist, version FROM users WHERE user_id = ?;`, userID).Scan(&raw, &version)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read watchlist for user %d: %w", userID, err)
	}
	return raw, version, nil
}

// ReplaceWatchlist atomically replaces a user's watchlist. The write only
// lands if version still matches the stored row; the version stamp is bumped
// on success.
func ReplaceWatchlist(userID int64, raw string, version int64) error {
	res, err := DB.Exec(
		`UPDATE users SET watchlist = ?, version = version + 1 WHERE user_id = ? AND version = ?;`,
		raw, userID, version,
	)
	if err != nil {
		return fmt.Errorf("failed to replace watchlist for user %d: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check replace result for user %d: %w", userID, err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// AllWatchlists returns the raw watchlist JSON of every known user.
func AllWatchlists() (map[int64]string, error) {
	rows, err := DB.Query(`SELECT user_id, watchlist FROM users;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlists: %w", err)
	}
	defer rows.Close()

	lists := make(map[int64]string)
	for rows.Next() {
		var userID int64
		var raw string
		if err := rows.Scan(&userID, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		lists[userID] = raw
	}
	return lists, rows.Err()
}

// AllUserIDs returns every registered user id, for broadcast fan-out.
func AllUserIDs() ([]int64, error) {
	rows, err := DB.Query(`SELECT user_id FROM users;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query user ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UserExists reports whether a row exists for the user without creating one.
func UserExists(userID int64) (bool, error) {
	var one int
	err := DB.QueryRow(`SELECT 1 FROM users WHERE user_id = ?;`, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check user %d: %w", userID, err)
	}
	return true, nil
}
