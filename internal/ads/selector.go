// Package ads rotates operator-posted promo messages into outgoing alerts
// and reports, oldest first, bounded by an expiry and a view quota.
package ads

import (
	"time"

	log "github.com/sirupsen/logrus"

	"tokenwatch-telegram-bot/internal/database"
	"tokenwatch-telegram-bot/internal/types"
)

type Selector struct {
	now func() time.Time
}

func NewSelector() *Selector {
	return &Selector{now: time.Now}
}

// SelectActive returns the oldest still-valid active ad, or nil when none
// qualifies. Ads found expired or over quota are deactivated on the spot;
// there is no background sweep, and a deactivated ad never comes back.
func (s *Selector) SelectActive() (*types.Ad, error) {
	candidates, err := database.GetActiveAds()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var selected *types.Ad
	for i := range candidates {
		ad := candidates[i]
		if ad.Exhausted(now) {
			if err := database.DeactivateAd(ad.ID); err != nil {
				log.Errorf("failed to deactivate ad %d: %v", ad.ID, err)
			} else {
				log.Infof("ad %d deactivated: expired or reached %d views", ad.ID, ad.MaxViews)
			}
			continue
		}
		if selected == nil {
			selected = &ad
		}
	}
	return selected, nil
}

// AccountView charges one view against the ad. Reaching the quota
// deactivates it immediately so the next selection never serves it again.
func (s *Selector) AccountView(adID int64) error {
	current, max, err := database.IncrementAdViews(adID)
	if err != nil {
		return err
	}
	if current >= max {
		if err := database.DeactivateAd(adID); err != nil {
			return err
		}
		log.Infof("ad %d deactivated after reaching %d views", adID, max)
	}
	return nil
}

// Post stores a new ad and returns its id.
func (s *Selector) Post(message string, durationDays, maxViews int) (int64, error) {
	return database.InsertAd(message, durationDays, maxViews, s.now())
}

// List returns every ad, oldest first, for the admin overview.
func (s *Selector) List() ([]types.Ad, error) {
	return database.GetAllAds()
}

// Delete removes an ad entirely.
func (s *Selector) Delete(adID int64) error {
	return database.DeleteAd(adID)
}
