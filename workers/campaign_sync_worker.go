package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"instant-win-system/models"
	"instant-win-system/services"
	"instant-win-system/utils"

	"github.com/rs/zerolog/log"
)

// CampaignSaver persists a mirrored campaign definition.
type CampaignSaver interface {
	Save(ctx context.Context, c *models.Campaign, prizes []models.Prize) (*models.CampaignRules, error)
}

// CampaignDefinition is one campaign as published by the configuration service.
type CampaignDefinition struct {
	Campaign models.Campaign `json:"campaign"`
	Prizes   []models.Prize  `json:"prizes"`
}

// CampaignSyncClient mirrors campaign configuration from the configuration
// service into the local tables.
type CampaignSyncClient struct {
	URL        string
	Token      string
	HTTPClient *http.Client
	Campaigns  CampaignSaver
}

func NewCampaignSyncClient(syncURL, token string, campaigns CampaignSaver) *CampaignSyncClient {
	return &CampaignSyncClient{
		URL:        syncURL,
		Token:      token,
		HTTPClient: utils.HTTPClient,
		Campaigns:  campaigns,
	}
}

// GetChangedCampaigns fetches the definitions updated after since.
func (c *CampaignSyncClient) GetChangedCampaigns(ctx context.Context, since time.Time) ([]CampaignDefinition, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sync URL: %w", err)
	}

	q := u.Query()
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.Token != "" {
		req.Header.Set("X-Service-Token", c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call config service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("config service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Campaigns []CampaignDefinition `json:"campaigns"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode config service response: %w", err)
	}
	return response.Campaigns, nil
}

// SyncOnce pulls the changes since the given time and saves each campaign.
// Invalid definitions are skipped; the returned count covers saved ones.
// Any other save failure stops the pass with an error so the window is
// retried.
func (c *CampaignSyncClient) SyncOnce(ctx context.Context, since time.Time) (int, error) {
	defs, err := c.GetChangedCampaigns(ctx, since)
	if err != nil {
		return 0, err
	}

	saved := 0
	for i := range defs {
		d := &defs[i]
		for j := range d.Prizes {
			d.Prizes[j].CampaignID = d.Campaign.ID
		}
		if _, err := c.Campaigns.Save(ctx, &d.Campaign, d.Prizes); err != nil {
			if services.KindOf(err) == services.KindValidation {
				log.Error().Err(err).Str("campaign_id", d.Campaign.ID).Msg("❌ [CampaignSync] skipping invalid campaign")
				continue
			}
			return saved, fmt.Errorf("save campaign %s: %w", d.Campaign.ID, err)
		}
		saved++
	}
	return saved, nil
}

// PollCampaigns runs SyncOnce every interval until ctx is done. The first
// pass mirrors everything.
func PollCampaigns(ctx context.Context, client *CampaignSyncClient, interval time.Duration) {
	log.Info().Str("url", client.URL).Dur("interval", interval).Msg("🔁 [CampaignSync] starting campaign polling")

	var lastSync time.Time
	poll := func() {
		started := time.Now().UTC()
		saved, err := client.SyncOnce(ctx, lastSync)
		if err != nil {
			// keep lastSync so the same window is retried next tick
			log.Error().Err(err).Msg("❌ [CampaignSync] error polling campaigns")
			return
		}
		lastSync = started
		if saved > 0 {
			log.Info().Int("saved", saved).Msg("✅ [CampaignSync] campaigns mirrored")
		}
	}

	poll()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("🛑 [CampaignSync] campaign polling stopped")
			return
		case <-ticker.C:
			poll()
		}
	}
}
