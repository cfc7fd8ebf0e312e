package db

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Seed inserts demo principals, a product catalog, matched audiences and one
// delivering media buy. Intended for local development only.
func Seed(ctx context.Context, db *pgxpool.Pool) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	const tenant = "default"

	principals := []struct {
		principalID string
		name        string
		token       string
		tier        string
	}{
		{"acme_corp", "ACME Corporation", "token_acme_standard", "standard"},
		{"globex", "Globex Media", "token_globex_premium", "premium"},
		{"initech", "Initech Holdings", "token_initech_enterprise", "enterprise"},
	}
	for _, p := range principals {
		_, err := db.Exec(ctx, `INSERT INTO principals
    (id, tenant_id, principal_id, name, auth_token, access_tier, is_active)
VALUES ($1,$2,$3,$4,$5,$6,TRUE) ON CONFLICT DO NOTHING`,
			uuid.NewString(), tenant, p.principalID, p.name, p.token, p.tier)
		if err != nil {
			return err
		}
	}

	// The repository scopes buys by the principal's internal id, so the demo
	// buy below must reference it rather than the external slug.
	var acmeID string
	err := db.QueryRow(ctx, `SELECT id FROM principals
		WHERE tenant_id = $1 AND principal_id = 'acme_corp'`, tenant).Scan(&acmeID)
	if err != nil {
		return fmt.Errorf("seed principals: %w", err)
	}

	const agent = "http://localhost:8080/mcp"
	products := []struct {
		productID   string
		name        string
		productType string
		formats     []string
		priceUnit   string
		basePrice   int64
		minSpend    int64
		reach       int64
	}{
		{"prod_display_ros", "Run-of-Site Display", "display",
			[]string{"display_300x250", "display_728x90"}, "cpm", 250, 50000, 120_000_000},
		{"prod_display_premium", "Premium Display Takeover", "display",
			[]string{"display_300x250", "display_160x600"}, "cpm", 850, 500000, 40_000_000},
		{"prod_video_preroll", "Instream Pre-Roll", "video",
			[]string{"video_preroll_640x480"}, "cpm", 1800, 1000000, 65_000_000},
		{"prod_video_ctv", "Connected TV Midroll", "ctv",
			[]string{"video_midroll_1280x720"}, "cpm", 3200, 2500000, 18_000_000},
		{"prod_native_feed", "Native Feed Placement", "native",
			[]string{"native_feed", "native_content"}, "cpc", 45, 25000, 90_000_000},
	}
	for _, p := range products {
		refs := make([]map[string]string, 0, len(p.formats))
		for _, f := range p.formats {
			refs = append(refs, map[string]string{"agent_url": agent, "id": f})
		}
		formatJSON, _ := json.Marshal(refs)
		_, err := db.Exec(ctx, `INSERT INTO products
    (id, tenant_id, product_id, name, product_type, format_ids, price_unit,
     base_price, currency, minimum_spend, estimated_reach, matched_audience_ids, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'USD',$9,$10,$11,TRUE) ON CONFLICT DO NOTHING`,
			uuid.NewString(), tenant, p.productID, p.name, p.productType, formatJSON,
			p.priceUnit, p.basePrice, p.minSpend, p.reach, []byte(`["aud_auto_intenders"]`))
		if err != nil {
			return err
		}
	}

	audiences := []struct {
		segmentID string
		name      string
		overlap   int64
		matchRate float64
	}{
		{"aud_auto_intenders", "Auto Intenders Q3", 480_000, 0.62},
		{"aud_luxury_shoppers", "Luxury Shoppers", 210, 0.18}, // below the k-anonymity floor, never servable
	}
	for _, a := range audiences {
		_, err := db.Exec(ctx, `INSERT INTO matched_audiences
    (id, segment_id, segment_name, tenant_id, principal_id, overlap_count,
     match_rate, engagement_score, k_anonymity_floor, dp_epsilon)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,1000,1.0) ON CONFLICT DO NOTHING`,
			uuid.NewString(), a.segmentID, a.name, tenant, acmeID,
			a.overlap, a.matchRate, 0.5)
		if err != nil {
			return err
		}
	}

	// One active buy mid-flight so the delivery endpoints return data.
	buyID := uuid.NewString()
	start := time.Now().AddDate(0, 0, -7)
	end := time.Now().AddDate(0, 0, 21)
	workflow, _ := json.Marshal(map[string]any{"requires_approval": false})
	_, err = db.Exec(ctx, `INSERT INTO media_buys
    (id, tenant_id, media_buy_id, principal_id, buyer_ref, total_budget, currency,
     flight_start_date, flight_end_date, status, workflow, audience_id, creative_deadline)
VALUES ($1,$2,$3,$4,$5,$6,'USD',$7,$8,'active',$9,$10,$11) ON CONFLICT DO NOTHING`,
		buyID, tenant, "mb_seed_demo", acmeID, "acme-fall-launch",
		int64(750000), start, end, workflow, "aud_auto_intenders", start.Add(-48*time.Hour))
	if err != nil {
		return err
	}

	pkgID := uuid.NewString()
	_, err = db.Exec(ctx, `INSERT INTO packages
    (id, media_buy_id, package_id, buyer_ref, product_id, budget, currency,
     pricing_option_id, pacing, price_unit, base_price, discount_fraction, final_price, status)
VALUES ($1,$2,'pkg_1','acme-fall-display','prod_display_ros',750000,'USD',
        'cpm_standard','even','cpm',250,0,250,'active') ON CONFLICT DO NOTHING`,
		pkgID, buyID)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `INSERT INTO package_formats (id, package_id, agent_url, format_id)
VALUES ($1,$2,$3,'display_300x250') ON CONFLICT DO NOTHING`,
		uuid.NewString(), pkgID, agent)
	if err != nil {
		return err
	}

	// Hourly delivery rows across the elapsed part of the flight.
	devices := []string{"desktop", "mobile", "tablet"}
	geos := []string{"US", "CA", "GB"}
	for day := 0; day < 7; day++ {
		date := start.AddDate(0, 0, day)
		for hour := 0; hour < 24; hour += 4 {
			impressions := int64(2000 + r.Intn(6000))
			clicks := impressions / int64(80+r.Intn(60))
			conversions := clicks / int64(8+r.Intn(8))
			spend := impressions * 250 / 1000
			h := hour
			_, err = db.Exec(ctx, `INSERT INTO delivery_metrics
    (id, media_buy_id, package_id, date, hour, format_id, device_type, geo,
     impressions, clicks, conversions, spend)
VALUES ($1,$2,'pkg_1',$3,$4,'display_300x250',$5,$6,$7,$8,$9,$10)
ON CONFLICT DO NOTHING`,
				uuid.NewString(), buyID, date.Format("2006-01-02"), h,
				devices[r.Intn(len(devices))], geos[r.Intn(len(geos))],
				impressions, clicks, conversions, spend)
			if err != nil {
				return fmt.Errorf("seed delivery: %w", err)
			}
		}
	}
	return nil
}
