package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adcp-engine/internal/config/configs"
	"adcp-engine/internal/core/domain"
	"adcp-engine/internal/core/port"
)

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func testEngineConfig() configs.Engine {
	return configs.Engine{
		CreativeDeadlineOffset: 48 * time.Hour,
		ApprovalThreshold:      1_000_000,
		PacingTolerance:        0.10,
		KAnonymityFloor:        1000,
		FormatAgentURL:         "http://localhost:8080/mcp",
	}
}

func testPrincipal(tier domain.AccessTier) domain.Principal {
	return domain.Principal{
		ID:          "p-1",
		TenantID:    "default",
		PrincipalID: "acme_corp",
		Name:        "ACME",
		AccessTier:  tier,
		Active:      true,
	}
}

func displayProduct() domain.Product {
	return domain.Product{
		ID:        "row-1",
		TenantID:  "default",
		ProductID: "prod_display",
		Name:      "Run-of-Site Display",
		Type:      domain.ProductDisplay,
		FormatIDs: []string{"display_300x250"},
		BasePrice: domain.Price{
			Unit:  domain.UnitCPM,
			Value: domain.Money{Amount: 250, Currency: "USD"},
		},
		MinimumSpend:       domain.Money{Amount: 50_000, Currency: "USD"},
		MatchedAudienceIDs: []string{"aud_auto_intenders"},
		Active:             true,
	}
}

func validPackage() port.PackageInput {
	return port.PackageInput{
		BuyerRef:        "acme-display",
		ProductID:       "prod_display",
		Budget:          60_000,
		PricingOptionID: "cpm_standard",
		Pacing:          "even",
		Formats: []port.FormatRefInput{
			{AgentURL: "http://localhost:8080/mcp", ID: "display_300x250"},
		},
	}
}

func validCreateReq() port.CreateMediaBuyReq {
	return port.CreateMediaBuyReq{
		BuyerRef:    "acme-fall-launch",
		Currency:    "USD",
		Packages:    []port.PackageInput{validPackage()},
		FlightStart: testNow.AddDate(0, 0, 5),
		FlightEnd:   testNow.AddDate(0, 0, 35),
	}
}

func newTestEngine(t *testing.T) (*MediaBuyUseCase, *fakeRepo, *fakeAudit) {
	t.Helper()
	repo := newFakeRepo()
	catalog := &fakeCatalog{products: map[string]domain.Product{
		"prod_display": displayProduct(),
	}}
	audiences := &fakeAudiences{audiences: map[string]domain.MatchedAudience{
		"aud_auto_intenders": {ID: "a-1", SegmentID: "aud_auto_intenders", OverlapCount: 480_000},
	}}
	audit := &fakeAudit{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	u := NewMediaBuyUseCase(repo, catalog, audiences, audit, testEngineConfig(), logger)
	u.now = func() time.Time { return testNow }
	u.aggregator.now = u.now
	return u, repo, audit
}

func TestCreateMediaBuy(t *testing.T) {
	u, repo, audit := newTestEngine(t)
	req := validCreateReq()
	second := validPackage()
	second.BuyerRef = "acme-display-2"
	second.Budget = 75_000
	req.Packages = append(req.Packages, second)

	summary, err := u.CreateMediaBuy(context.Background(), testPrincipal(domain.TierStandard), req)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPendingCreative, summary.Status)
	assert.Equal(t, int64(135_000), summary.TotalBudget.Amount)
	assert.Equal(t, "USD", summary.TotalBudget.Currency)
	assert.Equal(t, 2, summary.PackageCount)
	assert.Equal(t, req.FlightStart.Add(-48*time.Hour), summary.CreativeDeadline)
	assert.Equal(t, false, summary.Workflow["requires_approval"])

	stored, err := repo.GetMediaBuy(context.Background(), summary.MediaBuyID, "p-1")
	require.NoError(t, err)
	require.Len(t, stored.Packages, 2)
	assert.Equal(t, "pkg_1", stored.Packages[0].PackageID)
	assert.Equal(t, "pkg_2", stored.Packages[1].PackageID)
	assert.Equal(t, domain.StatusPendingCreative, stored.Packages[0].Status)
	assert.Equal(t, "aud_auto_intenders", stored.AudienceID)
	assert.Equal(t, int64(1), stored.Version)

	require.Len(t, audit.byStatus(domain.AuditSuccess), 1)
	entry := audit.byStatus(domain.AuditSuccess)[0]
	assert.Equal(t, "create_media_buy", entry.Operation)
	assert.Equal(t, summary.MediaBuyID, entry.Summary["media_buy_id"])
}

func TestCreateMediaBuyFlagsLargeBudgetsForApproval(t *testing.T) {
	u, _, _ := newTestEngine(t)
	req := validCreateReq()
	req.Packages[0].Budget = 1_500_000

	summary, err := u.CreateMediaBuy(context.Background(), testPrincipal(domain.TierStandard), req)
	require.NoError(t, err)
	assert.Equal(t, true, summary.Workflow["requires_approval"])
}

func TestCreateMediaBuyCollectsEveryViolation(t *testing.T) {
	u, repo, audit := newTestEngine(t)
	req := validCreateReq()
	req.Packages = []port.PackageInput{
		{
			// missing buyer_ref, pricing_option_id; zero budget; no formats
			ProductID: "prod_display",
			Pacing:    "even",
		},
		{
			BuyerRef:        "acme-2",
			ProductID:       "prod_display",
			Budget:          60_000,
			PricingOptionID: "cpm_standard",
			Pacing:          "turbo",
			Formats:         []port.FormatRefInput{{AgentURL: "not-a-url", ID: "display_300x250"}},
		},
	}

	_, err := u.CreateMediaBuy(context.Background(), testPrincipal(domain.TierStandard), req)
	verr, ok := domain.AsViolationError(err)
	require.True(t, ok, "expected a violation error, got %v", err)

	codes := map[string][]int{}
	for _, v := range verr.Violations {
		codes[v.Code] = append(codes[v.Code], v.PackageIndex)
	}
	assert.Contains(t, codes, domain.ViolationMissingField)
	assert.Contains(t, codes, domain.ViolationInvalidBudget)
	assert.Contains(t, codes, domain.ViolationEmptyFormats)
	assert.Equal(t, []int{2}, codes[domain.ViolationInvalidPacing])
	assert.Equal(t, []int{2}, codes[domain.ViolationInvalidFormatRef])

	assert.Empty(t, repo.buys, "nothing may be persisted on validation failure")
	require.Len(t, audit.byStatus(domain.AuditFailed), 1)
	assert.Empty(t, audit.byStatus(domain.AuditSuccess))
}

func TestCreateMediaBuyBelowMinimumSpend(t *testing.T) {
	u, _, _ := newTestEngine(t)
	req := validCreateReq()
	req.Packages[0].Budget = 49_999

	_, err := u.CreateMediaBuy(context.Background(), testPrincipal(domain.TierStandard), req)
	verr, ok := domain.AsViolationError(err)
	require.True(t, ok)
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, domain.ViolationBelowMinimumSpend, verr.Violations[0].Code)
	assert.Equal(t, 1, verr.Violations[0].PackageIndex)
}

func TestCreateMediaBuyEmptyPackages(t *testing.T) {
	u, _, _ := newTestEngine(t)
	req := validCreateReq()
	req.Packages = nil

	_, err := u.CreateMediaBuy(context.Background(), testPrincipal(domain.TierStandard), req)
	verr, ok := domain.AsViolationError(err)
	require.True(t, ok)
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, domain.ViolationEmptyPackages, verr.Violations[0].Code)
}

func TestCreateMediaBuyAppliesTierDiscount(t *testing.T) {
	u, repo, _ := newTestEngine(t)

	summary, err := u.CreateMediaBuy(context.Background(), testPrincipal(domain.TierEnterprise), validCreateReq())
	require.NoError(t, err)

	stored, err := repo.GetMediaBuy(context.Background(), summary.MediaBuyID, "p-1")
	require.NoError(t, err)
	price := stored.Packages[0].Price
	assert.Equal(t, 0.15, price.DiscountFraction)
	assert.Equal(t, int64(250), price.Base.Value.Amount)
	// 250 * 0.85 = 212.5, rounds half to even
	assert.Equal(t, int64(212), price.Final.Amount)
}

func TestCreateMediaBuySkipsAudiencesBelowEngineFloor(t *testing.T) {
	u, repo, _ := newTestEngine(t)
	catalog := &fakeCatalog{products: map[string]domain.Product{}}
	product := displayProduct()
	product.MatchedAudienceIDs = []string{"aud_small", "aud_auto_intenders"}
	catalog.products["prod_display"] = product
	u.catalog = catalog
	u.validator = NewValidator(catalog)
	// aud_small clears its own per-record floor but not the engine minimum
	u.audience = &fakeAudiences{audiences: map[string]domain.MatchedAudience{
		"aud_small":          {ID: "a-2", SegmentID: "aud_small", OverlapCount: 500},
		"aud_auto_intenders": {ID: "a-1", SegmentID: "aud_auto_intenders", OverlapCount: 480_000},
	}}

	summary, err := u.CreateMediaBuy(context.Background(), testPrincipal(domain.TierStandard), validCreateReq())
	require.NoError(t, err)

	stored, err := repo.GetMediaBuy(context.Background(), summary.MediaBuyID, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "aud_auto_intenders", stored.AudienceID, "segments below the engine floor are never attached")
}

func TestCreateMediaBuyLogsMissingServableAudience(t *testing.T) {
	u, repo, _ := newTestEngine(t)
	var logs bytes.Buffer
	u.logger = slog.New(slog.NewTextHandler(&logs, nil))
	u.audience = &fakeAudiences{}

	summary, err := u.CreateMediaBuy(context.Background(), testPrincipal(domain.TierStandard), validCreateReq())
	require.NoError(t, err)

	stored, err := repo.GetMediaBuy(context.Background(), summary.MediaBuyID, "p-1")
	require.NoError(t, err)
	assert.Empty(t, stored.AudienceID)
	assert.Contains(t, logs.String(), "no servable matched audience")
}

func TestCreateMediaBuyAuditFailureFailsOperation(t *testing.T) {
	repo := newFakeRepo()
	catalog := &fakeCatalog{products: map[string]domain.Product{"prod_display": displayProduct()}}
	audit := &fakeAudit{err: errors.New("audit store down")}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	u := NewMediaBuyUseCase(repo, catalog, &fakeAudiences{}, audit, testEngineConfig(), logger)
	u.now = func() time.Time { return testNow }

	_, err := u.CreateMediaBuy(context.Background(), testPrincipal(domain.TierStandard), validCreateReq())
	require.Error(t, err)
	_, isViolation := domain.AsViolationError(err)
	assert.False(t, isViolation, "a dependency failure is not a caller error")
}

func createActiveBuy(t *testing.T, u *MediaBuyUseCase) string {
	t.Helper()
	summary, err := u.CreateMediaBuy(context.Background(), testPrincipal(domain.TierStandard), validCreateReq())
	require.NoError(t, err)
	status := string(domain.StatusActive)
	_, err = u.UpdateMediaBuy(context.Background(), testPrincipal(domain.TierStandard), summary.MediaBuyID, port.UpdateMediaBuyReq{Status: &status})
	require.NoError(t, err)
	return summary.MediaBuyID
}

func TestUpdateMediaBuyStatusTransition(t *testing.T) {
	u, _, _ := newTestEngine(t)
	id := createActiveBuy(t, u)

	status := string(domain.StatusPaused)
	buy, err := u.UpdateMediaBuy(context.Background(), testPrincipal(domain.TierStandard), id, port.UpdateMediaBuyReq{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaused, buy.Status)
	assert.Equal(t, domain.StatusPaused, buy.Packages[0].Status, "package status mirrors the buy")
	assert.Equal(t, int64(3), buy.Version)
}

func TestUpdateMediaBuyIllegalTransition(t *testing.T) {
	u, _, audit := newTestEngine(t)
	id := createActiveBuy(t, u)

	status := string(domain.StatusCompleted)
	_, err := u.UpdateMediaBuy(context.Background(), testPrincipal(domain.TierStandard), id, port.UpdateMediaBuyReq{Status: &status})
	require.NoError(t, err)

	// completed is terminal
	status = string(domain.StatusActive)
	_, err = u.UpdateMediaBuy(context.Background(), testPrincipal(domain.TierStandard), id, port.UpdateMediaBuyReq{Status: &status})
	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, domain.StatusCompleted, terr.From)
	assert.Equal(t, domain.StatusActive, terr.To)
	require.NotEmpty(t, audit.byStatus(domain.AuditFailed))
}

func TestUpdateMediaBuyIllegalTransitionRejectsWholeUpdate(t *testing.T) {
	u, repo, _ := newTestEngine(t)
	id := createActiveBuy(t, u)
	status := string(domain.StatusCompleted)
	_, err := u.UpdateMediaBuy(context.Background(), testPrincipal(domain.TierStandard), id, port.UpdateMediaBuyReq{Status: &status})
	require.NoError(t, err)

	// a valid budget change bundled with an illegal transition must not land
	budget := int64(90_000)
	status = string(domain.StatusActive)
	_, err = u.UpdateMediaBuy(context.Background(), testPrincipal(domain.TierStandard), id, port.UpdateMediaBuyReq{
		Status:   &status,
		Packages: []port.PackageUpdate{{PackageID: "pkg_1", Budget: &budget}},
	})
	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)

	stored, err := repo.GetMediaBuy(context.Background(), id, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(60_000), stored.Packages[0].Budget.Amount)
}

func TestUpdateMediaBuyBudgetRecomputesTotal(t *testing.T) {
	u, _, audit := newTestEngine(t)
	id := createActiveBuy(t, u)

	budget := int64(80_000)
	buy, err := u.UpdateMediaBuy(context.Background(), testPrincipal(domain.TierStandard), id, port.UpdateMediaBuyReq{
		Packages: []port.PackageUpdate{{PackageID: "pkg_1", Budget: &budget}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(80_000), buy.Packages[0].Budget.Amount)
	assert.Equal(t, int64(80_000), buy.TotalBudget.Amount)

	entries := audit.byStatus(domain.AuditSuccess)
	last := entries[len(entries)-1]
	changes, ok := last.Summary["changes"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, changes, "pkg_1.budget")
}

func TestUpdateMediaBuyBudgetBelowMinimum(t *testing.T) {
	u, _, _ := newTestEngine(t)
	id := createActiveBuy(t, u)

	budget := int64(10_000)
	_, err := u.UpdateMediaBuy(context.Background(), testPrincipal(domain.TierStandard), id, port.UpdateMediaBuyReq{
		Packages: []port.PackageUpdate{{PackageID: "pkg_1", Budget: &budget}},
	})
	verr, ok := domain.AsViolationError(err)
	require.True(t, ok)
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, domain.ViolationBelowMinimumSpend, verr.Violations[0].Code)
}

func TestUpdateMediaBuyUnknownPackage(t *testing.T) {
	u, _, _ := newTestEngine(t)
	id := createActiveBuy(t, u)

	pacing := "asap"
	_, err := u.UpdateMediaBuy(context.Background(), testPrincipal(domain.TierStandard), id, port.UpdateMediaBuyReq{
		Packages: []port.PackageUpdate{{PackageID: "pkg_99", Pacing: &pacing}},
	})
	verr, ok := domain.AsViolationError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ViolationUnknownPackage, verr.Violations[0].Code)
}

func TestUpdateMediaBuyFlightDates(t *testing.T) {
	u, _, _ := newTestEngine(t)
	id := createActiveBuy(t, u)

	newStart := testNow.AddDate(0, 0, 10)
	buy, err := u.UpdateMediaBuy(context.Background(), testPrincipal(domain.TierStandard), id, port.UpdateMediaBuyReq{
		FlightStart: &newStart,
	})
	require.NoError(t, err)
	assert.Equal(t, newStart, buy.FlightStart)
	assert.Equal(t, newStart.Add(-48*time.Hour), buy.CreativeDeadline, "deadline follows the flight start")

	badEnd := newStart.AddDate(0, 0, -5)
	_, err = u.UpdateMediaBuy(context.Background(), testPrincipal(domain.TierStandard), id, port.UpdateMediaBuyReq{
		FlightEnd: &badEnd,
	})
	verr, ok := domain.AsViolationError(err)
	require.True(t, ok)
	assert.Equal(t, domain.ViolationInvalidFlightDates, verr.Violations[0].Code)
}

func TestCancelMediaBuy(t *testing.T) {
	u, _, _ := newTestEngine(t)

	summary, err := u.CreateMediaBuy(context.Background(), testPrincipal(domain.TierStandard), validCreateReq())
	require.NoError(t, err)

	buy, err := u.CancelMediaBuy(context.Background(), testPrincipal(domain.TierStandard), summary.MediaBuyID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, buy.Status)

	// cancelled is terminal, a second cancel is illegal
	_, err = u.CancelMediaBuy(context.Background(), testPrincipal(domain.TierStandard), summary.MediaBuyID)
	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)
}

func TestCancelCompletedMediaBuy(t *testing.T) {
	u, _, _ := newTestEngine(t)
	id := createActiveBuy(t, u)
	status := string(domain.StatusCompleted)
	_, err := u.UpdateMediaBuy(context.Background(), testPrincipal(domain.TierStandard), id, port.UpdateMediaBuyReq{Status: &status})
	require.NoError(t, err)

	_, err = u.CancelMediaBuy(context.Background(), testPrincipal(domain.TierStandard), id)
	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)
}

func TestGetMediaBuyScopedToPrincipal(t *testing.T) {
	u, _, _ := newTestEngine(t)
	summary, err := u.CreateMediaBuy(context.Background(), testPrincipal(domain.TierStandard), validCreateReq())
	require.NoError(t, err)

	other := testPrincipal(domain.TierStandard)
	other.ID = "p-2"
	_, err = u.GetMediaBuy(context.Background(), other, summary.MediaBuyID)
	assert.ErrorIs(t, err, domain.ErrMediaBuyNotFound)
}

func TestConcurrentUpdatesSerialize(t *testing.T) {
	u, repo, _ := newTestEngine(t)
	id := createActiveBuy(t, u)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			budget := int64(60_000 + i*1000)
			_, err := u.UpdateMediaBuy(context.Background(), testPrincipal(domain.TierStandard), id, port.UpdateMediaBuyReq{
				Packages: []port.PackageUpdate{{PackageID: "pkg_1", Budget: &budget}},
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored, err := repo.GetMediaBuy(context.Background(), id, "p-1")
	require.NoError(t, err)
	// create=1, activate=2, then one increment per serialized update
	assert.Equal(t, int64(2+workers), stored.Version)
	assert.Equal(t, stored.Packages[0].Budget.Amount, stored.TotalBudget.Amount)
}

func TestListCreativeFormats(t *testing.T) {
	u, _, _ := newTestEngine(t)
	formats := u.ListCreativeFormats()
	require.Len(t, formats, 9)
	ids := map[string]bool{}
	for _, f := range formats {
		ids[f.ID] = true
		assert.Equal(t, "http://localhost:8080/mcp", f.AgentURL)
	}
	for _, want := range []string{"display_300x250", "video_preroll_640x480", "native_feed"} {
		assert.True(t, ids[want], fmt.Sprintf("missing format %s", want))
	}
}
