package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	audittraildomain "github.com/dealerdesk/taxengine/internal/audittrail/domain"
	audittrailrepo "github.com/dealerdesk/taxengine/internal/audittrail/repository"
	audittrailservice "github.com/dealerdesk/taxengine/internal/audittrail/service"
	"github.com/dealerdesk/taxengine/internal/cache"
	"github.com/dealerdesk/taxengine/internal/clock"
	"github.com/dealerdesk/taxengine/internal/config"
	jurisdictiondomain "github.com/dealerdesk/taxengine/internal/jurisdiction/domain"
	jurisdictionrepo "github.com/dealerdesk/taxengine/internal/jurisdiction/repository"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (jurisdictiondomain.Service, audittraildomain.Service, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&jurisdictiondomain.Jurisdiction{},
		&audittraildomain.TaxAuditLog{},
	))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	holder, err := config.NewStaticEngineConfigHolder(config.DefaultEngineConfig())
	require.NoError(t, err)

	auditSvc := audittrailservice.NewService(audittrailservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  audittrailrepo.Provide(),
	})

	svc := NewService(Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  fake,
		Cfg:    config.Config{EngineVersion: "test"},
		Repo:   jurisdictionrepo.Provide(),
		Cache:  cache.NewReferenceCache(),
		Engine: holder,
		Audit:  auditSvc,
	})
	return svc, auditSvc, fake
}

func loadReq(postalCode, state string, effective time.Time) jurisdictiondomain.LoadRequest {
	return jurisdictiondomain.LoadRequest{
		PostalCode:          postalCode,
		State:               state,
		StateRate:           "0.0625",
		CountyRate:          "0.0050",
		CityRate:            "0.0060",
		SpecialDistrictRate: "0.0000",
		EffectiveDate:       effective,
		Source:              "test",
		LoadedBy:            "tester",
	}
}

func TestResolveByPostalCode_ActiveWindow(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Load(ctx, loadReq("75001", "TX", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	j, err := svc.ResolveByPostalCode(ctx, "75001", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "75001", j.PostalCode)
	require.Equal(t, "TX", j.State)

	// Before the effective date nothing is active.
	_, err = svc.ResolveByPostalCode(ctx, "75001", time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, jurisdictiondomain.ErrJurisdictionNotFound)
}

func TestResolveByPostalCode_ZipPlusFour(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Load(ctx, loadReq("75001", "TX", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	for _, code := range []string{"75001-1234", "750011234", " 75001 "} {
		j, err := svc.ResolveByPostalCode(ctx, code, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err, "code %q", code)
		require.Equal(t, "75001", j.PostalCode)
	}

	for _, code := range []string{"7500", "7500a", "", "750011"} {
		_, err := svc.ResolveByPostalCode(ctx, code, time.Now())
		require.ErrorIs(t, err, jurisdictiondomain.ErrInvalidPostalCode, "code %q", code)
	}
}

func TestLoad_EndDatesSupersededRecord(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Load(ctx, loadReq("75001", "TX", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	replacement := loadReq("75001", "TX", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))
	replacement.CityRate = "0.0100"
	_, err = svc.Load(ctx, replacement)
	require.NoError(t, err)

	history, err := svc.History(ctx, "75001")
	require.NoError(t, err)
	require.Len(t, history, 2)

	var open, closed int
	for _, j := range history {
		if j.EndDate == nil {
			open++
		} else {
			closed++
			require.True(t, j.EndDate.Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)))
		}
	}
	require.Equal(t, 1, open)
	require.Equal(t, 1, closed)

	// The old record still resolves for dates inside its window.
	j, err := svc.ResolveByPostalCode(ctx, "75001", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "0.0060", j.CityRate.StringFixed(4))

	j, err = svc.ResolveByPostalCode(ctx, "75001", time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "0.0100", j.CityRate.StringFixed(4))
}

func TestLoad_SameDayReloadSupersedes(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	effective := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.Load(ctx, loadReq("30301", "GA", effective))
	require.NoError(t, err)

	// A same-day correction must leave exactly one active record.
	correction := loadReq("30301", "GA", effective)
	correction.StateRate = "0.0700"
	_, err = svc.Load(ctx, correction)
	require.NoError(t, err)

	history, err := svc.History(ctx, "30301")
	require.NoError(t, err)
	require.Len(t, history, 2)

	var open int
	for _, j := range history {
		if j.EndDate == nil {
			open++
		}
	}
	require.Equal(t, 1, open)

	j, err := svc.ResolveByPostalCode(ctx, "30301", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "0.0700", j.StateRate.StringFixed(4))
}

func TestLoad_WritesAuditEntry(t *testing.T) {
	svc, auditSvc, _ := newTestService(t)
	ctx := context.Background()

	j, err := svc.Load(ctx, loadReq("75001", "TX", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	resp, err := auditSvc.List(ctx, audittraildomain.ListRequest{
		DealershipID: "system",
		Type:         audittraildomain.CalculationTypeJurisdictionLoaded,
	})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	require.Equal(t, "tester", entry.CalculatedBy)
	require.Equal(t, "TX", entry.StateCode)
	require.Equal(t, "test", entry.EngineVersion)
	require.NotNil(t, entry.JurisdictionID)
	require.Equal(t, j.ID, *entry.JurisdictionID)
	require.Equal(t, "75001", entry.Inputs["postal_code"])
	require.Equal(t, "0.0625", entry.Outputs["state_rate"])
}

func TestRates_TotalIsExactSum(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	req := loadReq("80014", "CO", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	req.StateRate = "0.0290"
	req.CountyRate = "0.0025"
	req.CityRate = "0.0331"
	req.SpecialDistrictRate = "0.0110"
	j, err := svc.Load(ctx, req)
	require.NoError(t, err)

	rates := svc.Rates(j)
	require.Equal(t, "0.0756", rates.TotalRate.StringFixed(4))
	sum := rates.StateRate.Add(rates.CountyRate).Add(rates.CityRate).Add(rates.SpecialDistrictRate)
	require.True(t, rates.TotalRate.Equal(sum))
}

func TestStateAverageRate(t *testing.T) {
	svc, _, _ := newTestService(t)

	rate, err := svc.StateAverageRate("tx")
	require.NoError(t, err)
	require.Equal(t, "0.0820", rate.StringFixed(4))

	_, err = svc.StateAverageRate("AK")
	require.ErrorIs(t, err, jurisdictiondomain.ErrNoStateAverageRate)
}

func TestLoad_RejectsBadInput(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	bad := loadReq("75001", "TX", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	bad.StateRate = "-0.01"
	_, err := svc.Load(ctx, bad)
	require.Error(t, err)

	bad = loadReq("75001", "Texas", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	_, err = svc.Load(ctx, bad)
	require.ErrorIs(t, err, jurisdictiondomain.ErrInvalidState)

	bad = loadReq("75001", "TX", time.Time{})
	_, err = svc.Load(ctx, bad)
	require.ErrorIs(t, err, jurisdictiondomain.ErrInvalidEffectiveDate)
}
