//go:build integration

package persistence_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	marketingapp "github.com/opencrm/backend/internal/application/marketing"
	"github.com/opencrm/backend/internal/domain/crm"
	"github.com/opencrm/backend/internal/domain/marketing"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/opencrm/backend/internal/infrastructure/persistence"
	"github.com/opencrm/backend/internal/testutil/pgtest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCustomer(t *testing.T, tenantID uuid.UUID, name, email string) *crm.Customer {
	t.Helper()
	c, err := crm.NewCustomer(tenantID, name, crm.CustomerTypeOrganization)
	require.NoError(t, err)
	require.NoError(t, c.Apply(crm.CustomerPatch{Email: &email}))
	return c
}

func TestPostgres_CustomerRepository(t *testing.T) {
	db := pgtest.New(t)
	repo := persistence.NewGormCustomerRepository(db.Gorm)
	ctx := context.Background()
	tenantA, tenantB := uuid.New(), uuid.New()

	t.Run("tenants do not see each other", func(t *testing.T) {
		a := newCustomer(t, tenantA, "Acme", "ops@acme.test")
		b := newCustomer(t, tenantB, "Acme", "ops@acme.test")
		require.NoError(t, repo.Save(ctx, a))
		require.NoError(t, repo.Save(ctx, b), "same email in another tenant is allowed")

		_, err := repo.FindByIDForTenant(ctx, tenantA, b.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)

		count, err := repo.CountForTenant(ctx, tenantA, shared.DefaultFilter())
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("email is unique per tenant ignoring case", func(t *testing.T) {
		dup := newCustomer(t, tenantA, "Acme Again", "OPS@acme.test")
		exists, err := repo.ExistsByEmail(ctx, tenantA, dup.Email, uuid.Nil)
		require.NoError(t, err)
		assert.True(t, exists)

		err = repo.Save(ctx, dup)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "ALREADY_EXISTS", domainErr.Code)
	})

	t.Run("deleted customers free their email", func(t *testing.T) {
		c := newCustomer(t, tenantA, "Initech", "hello@initech.test")
		require.NoError(t, repo.Save(ctx, c))
		require.NoError(t, repo.DeleteForTenant(ctx, tenantA, c.ID))

		again := newCustomer(t, tenantA, "Initech", "hello@initech.test")
		assert.NoError(t, repo.Save(ctx, again))
	})

	t.Run("stale writers lose", func(t *testing.T) {
		c := newCustomer(t, tenantA, "Globex", "info@globex.test")
		require.NoError(t, repo.Save(ctx, c))

		first, err := repo.FindByIDForTenant(ctx, tenantA, c.ID)
		require.NoError(t, err)
		second, err := repo.FindByIDForTenant(ctx, tenantA, c.ID)
		require.NoError(t, err)

		company := "Globex Corporation"
		require.NoError(t, first.Update(crm.CustomerPatch{Company: &company}))
		require.NoError(t, repo.SaveWithLock(ctx, first))

		require.NoError(t, second.TransitionTo(crm.CustomerStatusActive))
		err = repo.SaveWithLock(ctx, second)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "OPTIMISTIC_LOCK_ERROR", domainErr.Code)

		found, err := repo.FindByIDForTenant(ctx, tenantA, c.ID)
		require.NoError(t, err)
		assert.Equal(t, company, found.Company)
		assert.Equal(t, 2, found.Version)
	})
}

func TestPostgres_TransactionRollsBack(t *testing.T) {
	db := pgtest.New(t)
	repo := persistence.NewGormCustomerRepository(db.Gorm)
	txm := persistence.NewGormTransactionManager(db.Gorm)
	ctx := context.Background()
	tenantID := uuid.New()

	c := newCustomer(t, tenantID, "Hooli", "team@hooli.test")
	err := txm.WithinTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, repo.Save(ctx, c))
		return shared.NewDomainError("ABORT", "abort")
	})
	require.Error(t, err)

	_, err = repo.FindByIDForTenant(ctx, tenantID, c.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPostgres_CampaignCountersUnderConcurrency(t *testing.T) {
	db := pgtest.New(t)
	repo := persistence.NewGormCampaignRepository(db.Gorm)
	ctx := context.Background()
	tenantID := uuid.New()

	campaign, err := marketing.NewCampaign(tenantID, "Spring launch", marketing.CampaignTypeEmail)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, campaign))

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.IncrementCounters(ctx, tenantID, campaign.ID, marketing.CounterDelta{
				Opens:       1,
				Clicks:      1,
				Conversions: 1,
				Value:       decimal.RequireFromString("12.50"),
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	found, err := repo.FindByIDForTenant(ctx, tenantID, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, workers, found.OpenCount)
	assert.Equal(t, workers, found.ClickCount)
	assert.Equal(t, workers, found.ConversionCount)
	assert.True(t, decimal.RequireFromString("250").Equal(found.ConversionValue), found.ConversionValue.String())

	err = repo.IncrementCounters(ctx, uuid.New(), campaign.ID, marketing.CounterDelta{Opens: 1})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPostgres_ConcurrentOpensCountOnce(t *testing.T) {
	db := pgtest.New(t)
	campaigns := persistence.NewGormCampaignRepository(db.Gorm)
	recipients := persistence.NewGormRecipientRepository(db.Gorm)
	interactions := persistence.NewGormInteractionRepository(db.Gorm)
	service := marketingapp.NewTrackingService(campaigns, recipients, interactions, persistence.NewGormTransactionManager(db.Gorm))
	ctx := context.Background()

	campaign, err := marketing.NewCampaign(uuid.New(), "Spring launch", marketing.CampaignTypeEmail)
	require.NoError(t, err)
	require.NoError(t, campaign.Execute(1))
	require.NoError(t, campaigns.Save(ctx, campaign))
	recipient := marketing.NewRecipient(campaign.TenantID, campaign.ID, uuid.New(), "a@example.com", time.Now())
	require.NoError(t, recipients.SaveBatch(ctx, []*marketing.Recipient{recipient}))

	const workers = 10
	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs <- service.TrackOpen(ctx, recipient.ID, "Mozilla/5.0", "203.0.113.7")
		}()
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	found, err := campaigns.FindByIDForTenant(ctx, campaign.TenantID, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, found.OpenCount)

	stored, err := recipients.FindByIDForTenant(ctx, campaign.TenantID, recipient.ID)
	require.NoError(t, err)
	assert.Equal(t, marketing.RecipientStatusOpened, stored.Status)
	assert.NotNil(t, stored.OpenedAt)

	count, err := interactions.CountByCampaign(ctx, campaign.TenantID, campaign.ID, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(workers), count)
}
