package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"staff-portal/internal/domain"
	"staff-portal/internal/identity"
	"staff-portal/internal/repository"
	"staff-portal/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type provisioningFixture struct {
	provider  *fakeProvider
	accounts  *fakeAccountsRepo
	auditRepo *fakeAuditRepo
	orphans   *fakeOrphans
	svc       ProvisioningService
}

func newProvisioningFixture(t *testing.T, kv store.KV) *provisioningFixture {
	t.Helper()
	f := &provisioningFixture{
		provider:  newFakeProvider(),
		accounts:  newFakeAccountsRepo(),
		auditRepo: &fakeAuditRepo{},
		orphans:   &fakeOrphans{},
	}
	logger := zap.NewNop()
	audit := NewAuditService(f.auditRepo, 0, DefaultPageOptions, logger)
	f.svc = NewProvisioningService(f.accounts, f.provider, audit, ProvisioningOptions{
		IdempotencyKV:       kv,
		IdempotencyTTL:      time.Hour,
		Orphans:             f.orphans,
		CompensationTimeout: time.Second,
	}, logger)
	return f
}

func staffRequest() CreateStaffAccountRequest {
	return CreateStaffAccountRequest{
		Email:       "a@x.com",
		Password:    "pw",
		FullName:    "A B",
		BranchID:    1,
		StaffRoleID: 2,
		ActorID:     9,
	}
}

func TestCreateStaffAccount_Success(t *testing.T) {
	f := newProvisioningFixture(t, nil)

	res := f.svc.CreateStaffAccount(context.Background(), staffRequest())

	require.NoError(t, res.Err())
	require.NotNil(t, res.Data)
	assert.Empty(t, res.Error)
	assert.NotEmpty(t, res.Message)

	acc := res.Data
	assert.NotZero(t, acc.ID)
	require.NotNil(t, acc.IdentityID)
	require.NotNil(t, acc.Staff)
	assert.Equal(t, int64(1), acc.Staff.BranchID)
	assert.Equal(t, int64(2), acc.Staff.StaffRoleID)
	assert.Equal(t, int64(9), *acc.CreatedBy)

	// 身份元数据回写了账户 ID
	md := f.provider.identities[*acc.IdentityID]
	assert.Equal(t, "STAFF", md[identity.MetaRole])
	assert.Equal(t, "A B", md[identity.MetaFullName])
	assert.Equal(t, fmt.Sprint(acc.ID), md[identity.MetaAccountID])

	entries := f.auditRepo.all()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.AuditCreateStaffAccount, entries[0].Type)
	require.NotNil(t, entries[0].ActorID)
	assert.Equal(t, int64(9), *entries[0].ActorID)
	assert.Equal(t, acc.ID, *entries[0].ActedOnID)
}

func TestCreateAdminAccount_Success(t *testing.T) {
	f := newProvisioningFixture(t, nil)

	res := f.svc.CreateAdminAccount(context.Background(), CreateAdminAccountRequest{
		Email: " root@x.com ", Password: "pw", FullName: " Root ",
	})

	require.NoError(t, res.Err())
	assert.Equal(t, "root@x.com", res.Data.Email)
	assert.Equal(t, "Root", res.Data.FullName)
	assert.Nil(t, res.Data.Staff)
	assert.Nil(t, res.Data.CreatedBy)

	entries := f.auditRepo.all()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.AuditCreateAdminAccount, entries[0].Type)
	assert.Nil(t, entries[0].ActorID)
}

func TestCreateAccount_ValidationHasNoSideEffects(t *testing.T) {
	cases := map[string]CreateAccountRequest{
		"missing email":     {Kind: domain.AccountKindAdmin, Password: "pw", FullName: "A"},
		"blank password":    {Kind: domain.AccountKindAdmin, Email: "a@x.com", Password: "  ", FullName: "A"},
		"blank name":        {Kind: domain.AccountKindAdmin, Email: "a@x.com", Password: "pw", FullName: " "},
		"malformed email":   {Kind: domain.AccountKindAdmin, Email: "ax.com", Password: "pw", FullName: "A"},
		"unknown kind":      {Kind: "OWNER", Email: "a@x.com", Password: "pw", FullName: "A"},
		"staff no branch":   {Kind: domain.AccountKindStaff, Email: "a@x.com", Password: "pw", FullName: "A", Staff: &domain.StaffProfile{StaffRoleID: 2}},
		"staff no profile":  {Kind: domain.AccountKindStaff, Email: "a@x.com", Password: "pw", FullName: "A"},
		"admin staff attrs": {Kind: domain.AccountKindAdmin, Email: "a@x.com", Password: "pw", FullName: "A", Staff: &domain.StaffProfile{BranchID: 1, StaffRoleID: 2}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			f := newProvisioningFixture(t, nil)
			res := f.svc.CreateAccount(context.Background(), req)

			assert.ErrorIs(t, res.Err(), ErrValidation)
			assert.Nil(t, res.Data)
			assert.Contains(t, res.Error, "ValidationError")
			assert.Equal(t, 0, f.provider.count())
			assert.Equal(t, 0, f.accounts.count())
			assert.Empty(t, f.auditRepo.all())
		})
	}
}

func TestCreateAccount_IdentityFailure(t *testing.T) {
	f := newProvisioningFixture(t, nil)
	f.provider.createErr = fmt.Errorf("%w: a@x.com", identity.ErrEmailTaken)

	res := f.svc.CreateStaffAccount(context.Background(), staffRequest())

	assert.ErrorIs(t, res.Err(), ErrIdentityProvider)
	assert.ErrorIs(t, res.Err(), identity.ErrEmailTaken)
	assert.Equal(t, 0, f.accounts.count())
	assert.Equal(t, 0, f.provider.deleteCalls)
	assert.Empty(t, f.auditRepo.all())
}

func TestCreateAccount_ProfileStoreFailureCompensatesIdentity(t *testing.T) {
	f := newProvisioningFixture(t, nil)
	f.accounts.createErr = errBoom

	res := f.svc.CreateStaffAccount(context.Background(), staffRequest())

	assert.ErrorIs(t, res.Err(), ErrProfileStore)
	assert.Nil(t, res.Data)
	assert.Equal(t, 0, f.provider.count())
	assert.Equal(t, 1, f.provider.deleteCalls)
	assert.Empty(t, f.auditRepo.all())
	assert.Empty(t, f.orphans.all())
}

func TestCreateAccount_MetadataSyncFailureRollsBackEverything(t *testing.T) {
	f := newProvisioningFixture(t, nil)
	f.provider.updateErr = errBoom

	res := f.svc.CreateStaffAccount(context.Background(), staffRequest())

	assert.ErrorIs(t, res.Err(), ErrMetadataSync)
	assert.Equal(t, 0, f.accounts.count())
	assert.Equal(t, 0, f.provider.count())
	assert.Empty(t, f.auditRepo.all())
}

func TestCreateAccount_FailedCompensationReportsOrphan(t *testing.T) {
	f := newProvisioningFixture(t, nil)
	f.accounts.createErr = errBoom
	f.provider.deleteErr = errBoom

	res := f.svc.CreateStaffAccount(context.Background(), staffRequest())

	// 原始错误不被补偿错误覆盖
	assert.ErrorIs(t, res.Err(), ErrProfileStore)
	orphans := f.orphans.all()
	require.Len(t, orphans, 1)
	assert.Equal(t, OrphanIdentity, orphans[0].Kind)
	assert.Equal(t, "idp-1", orphans[0].IdentityID)
	assert.Contains(t, orphans[0].Reason, "create_identity")
}

func TestCreateAccount_AtomicityUnderFailures(t *testing.T) {
	inject := map[string]func(f *provisioningFixture){
		"identity":      func(f *provisioningFixture) { f.provider.createErr = errBoom },
		"profile":       func(f *provisioningFixture) { f.accounts.createErr = errBoom },
		"metadata sync": func(f *provisioningFixture) { f.provider.updateErr = errBoom },
	}
	for name, fail := range inject {
		t.Run(name, func(t *testing.T) {
			f := newProvisioningFixture(t, nil)
			fail(f)

			res := f.svc.CreateStaffAccount(context.Background(), staffRequest())

			require.Error(t, res.Err())
			// 失败后身份和账户行都不存在
			assert.Equal(t, 0, f.provider.count())
			assert.Equal(t, 0, f.accounts.count())
		})
	}
}

func TestCreateAccount_AuditFailureDoesNotMaskSuccess(t *testing.T) {
	f := newProvisioningFixture(t, nil)
	f.auditRepo.err = errBoom

	res := f.svc.CreateStaffAccount(context.Background(), staffRequest())

	require.NoError(t, res.Err())
	require.NotNil(t, res.Data)
	assert.Equal(t, 1, f.accounts.count())
}

func TestCreateAccount_IdempotencyKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	f := newProvisioningFixture(t, store.NewRedisKV(client))
	ctx := context.Background()

	req := staffRequest()
	req.IdempotencyKey = "req-1"

	first := f.svc.CreateStaffAccount(ctx, req)
	require.NoError(t, first.Err())

	replay := f.svc.CreateStaffAccount(ctx, req)
	require.NoError(t, replay.Err())
	assert.Equal(t, first.Data.ID, replay.Data.ID)
	assert.Equal(t, 1, f.provider.count())
	assert.Equal(t, 1, f.accounts.count())

	// 进行中的请求
	require.NoError(t, mr.Set("provisioning:idem:req-2", "pending"))
	req.IdempotencyKey = "req-2"
	res := f.svc.CreateStaffAccount(ctx, req)
	assert.ErrorIs(t, res.Err(), ErrValidation)
}

func TestCreateAccount_FailedSagaReleasesIdempotencyKey(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	f := newProvisioningFixture(t, store.NewRedisKV(client))
	ctx := context.Background()

	req := staffRequest()
	req.IdempotencyKey = "req-3"
	f.accounts.createErr = errBoom

	res := f.svc.CreateStaffAccount(ctx, req)
	assert.ErrorIs(t, res.Err(), ErrProfileStore)
	assert.False(t, mr.Exists("provisioning:idem:req-3"))

	f.accounts.createErr = nil
	res = f.svc.CreateStaffAccount(ctx, req)
	require.NoError(t, res.Err())
	assert.True(t, mr.Exists("provisioning:idem:req-3"))
}

func TestUpdateAccount(t *testing.T) {
	f := newProvisioningFixture(t, nil)
	creator := int64(3)
	staff := f.accounts.put(domain.Account{
		ID: 5, Email: "s@x.com", FullName: "Old", Kind: domain.AccountKindStaff, CreatedBy: &creator,
		Staff: &domain.StaffProfile{BranchID: 1, StaffRoleID: 2},
	})
	admin := f.accounts.put(domain.Account{ID: 6, Email: "a@x.com", FullName: "Admin", Kind: domain.AccountKindAdmin})
	ctx := context.Background()

	name := " New "
	branch := int64(4)
	res := f.svc.UpdateAccount(ctx, staff.ID, domain.AccountPatch{FullName: &name, BranchID: &branch}, 9)
	require.NoError(t, res.Err())

	got, _ := f.accounts.get(staff.ID)
	assert.Equal(t, "New", got.FullName)
	assert.Equal(t, int64(4), got.Staff.BranchID)
	assert.Equal(t, int64(2), got.Staff.StaffRoleID)
	assert.Equal(t, "s@x.com", got.Email)

	entries := f.auditRepo.all()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.AuditUpdateStaffAccount, entries[0].Type)
	assert.Equal(t, []string{"full_name", "branch_id"}, entries[0].Metadata["fields"])
	assert.Equal(t, &creator, entries[0].Metadata["created_by"])

	assert.ErrorIs(t, f.svc.UpdateAccount(ctx, staff.ID, domain.AccountPatch{}, 9).Err(), ErrValidation)
	assert.ErrorIs(t, f.svc.UpdateAccount(ctx, admin.ID, domain.AccountPatch{BranchID: &branch}, 9).Err(), ErrValidation)
	assert.ErrorIs(t, f.svc.UpdateAccount(ctx, 404, domain.AccountPatch{FullName: &name}, 9).Err(), ErrNotFound)

	f.accounts.updateErr = errBoom
	assert.ErrorIs(t, f.svc.UpdateAccount(ctx, staff.ID, domain.AccountPatch{FullName: &name}, 9).Err(), ErrProfileStore)
}

func TestDeleteAccount_Success(t *testing.T) {
	f := newProvisioningFixture(t, nil)
	ctx := context.Background()
	created := f.svc.CreateStaffAccount(ctx, staffRequest())
	require.NoError(t, created.Err())

	res := f.svc.DeleteAccount(ctx, created.Data.ID, 9)

	require.NoError(t, res.Err())
	assert.NotNil(t, res.Data)
	assert.Equal(t, 0, f.accounts.count())
	assert.Equal(t, 0, f.provider.count())

	entries := f.auditRepo.all()
	require.Len(t, entries, 2)
	assert.Equal(t, domain.AuditDeleteStaffAccount, entries[1].Type)
	assert.Equal(t, "a@x.com", entries[1].Metadata["email"])
	assert.Equal(t, "A B", entries[1].Metadata["full_name"])
}

func TestDeleteAccount_NullIdentitySkipsIdentityDelete(t *testing.T) {
	f := newProvisioningFixture(t, nil)
	f.accounts.put(domain.Account{ID: 5, Email: "o@x.com", FullName: "Orphan", Kind: domain.AccountKindAdmin})

	res := f.svc.DeleteAccount(context.Background(), 5, 9)

	require.NoError(t, res.Err())
	assert.Equal(t, 0, f.provider.deleteCalls)
	assert.Equal(t, 0, f.accounts.count())
}

func TestDeleteAccount_AbsentIdentityIsSatisfied(t *testing.T) {
	f := newProvisioningFixture(t, nil)
	idp := "idp-gone"
	f.accounts.put(domain.Account{ID: 5, IdentityID: &idp, Email: "g@x.com", FullName: "Gone", Kind: domain.AccountKindAdmin})
	f.provider.deleteErr = fmt.Errorf("%w: %s", identity.ErrNotFound, idp)

	res := f.svc.DeleteAccount(context.Background(), 5, 9)

	require.NoError(t, res.Err())
	assert.Equal(t, 0, f.accounts.count())
}

func TestDeleteAccount_IdentityFailureLeavesStoreUntouched(t *testing.T) {
	f := newProvisioningFixture(t, nil)
	idp := "idp-1"
	f.provider.identities[idp] = identity.Metadata{}
	f.accounts.put(domain.Account{ID: 5, IdentityID: &idp, Email: "g@x.com", FullName: "G", Kind: domain.AccountKindAdmin})
	f.provider.deleteErr = errBoom

	res := f.svc.DeleteAccount(context.Background(), 5, 9)

	assert.ErrorIs(t, res.Err(), ErrIdentityProvider)
	assert.Equal(t, 1, f.accounts.count())
	assert.Empty(t, f.auditRepo.all())
}

// 身份已删除但账户行删除失败：部分成功并上报残留账户行
func TestDeleteAccount_ProfileDeleteFailureIsPartialSuccess(t *testing.T) {
	f := newProvisioningFixture(t, nil)
	ctx := context.Background()
	created := f.svc.CreateStaffAccount(ctx, staffRequest())
	require.NoError(t, created.Err())
	f.accounts.deleteErr = errBoom

	res := f.svc.DeleteAccount(ctx, created.Data.ID, 9)

	assert.NoError(t, res.Err())
	assert.True(t, res.IsWarning())
	assert.Nil(t, res.Data)
	assert.Empty(t, res.Error)
	assert.NotEmpty(t, res.Message)

	// 身份已删除，账户行仍在
	assert.False(t, f.provider.has(*created.Data.IdentityID))
	assert.Equal(t, 1, f.accounts.count())

	orphans := f.orphans.all()
	require.Len(t, orphans, 1)
	assert.Equal(t, OrphanProfile, orphans[0].Kind)
	assert.Equal(t, created.Data.ID, orphans[0].AccountID)

	entries := f.auditRepo.all()
	require.Len(t, entries, 2)
	assert.Equal(t, "pending", entries[1].Metadata["profile_cleanup"])
}

func TestDeleteAccount_Rejections(t *testing.T) {
	f := newProvisioningFixture(t, nil)
	f.accounts.put(domain.Account{ID: 9, Email: "me@x.com", FullName: "Me", Kind: domain.AccountKindAdmin})
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.DeleteAccount(ctx, 9, 9).Err(), ErrValidation)
	assert.ErrorIs(t, f.svc.DeleteAccount(ctx, 404, 9).Err(), ErrNotFound)

	f.accounts.getErr = errBoom
	assert.ErrorIs(t, f.svc.DeleteAccount(ctx, 9, 1).Err(), ErrProfileStore)
	assert.Equal(t, 1, f.accounts.count())
}

func TestCreateStaffAccount_UnknownBranchIsNotFound(t *testing.T) {
	f := newProvisioningFixture(t, nil)
	f.accounts.createErr = fmt.Errorf("failed to insert staff profile: %w", repository.ErrReferenced)

	req := staffRequest()
	req.BranchID = 999
	res := f.svc.CreateStaffAccount(context.Background(), req)

	require.ErrorIs(t, res.Err(), ErrNotFound)
	assert.NotErrorIs(t, res.Err(), ErrProfileStore)
	assert.Equal(t, ErrNotFound, ErrorKind(res.Err()))
	assert.Contains(t, res.Error, "NotFoundError")
	// 身份已补偿
	assert.Equal(t, 0, f.provider.count())
	assert.Equal(t, 1, f.provider.deleteCalls)
	assert.Equal(t, 0, f.accounts.count())
	assert.Empty(t, f.auditRepo.all())
}

func TestUpdateAccount_UnknownRoleIsNotFound(t *testing.T) {
	f := newProvisioningFixture(t, nil)
	staff := f.accounts.put(domain.Account{
		ID: 5, Email: "s@x.com", FullName: "S", Kind: domain.AccountKindStaff,
		Staff: &domain.StaffProfile{BranchID: 1, StaffRoleID: 2},
	})
	f.accounts.updateErr = fmt.Errorf("failed to update staff profile: %w", repository.ErrReferenced)

	role := int64(999)
	res := f.svc.UpdateAccount(context.Background(), staff.ID, domain.AccountPatch{StaffRoleID: &role}, 9)

	require.ErrorIs(t, res.Err(), ErrNotFound)
	assert.NotErrorIs(t, res.Err(), ErrProfileStore)
	assert.Empty(t, f.auditRepo.all())
}

func TestCreateAccount_IdempotencyKeyReusedForDifferentRequest(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	f := newProvisioningFixture(t, store.NewRedisKV(client))
	ctx := context.Background()

	req := staffRequest()
	req.IdempotencyKey = "k1"
	first := f.svc.CreateStaffAccount(ctx, req)
	require.NoError(t, first.Err())

	res := f.svc.CreateAdminAccount(ctx, CreateAdminAccountRequest{
		Email:          "other@x.com",
		Password:       "pw",
		FullName:       "Other",
		IdempotencyKey: "k1",
	})
	require.ErrorIs(t, res.Err(), ErrValidation)
	assert.Nil(t, res.Data)
	assert.Equal(t, 1, f.provider.count())
	assert.Equal(t, 1, f.accounts.count())

	// 同一请求换一个员工属性也视为不同请求
	req.StaffRoleID = 3
	res = f.svc.CreateStaffAccount(ctx, req)
	assert.ErrorIs(t, res.Err(), ErrValidation)

	// 原请求仍可重放
	req.StaffRoleID = 2
	replay := f.svc.CreateStaffAccount(ctx, req)
	require.NoError(t, replay.Err())
	assert.Equal(t, first.Data.ID, replay.Data.ID)
}
