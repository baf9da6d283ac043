package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"staff-portal/internal/domain"
	"staff-portal/internal/identity"
	"staff-portal/internal/repository"
	"staff-portal/internal/store"

	"go.uber.org/zap"
)

// ProvisioningService 账户开通/更新/删除服务
// 协调身份服务与 Profile Store（两者没有共享事务）
type ProvisioningService interface {
	CreateAccount(ctx context.Context, req CreateAccountRequest) Result[domain.Account]
	CreateAdminAccount(ctx context.Context, req CreateAdminAccountRequest) Result[domain.Account]
	CreateStaffAccount(ctx context.Context, req CreateStaffAccountRequest) Result[domain.Account]
	UpdateAccount(ctx context.Context, id int64, patch domain.AccountPatch, actorID int64) Result[Empty]
	DeleteAccount(ctx context.Context, id int64, actorID int64) Result[Empty]
}

// ProvisioningOptions 可选依赖；IdempotencyKV / Orphans 为空时对应功能关闭
type ProvisioningOptions struct {
	IdempotencyKV       store.KV
	IdempotencyTTL      time.Duration
	Orphans             OrphanReporter
	CompensationTimeout time.Duration
}

type provisioningService struct {
	accounts repository.AccountsRepository
	identity identity.Provider
	audit    AuditService
	opts     ProvisioningOptions
	logger   *zap.Logger
}

// NewProvisioningService 创建 ProvisioningService 实例
func NewProvisioningService(
	accounts repository.AccountsRepository,
	provider identity.Provider,
	audit AuditService,
	opts ProvisioningOptions,
	logger *zap.Logger,
) ProvisioningService {
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	return &provisioningService{
		accounts: accounts,
		identity: provider,
		audit:    audit,
		opts:     opts,
		logger:   logger,
	}
}

// ============================================
// Request DTOs
// ============================================

// CreateAccountRequest 创建账户请求
type CreateAccountRequest struct {
	Kind              domain.AccountKind   // 必填
	Email             string               // 必填
	Password          string               // 必填
	FullName          string               // 必填
	ProfilePictureURL *string              // 可选
	Staff             *domain.StaffProfile // STAFF 必填，ADMIN 必须为空
	ActorID           int64                // 操作人账户 ID，0 表示系统
	IdempotencyKey    string               // 可选
}

// CreateAdminAccountRequest 创建管理员请求
type CreateAdminAccountRequest struct {
	Email             string
	Password          string
	FullName          string
	ProfilePictureURL *string
	ActorID           int64
	IdempotencyKey    string
}

// CreateStaffAccountRequest 创建员工请求
type CreateStaffAccountRequest struct {
	Email             string
	Password          string
	FullName          string
	ProfilePictureURL *string
	BranchID          int64
	StaffRoleID       int64
	PhoneNumber       *string
	Nationality       *string
	ActorID           int64
	IdempotencyKey    string
}

func (s *provisioningService) CreateAdminAccount(ctx context.Context, req CreateAdminAccountRequest) Result[domain.Account] {
	return s.CreateAccount(ctx, CreateAccountRequest{
		Kind:              domain.AccountKindAdmin,
		Email:             req.Email,
		Password:          req.Password,
		FullName:          req.FullName,
		ProfilePictureURL: req.ProfilePictureURL,
		ActorID:           req.ActorID,
		IdempotencyKey:    req.IdempotencyKey,
	})
}

func (s *provisioningService) CreateStaffAccount(ctx context.Context, req CreateStaffAccountRequest) Result[domain.Account] {
	return s.CreateAccount(ctx, CreateAccountRequest{
		Kind:              domain.AccountKindStaff,
		Email:             req.Email,
		Password:          req.Password,
		FullName:          req.FullName,
		ProfilePictureURL: req.ProfilePictureURL,
		Staff: &domain.StaffProfile{
			BranchID:    req.BranchID,
			StaffRoleID: req.StaffRoleID,
			PhoneNumber: trimOptional(req.PhoneNumber),
			Nationality: trimOptional(req.Nationality),
		},
		ActorID:        req.ActorID,
		IdempotencyKey: req.IdempotencyKey,
	})
}

// CreateAccount 创建账户
// 1. 身份服务创建身份  2. Profile Store 写入账户（STAFF 扩展行同事务）  3. 回写身份元数据
// 任一步失败按相反顺序补偿已完成的步骤
func (s *provisioningService) CreateAccount(ctx context.Context, req CreateAccountRequest) Result[domain.Account] {
	// 1. 参数验证（无副作用）
	if err := validateCreate(&req); err != nil {
		return Fail[domain.Account](err, "Invalid account details")
	}

	// 2. 幂等键
	idemKey := ""
	if req.IdempotencyKey != "" && s.opts.IdempotencyKV != nil {
		replay, claimed, err := s.claimIdempotencyKey(ctx, req.IdempotencyKey, requestFingerprint(&req))
		if err != nil {
			return Fail[domain.Account](err, "Duplicate request")
		}
		if replay != nil {
			return Ok(replay, "Account already created")
		}
		if claimed {
			idemKey = idempotencyKey(req.IdempotencyKey)
		}
	}

	account := &domain.Account{
		Email:             req.Email,
		FullName:          req.FullName,
		ProfilePictureURL: req.ProfilePictureURL,
		Kind:              req.Kind,
		CreatedBy:         actorRef(req.ActorID),
		Staff:             req.Staff,
	}
	role := string(req.Kind)
	var identityID string

	// 3. saga
	sg := newSaga("create_account", s.opts.CompensationTimeout, s.opts.Orphans, s.logger)
	err := sg.execute(ctx,
		sagaStep{
			name: "create_identity",
			kind: ErrIdentityProvider,
			run: func(ctx context.Context) error {
				id, err := s.identity.CreateIdentity(ctx, req.Email, req.Password, identity.NewMetadata(role, req.FullName, 0))
				if err != nil {
					return err
				}
				identityID = id
				account.IdentityID = &identityID
				return nil
			},
			compensate: func(ctx context.Context) error {
				return s.identity.DeleteIdentity(ctx, identityID)
			},
			orphan: func() Orphan {
				return Orphan{Kind: OrphanIdentity, IdentityID: identityID}
			},
		},
		sagaStep{
			name: "insert_profile",
			kind: ErrProfileStore,
			run: func(ctx context.Context) error {
				err := s.accounts.CreateAccount(ctx, account)
				if errors.Is(err, repository.ErrReferenced) {
					return newError(ErrNotFound, "referenced branch, staff role or creator not found: %v", err)
				}
				return err
			},
			compensate: func(ctx context.Context) error {
				err := s.accounts.DeleteAccount(ctx, account.ID)
				if errors.Is(err, repository.ErrNotFound) {
					return nil
				}
				return err
			},
			orphan: func() Orphan {
				return Orphan{Kind: OrphanProfile, AccountID: account.ID, IdentityID: identityID}
			},
		},
		sagaStep{
			name: "sync_identity_metadata",
			kind: ErrMetadataSync,
			run: func(ctx context.Context) error {
				return s.identity.UpdateIdentityMetadata(ctx, identityID, identity.NewMetadata(role, req.FullName, account.ID))
			},
		},
	)
	if err != nil {
		s.releaseIdempotencyKey(ctx, idemKey)
		s.logger.Error("Failed to create account",
			zap.String("kind", role),
			zap.String("email", req.Email),
			zap.Int64("actor_id", req.ActorID),
			zap.Error(err),
		)
		return Fail[domain.Account](err, "Failed to create account")
	}

	// 4. 审计（best-effort）
	s.audit.Append(ctx, domain.AuditLogEntry{
		Type:        domain.AccountAuditType(req.Kind, "CREATE"),
		ActorID:     actorRef(req.ActorID),
		ActedOnID:   &account.ID,
		ActedOnType: strPtr(domain.TargetAccount),
		Message:     fmt.Sprintf("Created %s account %s", strings.ToLower(role), account.Email),
		Metadata: map[string]any{
			"email":     account.Email,
			"full_name": account.FullName,
		},
	})

	s.storeIdempotentResult(ctx, idemKey, requestFingerprint(&req), account)

	s.logger.Info("Account created",
		zap.Int64("account_id", account.ID),
		zap.String("kind", role),
		zap.Int64("actor_id", req.ActorID),
	)
	if req.Kind == domain.AccountKindStaff {
		return Ok(account, "Staff account created successfully")
	}
	return Ok(account, "Admin account created successfully")
}

// UpdateAccount 部分更新账户（只修改 Profile Store，email 不可修改）
func (s *provisioningService) UpdateAccount(ctx context.Context, id int64, patch domain.AccountPatch, actorID int64) Result[Empty] {
	// 1. 参数验证
	if patch.IsEmpty() {
		return Fail[Empty](newError(ErrValidation, "no fields to update"), "Nothing to update")
	}
	if patch.FullName != nil {
		name := strings.TrimSpace(*patch.FullName)
		if name == "" {
			return Fail[Empty](newError(ErrValidation, "full name cannot be empty"), "Invalid account details")
		}
		patch.FullName = &name
	}
	if (patch.BranchID != nil && *patch.BranchID <= 0) || (patch.StaffRoleID != nil && *patch.StaffRoleID <= 0) {
		return Fail[Empty](newError(ErrValidation, "branch and staff role must be valid ids"), "Invalid account details")
	}

	// 2. 查询账户
	account, res, ok := s.loadAccount(ctx, id)
	if !ok {
		return res
	}
	if account.Kind == domain.AccountKindAdmin && patch.HasStaffFields() {
		return Fail[Empty](newError(ErrValidation, "admin accounts have no staff attributes"), "Invalid account details")
	}

	// 3. 更新
	if err := s.accounts.UpdateAccount(ctx, id, patch); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Fail[Empty](newError(ErrNotFound, "account %d not found", id), "Account not found")
		}
		if errors.Is(err, repository.ErrReferenced) {
			return Fail[Empty](newError(ErrNotFound, "referenced branch or staff role not found: %v", err), "Branch or staff role not found")
		}
		s.logger.Error("Failed to update account", zap.Int64("account_id", id), zap.Error(err))
		return Fail[Empty](wrapError(ErrProfileStore, err), "Failed to update account")
	}

	// 4. 审计
	updated := patch.Apply(*account)
	s.audit.Append(ctx, domain.AuditLogEntry{
		Type:        domain.AccountAuditType(account.Kind, "UPDATE"),
		ActorID:     actorRef(actorID),
		ActedOnID:   &account.ID,
		ActedOnType: strPtr(domain.TargetAccount),
		Message:     fmt.Sprintf("Updated %s account %s", strings.ToLower(string(account.Kind)), account.Email),
		Metadata: map[string]any{
			"fields":     patch.ChangedFields(),
			"email":      account.Email,
			"full_name":  updated.FullName,
			"created_by": account.CreatedBy,
		},
	})

	return Ok(&Empty{}, "Account updated successfully")
}

// DeleteAccount 删除账户
// 先删除身份（身份已不存在视为成功），再显式删除 Profile Store 行
// 身份服务在数据库之外，无法依赖外键级联删除账户行
func (s *provisioningService) DeleteAccount(ctx context.Context, id int64, actorID int64) Result[Empty] {
	if actorID != 0 && actorID == id {
		return Fail[Empty](newError(ErrValidation, "cannot delete your own account"), "Cannot delete your own account")
	}

	// 1. 查询账户
	account, res, ok := s.loadAccount(ctx, id)
	if !ok {
		return res
	}

	// 2. 删除身份；identity_id 为空（历史残留）时跳过
	if account.IdentityID != nil && *account.IdentityID != "" {
		err := s.identity.DeleteIdentity(ctx, *account.IdentityID)
		if err != nil && !errors.Is(err, identity.ErrNotFound) {
			s.logger.Error("Failed to delete identity",
				zap.Int64("account_id", id),
				zap.String("identity_id", *account.IdentityID),
				zap.Error(err),
			)
			return Fail[Empty](wrapError(ErrIdentityProvider, err), "Failed to delete account")
		}
	} else {
		s.logger.Info("Account has no identity, skipping identity delete", zap.Int64("account_id", id))
	}

	entry := domain.AuditLogEntry{
		Type:        domain.AccountAuditType(account.Kind, "DELETE"),
		ActorID:     actorRef(actorID),
		ActedOnID:   &account.ID,
		ActedOnType: strPtr(domain.TargetAccount),
		Message:     fmt.Sprintf("Deleted %s account %s", strings.ToLower(string(account.Kind)), account.Email),
		Metadata: map[string]any{
			"email":     account.Email,
			"full_name": account.FullName,
		},
	}

	// 3. 删除账户行（staff_profiles 级联删除）
	err := s.accounts.DeleteAccount(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		// 身份已删除，账户无法登录；账户行交给对账清理
		s.logger.Error("Identity deleted but profile delete failed",
			zap.Int64("account_id", id),
			zap.Error(wrapError(ErrProfileStore, err)),
		)
		orphan := Orphan{Kind: OrphanProfile, AccountID: id, Reason: "delete_account: profile delete failed: " + err.Error()}
		if account.IdentityID != nil {
			orphan.IdentityID = *account.IdentityID
		}
		reportOrphan(ctx, s.opts.Orphans, orphan, s.logger)

		entry.Metadata["profile_cleanup"] = "pending"
		s.audit.Append(ctx, entry)
		return Warn[Empty]("Account login was removed, but the profile record could not be deleted and has been queued for cleanup")
	}

	// 4. 审计
	s.audit.Append(ctx, entry)
	return Ok(&Empty{}, "Account deleted successfully")
}

func (s *provisioningService) loadAccount(ctx context.Context, id int64) (*domain.Account, Result[Empty], bool) {
	account, err := s.accounts.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, Fail[Empty](newError(ErrNotFound, "account %d not found", id), "Account not found"), false
		}
		s.logger.Error("Failed to load account", zap.Int64("account_id", id), zap.Error(err))
		return nil, Fail[Empty](wrapError(ErrProfileStore, err), "Failed to load account"), false
	}
	return account, Result[Empty]{}, true
}

// ============================================
// 幂等键
// ============================================

const idempotencyPending = "pending"

func idempotencyKey(key string) string {
	return "provisioning:idem:" + key
}

// idempotentRecord 幂等键完成后保存的内容
type idempotentRecord struct {
	Fingerprint string          `json:"fingerprint"`
	Account     *domain.Account `json:"account"`
}

// requestFingerprint 请求摘要（不含密码）；同一个幂等键只能用于相同的请求
func requestFingerprint(req *CreateAccountRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s\n%s\n", req.Kind, strings.ToLower(req.Email), req.FullName)
	if req.ProfilePictureURL != nil {
		fmt.Fprintf(h, "picture=%s\n", *req.ProfilePictureURL)
	}
	if st := req.Staff; st != nil {
		fmt.Fprintf(h, "branch=%d\nrole=%d\n", st.BranchID, st.StaffRoleID)
		if st.PhoneNumber != nil {
			fmt.Fprintf(h, "phone=%s\n", *st.PhoneNumber)
		}
		if st.Nationality != nil {
			fmt.Fprintf(h, "nationality=%s\n", *st.Nationality)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// claimIdempotencyKey 返回 (已完成的账户, 是否占用成功, 错误)
// Redis 不可用时放弃幂等保护，继续执行
func (s *provisioningService) claimIdempotencyKey(ctx context.Context, key, fingerprint string) (*domain.Account, bool, error) {
	k := idempotencyKey(key)
	ok, err := s.opts.IdempotencyKV.SetNX(ctx, k, idempotencyPending, s.opts.IdempotencyTTL)
	if err != nil {
		s.logger.Warn("Idempotency store unavailable", zap.String("key", key), zap.Error(err))
		return nil, false, nil
	}
	if ok {
		return nil, true, nil
	}

	val, err := s.opts.IdempotencyKV.Get(ctx, k)
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			// 已过期或刚被释放
			return nil, false, newError(ErrValidation, "request with idempotency key %q is being retried, try again", key)
		}
		s.logger.Warn("Idempotency store unavailable", zap.String("key", key), zap.Error(err))
		return nil, false, nil
	}
	if val == idempotencyPending {
		return nil, false, newError(ErrValidation, "request with idempotency key %q is still in progress", key)
	}
	var record idempotentRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil || record.Account == nil {
		return nil, false, newError(ErrValidation, "idempotency key %q was used by another request", key)
	}
	if record.Fingerprint != fingerprint {
		return nil, false, newError(ErrValidation, "idempotency key %q was used for a different request", key)
	}
	return record.Account, false, nil
}

func (s *provisioningService) storeIdempotentResult(ctx context.Context, key, fingerprint string, account *domain.Account) {
	if key == "" {
		return
	}
	raw, err := json.Marshal(idempotentRecord{Fingerprint: fingerprint, Account: account})
	if err == nil {
		err = s.opts.IdempotencyKV.Set(context.WithoutCancel(ctx), key, string(raw), s.opts.IdempotencyTTL)
	}
	if err != nil {
		s.logger.Warn("Failed to store idempotent result", zap.String("key", key), zap.Error(err))
	}
}

func (s *provisioningService) releaseIdempotencyKey(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.opts.IdempotencyKV.Del(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

// ============================================
// helpers
// ============================================

func validateCreate(req *CreateAccountRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)

	if req.Kind != domain.AccountKindAdmin && req.Kind != domain.AccountKindStaff {
		return newError(ErrValidation, "unknown account kind %q", req.Kind)
	}
	if req.Email == "" || strings.TrimSpace(req.Password) == "" || req.FullName == "" {
		return newError(ErrValidation, "email, password and full name are required")
	}
	if !strings.Contains(req.Email, "@") {
		return newError(ErrValidation, "invalid email %q", req.Email)
	}
	switch req.Kind {
	case domain.AccountKindStaff:
		if req.Staff == nil || req.Staff.BranchID <= 0 || req.Staff.StaffRoleID <= 0 {
			return newError(ErrValidation, "staff accounts require a branch and a staff role")
		}
	case domain.AccountKindAdmin:
		if req.Staff != nil {
			return newError(ErrValidation, "admin accounts have no staff attributes")
		}
	}
	return nil
}

func actorRef(actorID int64) *int64 {
	if actorID == 0 {
		return nil
	}
	return &actorID
}

func strPtr(s string) *string { return &s }

// trimOptional 去除空白；空字符串视为未提供
func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
