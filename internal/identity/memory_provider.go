package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MemoryProvider 内存身份服务，用于本地开发和测试
type MemoryProvider struct {
	mu         sync.RWMutex
	identities map[string]*memoryIdentity
	byEmail    map[string]string
}

type memoryIdentity struct {
	id           string
	email        string
	passwordHash []byte
	metadata     Metadata
}

// NewMemoryProvider 创建内存身份服务
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		identities: make(map[string]*memoryIdentity),
		byEmail:    make(map[string]string),
	}
}

var _ Provider = (*MemoryProvider)(nil)

func (p *MemoryProvider) CreateIdentity(_ context.Context, email, password string, md Metadata) (string, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byEmail[key]; ok {
		return "", fmt.Errorf("%w: %s", ErrEmailTaken, email)
	}
	id := uuid.NewString()
	p.identities[id] = &memoryIdentity{id: id, email: key, passwordHash: hash, metadata: copyMetadata(md)}
	p.byEmail[key] = id
	return id, nil
}

func (p *MemoryProvider) UpdateIdentityMetadata(_ context.Context, identityID string, md Metadata) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ident, ok := p.identities[identityID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, identityID)
	}
	ident.metadata = copyMetadata(md)
	return nil
}

func (p *MemoryProvider) DeleteIdentity(_ context.Context, identityID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ident, ok := p.identities[identityID]
	if !ok {
		return nil
	}
	delete(p.byEmail, ident.email)
	delete(p.identities, identityID)
	return nil
}

// Authenticate 校验邮箱和密码，返回 identity id
func (p *MemoryProvider) Authenticate(email, password string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return "", false
	}
	if bcrypt.CompareHashAndPassword(p.identities[id].passwordHash, []byte(password)) != nil {
		return "", false
	}
	return id, true
}

// Metadata 返回身份元数据副本
func (p *MemoryProvider) Metadata(identityID string) (Metadata, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ident, ok := p.identities[identityID]
	if !ok {
		return nil, false
	}
	return copyMetadata(ident.metadata), true
}

// Len 当前身份数量
func (p *MemoryProvider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.identities)
}

func copyMetadata(md Metadata) Metadata {
	out := make(Metadata, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
