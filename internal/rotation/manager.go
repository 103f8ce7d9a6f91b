package rotation

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/charlaomota/V360/internal/domain"
)

const (
	DefaultUnhealthyThreshold = 5

	DefaultRateLimitCooldown = 300 * time.Second
	DefaultQuotaCooldown     = 3600 * time.Second
	DefaultGenericCooldown   = 60 * time.Second
)

// Credential - один API ключ с состоянием здоровья.
// Полный ключ никогда не логируется, только Tag().
type Credential struct {
	Key string

	consecutiveErrors int
	lastUsedAt        time.Time
	cooldown          time.Duration
}

// Tag возвращает усеченный идентификатор ключа для логов и отчетов
func (c *Credential) Tag() string {
	if len(c.Key) <= 10 {
		return c.Key + "..."
	}
	return c.Key[:10] + "..."
}

type pool struct {
	creds  []*Credential
	cursor int
}

type Config struct {
	UnhealthyThreshold int
	RateLimitCooldown  time.Duration
	QuotaCooldown      time.Duration
	GenericCooldown    time.Duration
}

// Manager ротирует ключи по провайдерам с graduated backoff.
// Состояние process-wide, безопасно при конкурентных агрегациях.
type Manager struct {
	mu     sync.Mutex
	pools  map[string]*pool
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

func NewManager(keys map[string][]string, cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UnhealthyThreshold <= 0 {
		cfg.UnhealthyThreshold = DefaultUnhealthyThreshold
	}
	if cfg.RateLimitCooldown <= 0 {
		cfg.RateLimitCooldown = DefaultRateLimitCooldown
	}
	if cfg.QuotaCooldown <= 0 {
		cfg.QuotaCooldown = DefaultQuotaCooldown
	}
	if cfg.GenericCooldown <= 0 {
		cfg.GenericCooldown = DefaultGenericCooldown
	}

	m := &Manager{
		pools:  make(map[string]*pool),
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}

	for provider, providerKeys := range keys {
		p := &pool{}
		for _, k := range providerKeys {
			if k == "" {
				continue
			}
			p.creds = append(p.creds, &Credential{
				Key: k,
				// стартуем "давно не использованным", чтобы ключ был сразу доступен
				lastUsedAt: m.now().Add(-time.Hour),
			})
		}
		if len(p.creds) > 0 {
			m.pools[provider] = p
			logger.Info("credential pool loaded",
				zap.String("provider", provider),
				zap.Int("keys", len(p.creds)),
			)
		}
	}

	return m
}

// WithClock подменяет источник времени. Только для тестов.
// Переинициализирует lastUsedAt относительно нового времени, сохраняя
// инвариант "ключ стартует давно не использованным".
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	for _, p := range m.pools {
		for _, cred := range p.creds {
			cred.lastUsedAt = now().Add(-time.Hour)
		}
	}
	return m
}

// Select возвращает следующий пригодный ключ провайдера.
// Пустой пул - провайдер не сконфигурирован, это не ошибка: (nil, false).
// Round-robin от курсора, максимум poolSize кандидатов; если все в cooldown
// или нездоровы - fallback на least-recently-used (доступность важнее
// строгого соблюдения лимитов). Счетчики ошибок не трогает.
func (m *Manager) Select(provider string) (*Credential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pools[provider]
	if !ok || len(p.creds) == 0 {
		return nil, false
	}

	now := m.now()

	for i := 0; i < len(p.creds); i++ {
		cred := p.creds[p.cursor]
		p.cursor = (p.cursor + 1) % len(p.creds)
		if m.available(cred, now) {
			cred.lastUsedAt = now
			return cred, true
		}
	}

	// все в cooldown - берем самый давно использованный
	best := p.creds[0]
	for _, cred := range p.creds[1:] {
		if cred.lastUsedAt.Before(best.lastUsedAt) {
			best = cred
		}
	}
	best.lastUsedAt = now

	m.logger.Warn("all credentials exhausted, using least recently used",
		zap.String("provider", provider),
		zap.String("key", best.Tag()),
	)
	return best, true
}

func (m *Manager) available(cred *Credential, now time.Time) bool {
	if now.Sub(cred.lastUsedAt) < cred.cooldown {
		return false
	}
	return cred.consecutiveErrors <= m.cfg.UnhealthyThreshold
}

// RecordSuccess сбрасывает счетчик ошибок ключа. Идемпотентен.
func (m *Manager) RecordSuccess(provider string, cred *Credential) {
	if cred == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cred.consecutiveErrors = 0
}

// RecordFailure инкрементит счетчик и ставит cooldown по классу отказа.
// Cooldown перезаписывается, не суммируется - последняя классификация важнее.
func (m *Manager) RecordFailure(provider string, cred *Credential, class domain.FailureClass) {
	if cred == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cred.consecutiveErrors++
	cred.cooldown = m.cooldownFor(class)

	m.logger.Warn("credential failure recorded",
		zap.String("provider", provider),
		zap.String("key", cred.Tag()),
		zap.String("class", class.String()),
		zap.Int("consecutive_errors", cred.consecutiveErrors),
		zap.Duration("cooldown", cred.cooldown),
	)
}

func (m *Manager) cooldownFor(class domain.FailureClass) time.Duration {
	switch class {
	case domain.FailureRateLimit:
		return m.cfg.RateLimitCooldown
	case domain.FailureQuotaExceeded:
		return m.cfg.QuotaCooldown
	default:
		return m.cfg.GenericCooldown
	}
}

// Status возвращает состояние пула провайдера
func (m *Manager) Status(provider string) domain.ProviderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pools[provider]
	if !ok || len(p.creds) == 0 {
		return domain.ProviderStatus{State: domain.PoolUnconfigured}
	}

	now := m.now()
	available := 0
	for _, cred := range p.creds {
		if m.available(cred, now) {
			available++
		}
	}

	state := domain.PoolHealthy
	if available == 0 {
		state = domain.PoolDegraded
	}

	return domain.ProviderStatus{
		State:         state,
		TotalKeys:     len(p.creds),
		AvailableKeys: available,
	}
}

// Providers возвращает имена сконфигурированных провайдеров
func (m *Manager) Providers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.pools))
	for name := range m.pools {
		names = append(names, name)
	}
	return names
}

// Reset зануляет ошибки и cooldown для одного провайдера.
// Операторский рычаг восстановления, в обычном потоке не вызывается.
func (m *Manager) Reset(provider string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.pools[provider]; ok {
		resetPool(p)
		m.logger.Info("credential errors reset", zap.String("provider", provider))
	}
}

// ResetAll зануляет ошибки и cooldown для всех провайдеров
func (m *Manager) ResetAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.pools {
		resetPool(p)
	}
	m.logger.Info("all credential errors reset")
}

func resetPool(p *pool) {
	for _, cred := range p.creds {
		cred.consecutiveErrors = 0
		cred.cooldown = 0
	}
}
