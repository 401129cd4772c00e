// Package jwtsession is the engine's session provider. It holds the seller token the
// user signed in with and tells subscribers about login and logout.
package jwtsession

import (
	"fmt"
	"sync"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/auth"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/logger"
)

// Provider implements domain.SessionProvider and httpcatalog.TokenSource.
type Provider struct {
	mu        sync.RWMutex
	secret    string
	token     string
	ident     domain.Identity
	listeners map[int]func(domain.Identity)
	nextID    int
	logger    *logger.Logger
}

// New creates a signed-out provider. secret may be empty, in which case tokens are
// only checked for expiry; the catalog service verifies them anyway.
func New(secret string, log *logger.Logger) *Provider {
	if log == nil {
		log = logger.Nop()
	}
	return &Provider{
		secret:    secret,
		listeners: make(map[int]func(domain.Identity)),
		logger:    log,
	}
}

func (p *Provider) Current() domain.Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ident
}

func (p *Provider) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

func (p *Provider) OnChange(fn func(domain.Identity)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// Login signs in with token. An invalid token leaves the current identity unchanged.
func (p *Provider) Login(token string) (domain.Identity, error) {
	claims, err := auth.Parse(p.secret, token)
	if err != nil {
		p.logger.Warn("jwtsession.Provider.Login: rejected token", "error", err.Error())
		return domain.Identity{}, fmt.Errorf("login: %w", err)
	}
	ident := domain.Identity{SellerID: claims.UserID, Email: claims.Email, Authenticated: true}

	p.mu.Lock()
	p.token = token
	p.ident = ident
	p.mu.Unlock()

	p.logger.Info("jwtsession.Provider.Login: signed in", "seller_id", ident.SellerID)
	p.notify(ident)
	return ident, nil
}

func (p *Provider) Logout() {
	p.mu.Lock()
	was := p.ident.Authenticated
	p.token = ""
	p.ident = domain.Identity{}
	p.mu.Unlock()

	if was {
		p.logger.Info("jwtsession.Provider.Logout: signed out")
		p.notify(domain.Identity{})
	}
}

func (p *Provider) notify(ident domain.Identity) {
	p.mu.RLock()
	fns := make([]func(domain.Identity), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.RUnlock()

	for _, fn := range fns {
		fn(ident)
	}
}
