package goSession

import "time"

// SecurityReport summarizes the security-relevant settings of a built Engine
// without exposing any secret.
type SecurityReport struct {
	ProductionMode       bool
	SigningAlgorithm     string
	KeyID                string
	Issuer               string
	Audience             string
	AccessTTL            time.Duration
	RefreshTTL           time.Duration
	SecureCookies        bool
	RevokeOnRefreshReuse bool
	RateLimitingActive   bool
	RateLimit            int
	RateWindow           time.Duration
	StoreTimeout         time.Duration
	IdentityTimeout      time.Duration
	AuditEnabled         bool
}

// SecurityReport returns the report for e.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	c := e.config
	return SecurityReport{
		ProductionMode:       c.Security.ProductionMode,
		SigningAlgorithm:     string(c.JWT.Algorithm),
		KeyID:                c.JWT.KeyID,
		Issuer:               c.JWT.Issuer,
		Audience:             c.JWT.Audience,
		AccessTTL:            c.JWT.AccessTTL,
		RefreshTTL:           c.Session.RefreshTTL,
		SecureCookies:        c.Cookies.Secure || c.Security.ProductionMode,
		RevokeOnRefreshReuse: c.Security.RevokeOnRefreshReuse,
		RateLimitingActive:   e.limiter != nil,
		RateLimit:            c.RateLimit.Limit,
		RateWindow:           c.RateLimit.Window,
		StoreTimeout:         c.Timeouts.Store,
		IdentityTimeout:      c.Timeouts.Identity,
		AuditEnabled:         e.audit != nil,
	}
}
