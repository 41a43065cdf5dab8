package server

import "context"

type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// PingHealthChecker reports healthy while the underlying store answers pings.
type PingHealthChecker struct {
	pinger Pinger
}

func NewPingHealthChecker(p Pinger) *PingHealthChecker {
	return &PingHealthChecker{pinger: p}
}

func (hc *PingHealthChecker) Healthy(ctx context.Context) bool {
	return hc.pinger.Ping(ctx) == nil
}

type OkHealthChecker struct {
}

func NewOkHealthChecker() *OkHealthChecker {
	return &OkHealthChecker{}
}

func (hc *OkHealthChecker) Healthy(ctx context.Context) bool {
	return true
}
