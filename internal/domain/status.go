// Package domain defines the core entities of the PARE/SIGA coordination
// system: endpoint status, pending confirmations and transitions, and the
// persisted closure and weather history models mapped with GORM.
package domain

import (
	"fmt"
	"time"
)

// Endpoint identifies one of the two control points of the single-lane segment.
type Endpoint string

const (
	// EndpointCenter is the Quarto Centenário side.
	EndpointCenter Endpoint = "CENTER"
	// EndpointGoio is the Goioerê side.
	EndpointGoio Endpoint = "GOIO"
)

// Other returns the opposite control point.
func (e Endpoint) Other() Endpoint {
	if e == EndpointCenter {
		return EndpointGoio
	}
	return EndpointCenter
}

// Valid reports whether e names a known control point.
func (e Endpoint) Valid() bool {
	return e == EndpointCenter || e == EndpointGoio
}

// State is the traffic state of a single endpoint. The values are the wire
// strings used since the first deployment, so they stay in Portuguese.
type State string

const (
	StateOpen          State = "ABERTO"
	StateClosed        State = "FECHADO"
	StateTransitioning State = "TRANSICAO"
)

// EndpointStatus is the committed status of one endpoint.
type EndpointStatus struct {
	Endpoint  Endpoint  `json:"endpoint"`
	State     State     `json:"state"`
	ChangedAt time.Time `json:"changed_at"`
	ChangedBy string    `json:"changed_by"`
}

// StatusPair holds both endpoints and is committed as a single record, so a
// reader can observe a stale pair but never a torn one. The stored pair only
// ever contains ABERTO/FECHADO; TRANSICAO is overlaid at read time from the
// active PendingTransition.
type StatusPair struct {
	Center EndpointStatus `json:"center"`
	Goio   EndpointStatus `json:"goio"`
}

// NewStatusPair returns the first-use default: Centenário open, Goioerê closed.
func NewStatusPair(now time.Time) StatusPair {
	return StatusPair{
		Center: EndpointStatus{Endpoint: EndpointCenter, State: StateOpen, ChangedAt: now, ChangedBy: "sistema"},
		Goio:   EndpointStatus{Endpoint: EndpointGoio, State: StateClosed, ChangedAt: now, ChangedBy: "sistema"},
	}
}

// Get returns the status of endpoint e.
func (p StatusPair) Get(e Endpoint) EndpointStatus {
	if e == EndpointCenter {
		return p.Center
	}
	return p.Goio
}

// OpenEndpoint returns the endpoint that currently has right of way.
// Only meaningful on a validated pair.
func (p StatusPair) OpenEndpoint() Endpoint {
	if p.Center.State == StateOpen {
		return EndpointCenter
	}
	return EndpointGoio
}

// Flipped returns a new pair with right of way swapped. Both entries carry
// the same timestamp and author so the flip reads as one commit.
func (p StatusPair) Flipped(now time.Time, user string) StatusPair {
	next := p
	next.Center.State, next.Goio.State = p.Goio.State, p.Center.State
	next.Center.ChangedAt, next.Goio.ChangedAt = now, now
	next.Center.ChangedBy, next.Goio.ChangedBy = user, user
	return next
}

// WithState returns a copy of the pair with endpoint e set to state s.
func (p StatusPair) WithState(e Endpoint, s State) StatusPair {
	next := p
	if e == EndpointCenter {
		next.Center.State = s
	} else {
		next.Goio.State = s
	}
	return next
}

// Validate rejects pairs that violate the single-lane invariant: exactly one
// endpoint open and one closed. A violating pair must never be committed.
func (p StatusPair) Validate() error {
	if p.Center.State == StateOpen && p.Goio.State == StateClosed {
		return nil
	}
	if p.Center.State == StateClosed && p.Goio.State == StateOpen {
		return nil
	}
	return fmt.Errorf("invalid status pair: center=%s goio=%s", p.Center.State, p.Goio.State)
}
