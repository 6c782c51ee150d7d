// Package relay implements the session-gated byte relay: one gate goroutine
// per user owning that user's session count, and two pump goroutines per
// admitted relay pair splicing the client and backend websocket legs.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/superproxy/relay-gateway/internal/core/domain"
)

// errGateClosed signals that an admit raced a gate that was tearing down;
// callers retry against a fresh gate.
var errGateClosed = errors.New("relay: gate closed")

const gateMailbox = 16

// AdmitRequest carries everything a gate needs to admit one relay session.
type AdmitRequest struct {
	UserID       string
	Plan         domain.Plan
	BackendAddr  string // host:port of the allocated node
	CredentialID string
}

// Registry owns the per-user gates. Gates are spawned on first contact and
// remove themselves when their open-session count returns to zero.
type Registry struct {
	dialer   BackendDialer
	reporter *Reporter
	log      zerolog.Logger

	mu    sync.Mutex
	gates map[string]*gate
}

func NewRegistry(dialer BackendDialer, reporter *Reporter, log zerolog.Logger) *Registry {
	return &Registry{
		dialer:   dialer,
		reporter: reporter,
		log:      log,
		gates:    make(map[string]*gate),
	}
}

// Admit asks the user's gate for a session slot, dialing the backend leg on
// success. Fails with domain.ErrConcurrencyRejected when the plan's session
// bound is already met and domain.ErrBackendUnavailable when the backend dial
// fails, in that order, so a failed dial never consumes a slot.
func (r *Registry) Admit(ctx context.Context, req AdmitRequest) (*Session, error) {
	for {
		g := r.gateFor(req.UserID)
		s, err := g.admit(ctx, req)
		if errors.Is(err, errGateClosed) {
			continue
		}
		return s, err
	}
}

// OpenSessions reports the user's current open session count. Zero when no
// gate exists.
func (r *Registry) OpenSessions(userID string) int {
	r.mu.Lock()
	g, ok := r.gates[userID]
	r.mu.Unlock()
	if !ok {
		return 0
	}
	return g.openSessions()
}

func (r *Registry) gateFor(userID string) *gate {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.gates[userID]; ok {
		return g
	}
	g := newGate(userID, r)
	r.gates[userID] = g
	go g.run()
	return g
}

func (r *Registry) removeGate(g *gate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gates[g.userID] == g {
		delete(r.gates, g.userID)
	}
}

type gateReqKind int

const (
	reqAdmit gateReqKind = iota
	reqRelease
	reqCount
)

type gateReq struct {
	kind  gateReqKind
	ctx   context.Context
	admit AdmitRequest
	reply chan gateReply
}

type gateReply struct {
	session *Session
	count   int
	err     error
}

// gate is the per-user scheduling unit. All state mutation happens inside
// run(), so session counting needs no lock.
type gate struct {
	userID   string
	registry *Registry
	reqs     chan gateReq
	done     chan struct{}
}

func newGate(userID string, registry *Registry) *gate {
	return &gate{
		userID:   userID,
		registry: registry,
		reqs:     make(chan gateReq, gateMailbox),
		done:     make(chan struct{}),
	}
}

func (g *gate) run() {
	open := 0
	for req := range g.reqs {
		switch req.kind {
		case reqAdmit:
			session, err := g.handleAdmit(req, open)
			if err == nil {
				open++
			}
			req.reply <- gateReply{session: session, err: err}
			if err != nil && open == 0 {
				// Nothing to guard: a gate with no open sessions and a
				// failed admit would otherwise idle forever.
				g.shutdown()
				return
			}
		case reqRelease:
			open--
			req.reply <- gateReply{count: open}
			if open == 0 {
				g.shutdown()
				return
			}
		case reqCount:
			req.reply <- gateReply{count: open}
		}
	}
}

// handleAdmit enforces the plan's concurrency bound, then dials the backend.
// The dial happens before the slot is counted: a dial failure must not leave
// an orphaned session slot behind.
func (g *gate) handleAdmit(req gateReq, open int) (*Session, error) {
	if max := req.admit.Plan.MaxConcurrentSessions(); max > 0 && open >= max {
		return nil, domain.ErrConcurrencyRejected
	}

	backend, err := g.registry.dialer.Dial(req.ctx, req.admit.BackendAddr, req.admit.CredentialID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}

	return &Session{
		ID:       uuid.NewString(),
		UserID:   g.userID,
		backend:  backend,
		gate:     g,
		reporter: g.registry.reporter,
		log:      g.registry.log.With().Str("user_id", g.userID).Logger(),
	}, nil
}

// shutdown runs when the open-session count hits zero: deregister, close the
// done channel, then answer anything that was already queued so no caller
// blocks on a dead gate.
func (g *gate) shutdown() {
	g.registry.removeGate(g)
	close(g.done)
	for {
		select {
		case req := <-g.reqs:
			req.reply <- gateReply{err: errGateClosed}
		default:
			return
		}
	}
}

func (g *gate) admit(ctx context.Context, req AdmitRequest) (*Session, error) {
	reply, err := g.send(gateReq{kind: reqAdmit, ctx: ctx, admit: req})
	if err != nil {
		return nil, err
	}
	return reply.session, reply.err
}

func (g *gate) release() int {
	reply, err := g.send(gateReq{kind: reqRelease})
	if err != nil {
		// Unreachable in practice: a gate never exits while a session that
		// could release is still open.
		return 0
	}
	return reply.count
}

func (g *gate) openSessions() int {
	reply, err := g.send(gateReq{kind: reqCount})
	if err != nil {
		return 0
	}
	return reply.count
}

func (g *gate) send(req gateReq) (gateReply, error) {
	req.reply = make(chan gateReply, 1)

	select {
	case g.reqs <- req:
	case <-g.done:
		return gateReply{}, errGateClosed
	}

	select {
	case reply := <-req.reply:
		if reply.err != nil {
			return gateReply{}, reply.err
		}
		return reply, nil
	case <-g.done:
		// The gate exited between our send and its drain. If the drain got
		// to the message first the reply is already buffered; otherwise the
		// request was never processed.
		select {
		case reply := <-req.reply:
			if reply.err != nil {
				return gateReply{}, reply.err
			}
			return reply, nil
		default:
			return gateReply{}, errGateClosed
		}
	}
}

// BackendDialer dials the backend relay leg of a session.
type BackendDialer interface {
	Dial(ctx context.Context, addr, credentialID string) (*websocket.Conn, error)
}
