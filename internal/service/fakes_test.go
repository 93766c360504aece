package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/applysmartuk/statement_server/internal/model/dto"
	"github.com/applysmartuk/statement_server/internal/pkg/payment"
	"github.com/applysmartuk/statement_server/internal/pkg/tasks"
)

type fakeGenerator struct {
	text  string
	err   error
	delay time.Duration
	calls int
}

func (g *fakeGenerator) Generate(ctx context.Context, in dto.GenerationInput) (string, error) {
	g.calls++
	time.Sleep(g.delay)
	if g.err != nil {
		return "", g.err
	}
	return g.text, nil
}

type sentMail struct {
	to        string
	statement string
	link      string
}

type fakeNotifier struct {
	mu            sync.Mutex
	statements    []sentMail
	noCreditMails []sentMail
	err           error
}

func (n *fakeNotifier) SendStatement(ctx context.Context, to, name, role, trust, statement string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	n.statements = append(n.statements, sentMail{to: to, statement: statement})
	return nil
}

func (n *fakeNotifier) SendInsufficientCredits(ctx context.Context, to, name, checkoutURL string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.noCreditMails = append(n.noCreditMails, sentMail{to: to, link: checkoutURL})
	return nil
}

type fakeProvider struct {
	sessions []payment.CheckoutParams
	products []payment.ProductParams
	err      error
}

func (p *fakeProvider) CreateCheckoutSession(ctx context.Context, params payment.CheckoutParams) (*payment.CheckoutSession, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.sessions = append(p.sessions, params)
	id := "cs_test_" + uuid.NewString()[:8]
	return &payment.CheckoutSession{ID: id, URL: "https://checkout.stripe.com/pay/" + id}, nil
}

func (p *fakeProvider) CreateProductPrice(ctx context.Context, params payment.ProductParams) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.products = append(p.products, params)
	return fmt.Sprintf("price_auto_%d", len(p.products)), nil
}

type fakeStore struct {
	keys []string
	err  error
}

func (s *fakeStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.keys = append(s.keys, key)
	return "https://files.example.com/" + key, nil
}

// syncRunner 同步执行任务，便于断言
type syncRunner struct {
	names    []string
	outcomes []tasks.Outcome
}

func (r *syncRunner) Submit(name string, fn tasks.Func) string {
	r.names = append(r.names, name)
	r.outcomes = append(r.outcomes, fn(context.Background()))
	return fmt.Sprintf("task-%d", len(r.names))
}

type fakeGuard struct {
	mu       sync.Mutex
	state    map[string]string
	claimErr error
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{state: map[string]string{}}
}

func (g *fakeGuard) Claim(ctx context.Context, eventID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.claimErr != nil {
		return false, g.claimErr
	}
	if _, ok := g.state[eventID]; ok {
		return false, nil
	}
	g.state[eventID] = "processing"
	return true, nil
}

func (g *fakeGuard) Complete(ctx context.Context, eventID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state[eventID] = "done"
	return nil
}

func (g *fakeGuard) Release(ctx context.Context, eventID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.state, eventID)
	return nil
}
