package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/superproxy/relay-gateway/internal/api/handler"
	"github.com/superproxy/relay-gateway/internal/core/domain"
)

type adminFixture struct {
	nodes     *stubNodeRepo
	domains   *stubDomainRepo
	accounts  *stubAccountRepo
	allocator *stubAllocator
	e         http.Handler
}

func newAdminFixture() *adminFixture {
	f := &adminFixture{
		nodes:     &stubNodeRepo{},
		domains:   &stubDomainRepo{},
		accounts:  &stubAccountRepo{accounts: map[string]*domain.Account{}},
		allocator: &stubAllocator{},
	}
	e := newTestEcho()
	h := handler.NewAdminHandler(f.nodes, f.domains, f.accounts, f.allocator, zerolog.Nop())
	e.POST("/api/admin/nodes", h.RegisterNode)
	e.GET("/api/admin/nodes", h.ListNodes)
	e.POST("/api/admin/domains", h.RegisterDomain)
	e.GET("/api/admin/domains", h.ListDomains)
	e.POST("/api/admin/users/:id/block", h.BlockUser)
	f.e = e
	return f
}

func postJSON(e http.Handler, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAdminRegisterNode_StartsProvisioning(t *testing.T) {
	f := newAdminFixture()

	rec := postJSON(f.e, "/api/admin/nodes", `{"name":"fra-1","publicIp":"203.0.113.9"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	var got domain.ProxyNode
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.Status != domain.NodeProvisioning {
		t.Errorf("status = %q, want provisioning", got.Status)
	}
}

func TestAdminRegisterNode_RejectsBadIP(t *testing.T) {
	f := newAdminFixture()

	rec := postJSON(f.e, "/api/admin/nodes", `{"name":"fra-1","publicIp":"not-an-ip"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAdminRegisterNode_DuplicateIs409(t *testing.T) {
	f := newAdminFixture()
	f.nodes.createErr = domain.ErrNodeExists

	rec := postJSON(f.e, "/api/admin/nodes", `{"name":"fra-1","publicIp":"203.0.113.9"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestAdminRegisterDomain_DefaultsToStandby(t *testing.T) {
	f := newAdminFixture()

	rec := postJSON(f.e, "/api/admin/domains", `{"domainName":"edge2.example.com"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	var got domain.EntryDomain
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.Status != domain.DomainStandby {
		t.Errorf("status = %q, want standby", got.Status)
	}
}

func TestAdminRegisterDomain_ActiveFlag(t *testing.T) {
	f := newAdminFixture()

	rec := postJSON(f.e, "/api/admin/domains", `{"domainName":"edge1.example.com","active":true}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	var got domain.EntryDomain
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.Status != domain.DomainActive {
		t.Errorf("status = %q, want active", got.Status)
	}
}

func TestAdminBlockUser_ReleasesAllocation(t *testing.T) {
	f := newAdminFixture()
	f.accounts.accounts["u1"] = &domain.Account{ID: "u1", PlanID: "pro"}

	rec := postJSON(f.e, "/api/admin/users/u1/block", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if !f.accounts.blocked["u1"] {
		t.Error("account not blocked")
	}
	if len(f.allocator.released) != 1 || f.allocator.released[0] != "u1" {
		t.Errorf("released = %v, want [u1]", f.allocator.released)
	}
}

func TestAdminBlockUser_UnblockKeepsAllocationAlone(t *testing.T) {
	f := newAdminFixture()
	f.accounts.accounts["u1"] = &domain.Account{ID: "u1", PlanID: "pro", Blocked: true}

	rec := postJSON(f.e, "/api/admin/users/u1/block", `{"blocked":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if f.accounts.blocked["u1"] {
		t.Error("account still blocked")
	}
	if len(f.allocator.released) != 0 {
		t.Errorf("released = %v, want none on unblock", f.allocator.released)
	}
}

func TestAdminBlockUser_UnknownUserIs404(t *testing.T) {
	f := newAdminFixture()

	rec := postJSON(f.e, "/api/admin/users/ghost/block", `{}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
