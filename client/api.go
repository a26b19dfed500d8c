package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

func segment(value string) string {
	return url.PathEscape(value)
}

// pageQuery appends paging to query and drops empty values.
func pageQuery(query url.Values, page, limit int) string {
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	for key, values := range query {
		if len(values) == 0 || values[0] == "" {
			query.Del(key)
		}
	}
	if len(query) == 0 {
		return ""
	}
	return "?" + query.Encode()
}

// ownerPath returns the collection a user of kind lives under.
func ownerPath(kind UserKind) (string, error) {
	switch kind {
	case Student:
		return "/api/alunos/", nil
	case Professor:
		return "/api/professores/", nil
	case Company:
		return "/api/empresas/", nil
	}
	return "", fmt.Errorf("client: unknown user kind %q", kind)
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (AuthResult, error) {
	var out AuthResult
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &out); err != nil {
		return AuthResult{}, err
	}
	c.SetToken(out.Token)
	return out, nil
}

// Login authenticates and keeps the token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	var out AuthResult
	in := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", in, &out); err != nil {
		return AuthResult{}, err
	}
	c.SetToken(out.Token)
	return out, nil
}

// UpdateProfile changes a student's own name, email or password. Nil fields
// are left as they are.
func (c *Client) UpdateProfile(ctx context.Context, studentID string, in ProfileUpdate) (User, error) {
	var out User
	err := c.do(ctx, http.MethodPut, "/api/alunos/"+segment(studentID), in, &out)
	return out, err
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var out User
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out)
	return out, err
}

func (c *Client) Institutions(ctx context.Context) ([]Institution, error) {
	var out []Institution
	err := c.do(ctx, http.MethodGet, "/api/instituicoes", nil, &out)
	return out, err
}

func (c *Client) Balance(ctx context.Context, kind UserKind, userID string) (Balance, error) {
	base, err := ownerPath(kind)
	if err != nil {
		return Balance{}, err
	}
	var out Balance
	err = c.do(ctx, http.MethodGet, base+segment(userID)+"/saldo", nil, &out)
	return out, err
}

func (c *Client) Statement(ctx context.Context, kind UserKind, userID string, page, limit int) ([]Transaction, error) {
	base, err := ownerPath(kind)
	if err != nil {
		return nil, err
	}
	var out []Transaction
	err = c.do(ctx, http.MethodGet, base+segment(userID)+"/extrato"+pageQuery(url.Values{}, page, limit), nil, &out)
	return out, err
}

func (c *Client) Students(ctx context.Context, professorID string) ([]Student, error) {
	var out []Student
	err := c.do(ctx, http.MethodGet, "/api/professores/"+segment(professorID)+"/alunos", nil, &out)
	return out, err
}

// SendCoins transfers from a professor to a student. A non-empty requestID
// makes retries safe.
func (c *Client) SendCoins(ctx context.Context, professorID, studentID string, amount int64, memo, requestID string) (Receipt, error) {
	in := map[string]any{"alunoId": studentID, "valor": amount, "motivo": memo}
	var headers map[string]string
	if requestID != "" {
		headers = map[string]string{"Idempotency-Key": requestID}
	}
	var out Receipt
	err := c.doWithHeaders(ctx, http.MethodPost, "/api/professores/"+segment(professorID)+"/enviar-moedas", headers, in, &out)
	return out, err
}

func (c *Client) ApplyCode(ctx context.Context, professorID, code string) (CodeResult, error) {
	var out CodeResult
	err := c.do(ctx, http.MethodPost, "/api/professores/"+segment(professorID)+"/aplicar-codigo", map[string]string{"codigo": code}, &out)
	return out, err
}

func (c *Client) CreateAdvantage(ctx context.Context, companyID string, in AdvantageInput) (Advantage, error) {
	var out Advantage
	err := c.do(ctx, http.MethodPost, "/api/empresas/"+segment(companyID)+"/vantagens", in, &out)
	return out, err
}

func (c *Client) SetAdvantageActive(ctx context.Context, companyID, advantageID string, active bool) (Advantage, error) {
	var out Advantage
	path := "/api/empresas/" + segment(companyID) + "/vantagens/" + segment(advantageID)
	err := c.do(ctx, http.MethodPatch, path, map[string]bool{"ativo": active}, &out)
	return out, err
}

func (c *Client) UpdateAdvantagePrice(ctx context.Context, companyID, advantageID string, price int64) (Advantage, error) {
	var out Advantage
	path := "/api/empresas/" + segment(companyID) + "/vantagens/" + segment(advantageID)
	err := c.do(ctx, http.MethodPatch, path, map[string]int64{"preco": price}, &out)
	return out, err
}

func (c *Client) DeleteAdvantage(ctx context.Context, companyID, advantageID string) error {
	path := "/api/empresas/" + segment(companyID) + "/vantagens/" + segment(advantageID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) Advantages(ctx context.Context) ([]Advantage, error) {
	var out []Advantage
	err := c.do(ctx, http.MethodGet, "/api/vantagens", nil, &out)
	return out, err
}

func (c *Client) ActiveAdvantages(ctx context.Context) ([]Advantage, error) {
	var out []Advantage
	err := c.do(ctx, http.MethodGet, "/api/vantagens/ativas", nil, &out)
	return out, err
}

func (c *Client) CompanyAdvantages(ctx context.Context, companyID string) ([]Advantage, error) {
	var out []Advantage
	err := c.do(ctx, http.MethodGet, "/api/vantagens/empresa/"+segment(companyID), nil, &out)
	return out, err
}

func (c *Client) Advantage(ctx context.Context, advantageID string) (Advantage, error) {
	var out Advantage
	err := c.do(ctx, http.MethodGet, "/api/vantagens/"+segment(advantageID), nil, &out)
	return out, err
}

func (c *Client) Redeem(ctx context.Context, studentID, advantageID string) (Voucher, error) {
	var out Voucher
	err := c.do(ctx, http.MethodPost, "/api/alunos/"+segment(studentID)+"/resgatar-vantagem", map[string]string{"vantagemId": advantageID}, &out)
	return out, err
}

// Redemptions lists a student's vouchers. A nil consumed returns all of them.
func (c *Client) Redemptions(ctx context.Context, studentID string, consumed *bool) ([]Voucher, error) {
	path := "/api/alunos/" + segment(studentID) + "/resgates"
	if consumed != nil {
		path += "?utilizado=" + strconv.FormatBool(*consumed)
	}
	var out []Voucher
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) ValidateOwnRedemption(ctx context.Context, studentID, voucherID string) error {
	path := "/api/alunos/" + segment(studentID) + "/resgates/" + segment(voucherID) + "/validar"
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

// Redemption looks a voucher up by id or code.
func (c *Client) Redemption(ctx context.Context, identifier string) (Voucher, error) {
	var out Voucher
	err := c.do(ctx, http.MethodGet, "/api/resgates/"+segment(identifier), nil, &out)
	return out, err
}

func (c *Client) ValidateRedemption(ctx context.Context, identifier string) error {
	return c.do(ctx, http.MethodPost, "/api/resgates/"+segment(identifier)+"/validar", nil, nil)
}

func (c *Client) CreatePaymentLink(ctx context.Context, studentID string, amount int64) (PaymentLink, error) {
	var out PaymentLink
	err := c.do(ctx, http.MethodPost, "/api/alunos/"+segment(studentID)+"/link-pagamento", map[string]int64{"valor": amount}, &out)
	return out, err
}

func (c *Client) PaymentLink(ctx context.Context, studentID string) (PaymentLink, error) {
	var out PaymentLink
	err := c.do(ctx, http.MethodGet, "/api/alunos/"+segment(studentID)+"/link-pagamento", nil, &out)
	return out, err
}

func (c *Client) DeletePaymentLink(ctx context.Context, studentID string) error {
	return c.do(ctx, http.MethodDelete, "/api/alunos/"+segment(studentID)+"/link-pagamento", nil, nil)
}

func (c *Client) PayLink(ctx context.Context, payerID, link string) (Receipt, error) {
	var out Receipt
	err := c.do(ctx, http.MethodPost, "/api/alunos/pagar-link", map[string]string{"pagadorId": payerID, "link": link}, &out)
	return out, err
}

func (c *Client) Allowance(ctx context.Context, professorID string, amount int64, memo string) (Receipt, error) {
	var out Receipt
	in := map[string]any{"professorId": professorID, "valor": amount, "motivo": memo}
	err := c.do(ctx, http.MethodPost, "/admin/allowance", in, &out)
	return out, err
}

func (c *Client) Reconcile(ctx context.Context) ([]Reconciliation, error) {
	var out []Reconciliation
	err := c.do(ctx, http.MethodGet, "/admin/reconcile", nil, &out)
	return out, err
}

// AuditLogs reads the audit trail. An empty entity lists every entity type.
func (c *Client) AuditLogs(ctx context.Context, entity string, page, limit int) ([]AuditEntry, error) {
	var out []AuditEntry
	err := c.do(ctx, http.MethodGet, "/admin/audit"+pageQuery(url.Values{"entity": {entity}}, page, limit), nil, &out)
	return out, err
}

func (c *Client) AllTransactions(ctx context.Context, page, limit int) ([]Transaction, error) {
	var out []Transaction
	err := c.do(ctx, http.MethodGet, "/admin/transactions"+pageQuery(url.Values{}, page, limit), nil, &out)
	return out, err
}

func (c *Client) ReconcileUser(ctx context.Context, userID string) (Reconciliation, error) {
	var out Reconciliation
	err := c.do(ctx, http.MethodGet, "/admin/reconcile/"+segment(userID), nil, &out)
	return out, err
}

func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	var out []Account
	err := c.do(ctx, http.MethodGet, "/admin/accounts", nil, &out)
	return out, err
}

// GrantAdmin promotes userID with roles; super requires a super admin caller.
func (c *Client) GrantAdmin(ctx context.Context, userID string, super bool, roles []string) (AdminGrant, error) {
	var out AdminGrant
	in := AdminGrant{UsuarioID: userID, Super: super, Papeis: roles}
	err := c.do(ctx, http.MethodPost, "/admin/admins", in, &out)
	return out, err
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}
