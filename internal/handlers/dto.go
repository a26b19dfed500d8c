package handlers

import (
	"time"

	"virtus/internal/codes"
	"virtus/internal/models"
	"virtus/internal/qrcode"
	"virtus/internal/services"
	"virtus/internal/store"
)

// JSON field names follow the frontend contract, which is in Portuguese.

type userResponse struct {
	ID       string    `json:"id"`
	Email    string    `json:"email"`
	Nome     string    `json:"nome"`
	Tipo     string    `json:"tipo"`
	Admin    bool      `json:"admin"`
	CriadoEm time.Time `json:"criadoEm"`
}

func toUser(u models.User, admin bool) userResponse {
	return userResponse{
		ID:       u.ID,
		Email:    u.Email,
		Nome:     u.Name,
		Tipo:     string(u.Kind),
		Admin:    admin,
		CriadoEm: u.CreatedAt,
	}
}

type advantageResponse struct {
	ID          string    `json:"id"`
	EmpresaID   string    `json:"empresaId"`
	EmpresaNome string    `json:"empresaNome,omitempty"`
	Nome        string    `json:"nome"`
	Descricao   string    `json:"descricao"`
	Preco       int64     `json:"preco"`
	FotoURL     *string   `json:"fotoUrl"`
	Ativo       bool      `json:"ativo"`
	CriadoEm    time.Time `json:"criadoEm"`
}

func toAdvantage(a models.Advantage) advantageResponse {
	return advantageResponse{
		ID:          a.ID,
		EmpresaID:   a.CompanyID,
		EmpresaNome: a.CompanyName,
		Nome:        a.Name,
		Descricao:   a.Description,
		Preco:       a.Price,
		FotoURL:     a.PhotoURL,
		Ativo:       a.Active,
		CriadoEm:    a.CreatedAt,
	}
}

func toAdvantages(rows []models.Advantage) []advantageResponse {
	out := make([]advantageResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toAdvantage(row))
	}
	return out
}

type voucherResponse struct {
	ID                string     `json:"id"`
	CodigoResgate     string     `json:"codigoResgate"`
	AlunoID           string     `json:"alunoId"`
	AlunoNome         string     `json:"alunoNome"`
	VantagemID        *string    `json:"vantagemId"`
	EmpresaID         string     `json:"empresaId"`
	VantagemNome      string     `json:"vantagemNome"`
	VantagemDescricao string     `json:"vantagemDescricao"`
	VantagemFotoURL   *string    `json:"vantagemFotoUrl"`
	Valor             int64      `json:"valor"`
	TransacaoID       string     `json:"transacaoId"`
	DataResgate       time.Time  `json:"dataResgate"`
	Utilizado         bool       `json:"utilizado"`
	DataUtilizacao    *time.Time `json:"dataUtilizacao"`
	ResgateURL        string     `json:"resgateUrl"`
	QRCodeBase64      string     `json:"qrCodeBase64,omitempty"`
}

// toVoucher renders v. The QR code is only attached when withQR is set since
// it is the largest part of the payload.
func (h *Handler) toVoucher(v models.Voucher, withQR bool) voucherResponse {
	url := h.redemptions.URL(v)
	out := voucherResponse{
		ID:                v.ID,
		CodigoResgate:     v.Code,
		AlunoID:           v.StudentID,
		AlunoNome:         v.StudentName,
		VantagemID:        v.AdvantageID,
		EmpresaID:         v.CompanyID,
		VantagemNome:      v.AdvantageName,
		VantagemDescricao: v.AdvantageDescription,
		VantagemFotoURL:   v.AdvantagePhotoURL,
		Valor:             v.Price,
		TransacaoID:       v.TransactionID,
		DataResgate:       v.IssuedAt,
		Utilizado:         v.Consumed,
		DataUtilizacao:    v.ConsumedAt,
		ResgateURL:        url,
	}
	if withQR {
		dataURI, err := qrcode.DataURI(url)
		if err != nil {
			h.log.WithError(err).WithField("voucher_id", v.ID).Warn("qr code not rendered")
		} else {
			out.QRCodeBase64 = dataURI
		}
	}
	return out
}

func (h *Handler) toVouchers(rows []models.Voucher) []voucherResponse {
	out := make([]voucherResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.toVoucher(row, false))
	}
	return out
}

type transactionResponse struct {
	ID               string    `json:"id"`
	Tipo             string    `json:"tipo"`
	RemetenteID      *string   `json:"remetenteId"`
	RemetenteNome    *string   `json:"remetenteNome"`
	DestinatarioID   *string   `json:"destinatarioId"`
	DestinatarioNome *string   `json:"destinatarioNome"`
	Valor            int64     `json:"valor"`
	Motivo           string    `json:"motivo"`
	Data             time.Time `json:"data"`
}

func toTransaction(t models.Transaction) transactionResponse {
	return transactionResponse{
		ID:               t.ID,
		Tipo:             string(t.Type),
		RemetenteID:      t.FromUserID,
		RemetenteNome:    t.FromName,
		DestinatarioID:   t.ToUserID,
		DestinatarioNome: t.ToName,
		Valor:            t.Amount,
		Motivo:           t.Memo,
		Data:             t.CreatedAt,
	}
}

func toTransactions(rows []models.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toTransaction(row))
	}
	return out
}

type receiptResponse struct {
	Transacao         transactionResponse `json:"transacao"`
	SaldoRemetente    int64               `json:"saldoRemetente"`
	SaldoDestinatario int64               `json:"saldoDestinatario"`
}

func toReceipt(r services.Receipt) receiptResponse {
	return receiptResponse{
		Transacao:         toTransaction(r.Transaction),
		SaldoRemetente:    r.FromBalance,
		SaldoDestinatario: r.ToBalance,
	}
}

type paymentLinkResponse struct {
	LinkPagamento string     `json:"linkPagamento"`
	Valor         int64      `json:"valor"`
	ExpiraEm      *time.Time `json:"expiraEm"`
	Expirado      bool       `json:"expirado"`
	CriadoEm      time.Time  `json:"criadoEm"`
}

func toPaymentLink(p services.PaymentLink) paymentLinkResponse {
	return paymentLinkResponse{
		LinkPagamento: p.Link,
		Valor:         p.Token.Amount,
		ExpiraEm:      p.Token.ExpiresAt,
		Expirado:      p.Expired,
		CriadoEm:      p.Token.CreatedAt,
	}
}

type codeResponse struct {
	Tipo      string           `json:"tipo"`
	Resgate   *voucherResponse `json:"resgate,omitempty"`
	Pagamento *receiptResponse `json:"pagamento,omitempty"`
}

func (h *Handler) toCodeResult(res services.CodeResult) codeResponse {
	out := codeResponse{Tipo: res.Class.String()}
	if res.Class == codes.ClassPayment && res.Payment != nil {
		receipt := toReceipt(*res.Payment)
		out.Pagamento = &receipt
	}
	if res.Class == codes.ClassVoucher && res.Voucher != nil {
		voucher := h.toVoucher(*res.Voucher, false)
		out.Resgate = &voucher
	}
	return out
}

type studentResponse struct {
	ID    string `json:"id"`
	Nome  string `json:"nome"`
	Email string `json:"email"`
	Saldo int64  `json:"saldo"`
}

func toStudents(rows []store.StudentSummary) []studentResponse {
	out := make([]studentResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, studentResponse{ID: row.ID, Nome: row.Name, Email: row.Email, Saldo: row.Balance})
	}
	return out
}

type institutionResponse struct {
	ID   string `json:"id"`
	Nome string `json:"nome"`
}

type reconcileResponse struct {
	ContaID        string  `json:"contaId"`
	UsuarioID      *string `json:"usuarioId"`
	Tipo           string  `json:"tipo"`
	SaldoGravado   int64   `json:"saldoGravado"`
	SaldoCalculado int64   `json:"saldoCalculado"`
	Diferenca      int64   `json:"diferenca"`
}

func toReconcile(row store.AccountBalanceSummary) reconcileResponse {
	return reconcileResponse{
		ContaID:        row.ID,
		UsuarioID:      row.UserID,
		Tipo:           row.OwnerKind,
		SaldoGravado:   row.StoredBalance,
		SaldoCalculado: row.CalculatedBalance,
		Diferenca:      row.Difference,
	}
}

type accountResponse struct {
	ID      string  `json:"id"`
	Tipo    string  `json:"tipo"`
	Saldo   int64   `json:"saldo"`
	Sistema bool    `json:"sistema"`
	Nome    *string `json:"nome"`
	Email   *string `json:"email"`
}
