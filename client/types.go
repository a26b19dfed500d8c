package client

import "time"

type User struct {
	ID       string    `json:"id"`
	Email    string    `json:"email"`
	Nome     string    `json:"nome"`
	Tipo     string    `json:"tipo"`
	Admin    bool      `json:"admin"`
	CriadoEm time.Time `json:"criadoEm"`
}

type AuthResult struct {
	Token   string `json:"token"`
	Usuario User   `json:"usuario"`
}

type RegisterRequest struct {
	Email          string   `json:"email"`
	Password       string   `json:"password"`
	Nome           string   `json:"nome"`
	Tipo           string   `json:"tipo"`
	InstituicaoIDs []string `json:"instituicaoIds,omitempty"`
}

type ProfileUpdate struct {
	Nome     *string `json:"nome,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

type Institution struct {
	ID   string `json:"id"`
	Nome string `json:"nome"`
}

type Balance struct {
	ContaID string `json:"contaId"`
	Saldo   int64  `json:"saldo"`
}

type Transaction struct {
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

type Receipt struct {
	Transacao         Transaction `json:"transacao"`
	SaldoRemetente    int64       `json:"saldoRemetente"`
	SaldoDestinatario int64       `json:"saldoDestinatario"`
}

type Student struct {
	ID    string `json:"id"`
	Nome  string `json:"nome"`
	Email string `json:"email"`
	Saldo int64  `json:"saldo"`
}

type Advantage struct {
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

type AdvantageInput struct {
	Nome      string  `json:"nome"`
	Descricao string  `json:"descricao"`
	Preco     int64   `json:"preco"`
	FotoURL   *string `json:"fotoUrl,omitempty"`
}

type Voucher struct {
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

type PaymentLink struct {
	LinkPagamento string     `json:"linkPagamento"`
	Valor         int64      `json:"valor"`
	ExpiraEm      *time.Time `json:"expiraEm"`
	Expirado      bool       `json:"expirado"`
	CriadoEm      time.Time  `json:"criadoEm"`
}

// CodeResult is what applying a code produced: a consumed voucher or a paid
// payment link, as told by Tipo ("voucher" or "payment").
type CodeResult struct {
	Tipo      string   `json:"tipo"`
	Resgate   *Voucher `json:"resgate,omitempty"`
	Pagamento *Receipt `json:"pagamento,omitempty"`
}

type Reconciliation struct {
	ContaID        string  `json:"contaId"`
	UsuarioID      *string `json:"usuarioId"`
	Tipo           string  `json:"tipo"`
	SaldoGravado   int64   `json:"saldoGravado"`
	SaldoCalculado int64   `json:"saldoCalculado"`
	Diferenca      int64   `json:"diferenca"`
}

type AuditEntry struct {
	ID          string    `json:"id"`
	ActorUserID *string   `json:"actor_user_id"`
	Action      string    `json:"action"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	Data        string    `json:"data"`
	CreatedAt   time.Time `json:"created_at"`
}

type Account struct {
	ID      string  `json:"id"`
	Tipo    string  `json:"tipo"`
	Saldo   int64   `json:"saldo"`
	Sistema bool    `json:"sistema"`
	Nome    *string `json:"nome"`
	Email   *string `json:"email"`
}

type AdminGrant struct {
	UsuarioID string   `json:"usuarioId"`
	Super     bool     `json:"super"`
	Papeis    []string `json:"papeis"`
}
