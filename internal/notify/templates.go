package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"

	"virtus/internal/qrcode"
	"virtus/internal/store"
)

type Kind string

const (
	KindVoucherIssued    Kind = "voucher_issued"
	KindVoucherValidated Kind = "voucher_validated"
	KindCoinsReceived    Kind = "coins_received"
)

// DateLayout matches the dd/MM/yyyy HH:mm format shown to users.
const DateLayout = "02/01/2006 15:04"

var subjects = map[Kind]string{
	KindVoucherIssued:    "Seu resgate foi realizado",
	KindVoucherValidated: "Resgate Validado com Sucesso",
	KindCoinsReceived:    "Você recebeu moedas",
}

func Subject(kind Kind) string {
	if s, ok := subjects[kind]; ok {
		return s
	}
	return "Virtus"
}

var templates = template.Must(template.New("mail").Parse(`
{{define "voucher_issued"}}<p>Olá {{.student_name}},</p>
<p>Você resgatou <strong>{{.advantage_name}}</strong> por {{.value}} moedas em {{.issued_at}}.</p>
<p>Código do resgate: <strong>{{.code}}</strong></p>
<p><img src="cid:qrcode.png" alt="{{.code}}" width="200" height="200"></p>
<p>Apresente o código ou acesse <a href="{{.url}}">{{.url}}</a>.</p>{{end}}
{{define "voucher_validated"}}<p>Olá {{.student_name}},</p>
<p>O resgate <strong>{{.code}}</strong> de {{.advantage_name}} foi validado em {{.consumed_at}}.</p>{{end}}
{{define "coins_received"}}<p>Olá {{.recipient_name}},</p>
<p>Você recebeu {{.amount}} moedas de {{.sender_name}}.</p>{{if .memo}}<p>Motivo: {{.memo}}</p>{{end}}{{end}}
`))

// Render turns a queued notification into a message. Vouchers get their QR
// code attached inline.
func Render(n store.Notification) (Message, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(n.Payload), &payload); err != nil {
		return Message{}, fmt.Errorf("notify: payload of %s: %w", n.ID, err)
	}
	if templates.Lookup(n.Kind) == nil {
		return Message{}, fmt.Errorf("notify: unknown kind %q", n.Kind)
	}
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, n.Kind, payload); err != nil {
		return Message{}, fmt.Errorf("notify: render %s: %w", n.Kind, err)
	}
	msg := Message{To: n.Recipient, Subject: n.Subject, HTML: body.String()}
	if Kind(n.Kind) == KindVoucherIssued {
		content, _ := payload["url"].(string)
		if content == "" {
			content, _ = payload["code"].(string)
		}
		png, err := qrcode.PNG(content)
		if err != nil {
			return Message{}, err
		}
		msg.Inline = append(msg.Inline, Inline{Name: "qrcode.png", Data: png})
	}
	return msg, nil
}
