package export

import (
	"io"

	"gopkg.in/gomail.v2"
)

const (
	senderName     = "導遊智慧行程規劃系統"
	mailSubject    = "您的專屬 AI 旅遊手冊已準備就緒！"
	mailTextBody   = "您好，感謝您使用我們的服務！您與 AI 導遊的完整對話紀錄已附在信中，祝您旅途愉快！"
	attachmentName = "AI旅遊手冊.pdf"
)

// Sender はメッセージを送信するインターフェース。*gomail.Dialerが満たす。
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer はハンドブックのメールを組み立てて送信する。
type Mailer struct {
	sender Sender
	from   string
}

// NewMailer はMailerの新しいインスタンスを生成する。
func NewMailer(sender Sender, from string) *Mailer {
	return &Mailer{sender: sender, from: from}
}

// NewSMTPSender はSMTPサーバーに接続するSenderを生成する。
// 587番ポートではSTARTTLSが使われる。
func NewSMTPSender(host string, port int, username, password string) *gomail.Dialer {
	return gomail.NewDialer(host, port, username, password)
}

// Send はテキスト本文、HTML代替本文、PDF添付を含むメールを送信する。
func (m *Mailer) Send(to, htmlBody string, pdf []byte) error {
	return m.sender.DialAndSend(m.compose(to, htmlBody, pdf))
}

func (m *Mailer) compose(to, htmlBody string, pdf []byte) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, senderName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", mailSubject)
	msg.SetBody("text/plain", mailTextBody)
	msg.AddAlternative("text/html", htmlBody)
	msg.Attach(attachmentName,
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(pdf)
			return err
		}),
		gomail.SetHeader(map[string][]string{
			"Content-Type": {"application/pdf"},
		}),
	)
	return msg
}
