package notify

import "strings"

// Placeholder keys understood by the default templates.
const (
	KeyName            = "name"
	KeyEmail           = "email"
	KeyOneTimePassword = "one_time_password"
	KeyJWTToken        = "jwt_token"
)

// Template is a subject/body pair with {{key}} placeholders.
type Template struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

// Merge returns t with empty fields taken from fallback.
func (t Template) Merge(fallback Template) Template {
	if t.Subject == "" {
		t.Subject = fallback.Subject
	}
	if t.Body == "" {
		t.Body = fallback.Body
	}
	return t
}

// Render substitutes every {{key}} in subject and body. Unknown
// placeholders are left as written.
func (t Template) Render(data map[string]string) (subject, body string) {
	pairs := make([]string, 0, 2*len(data))
	for k, v := range data {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace(t.Subject), r.Replace(t.Body)
}

// Message renders t for recipient to.
func (t Template) Message(to string, data map[string]string) Message {
	subject, body := t.Render(data)
	return Message{To: to, Subject: subject, Body: body, Data: data}
}
