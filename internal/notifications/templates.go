package notifications

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

type templateData struct {
	AppName string
	Code    string
	URL     string
	Year    int
}

const layoutHTML = `<div style="font-family: Arial, sans-serif; background-color: #f4f4f4; padding: 40px 20px;">
  <div style="max-width: 600px; margin: auto; background-color: #ffffff; padding: 30px; border-radius: 8px; box-shadow: 0 4px 12px rgba(0, 0, 0, 0.1);">
    {{template "body" .}}
    <p style="font-size: 14px; color: #777777">If you didn't request this, you can safely ignore this email.</p>
    <hr style="margin: 30px 0; border: none; border-top: 1px solid #dddddd" />
    <p style="font-size: 12px; color: #aaaaaa; text-align: center">&copy; {{.Year}} {{.AppName}}. All rights reserved.</p>
  </div>
</div>`

const otpBodyHTML = `{{define "body"}}<h2 style="color: #e30613;">Verify your email</h2>
    <p style="font-size: 16px; color: #333333">Please use this otp to verify your account</p>
    <h1 style="color: #e30613; text-align: center; letter-spacing: 5px">{{.Code}}</h1>{{end}}`

const resetBodyHTML = `{{define "body"}}<h2 style="color: #e30613;">Reset your password</h2>
    <p style="font-size: 16px; color: #333333">Click on the link below to reset your password</p>
    <a href="{{.URL}}" style="color: #e30613; text-align: center;">Reset Password</a>{{end}}`

const otpText = `Hello,
Verify your email
Please use this otp to verify your account: {{.Code}}
If you didn't request this, you can safely ignore this email.
Thank you
(c) {{.Year}} {{.AppName}}. All rights reserved.
`

const resetText = `Hello,
Reset your password
Click on the link below to reset your password: {{.URL}}
If you didn't request this, you can safely ignore this email.
Thank you
(c) {{.Year}} {{.AppName}}. All rights reserved.
`

var (
	otpHTMLTmpl   = htmltemplate.Must(htmltemplate.Must(htmltemplate.New("layout").Parse(layoutHTML)).Parse(otpBodyHTML))
	resetHTMLTmpl = htmltemplate.Must(htmltemplate.Must(htmltemplate.New("layout").Parse(layoutHTML)).Parse(resetBodyHTML))
	otpTextTmpl   = texttemplate.Must(texttemplate.New("otp").Parse(otpText))
	resetTextTmpl = texttemplate.Must(texttemplate.New("reset").Parse(resetText))
)

func renderOtp(appName, code string, year int) (Message, error) {
	return render(
		fmt.Sprintf("[%s] Verify your email", appName),
		otpHTMLTmpl, otpTextTmpl,
		templateData{AppName: appName, Code: code, Year: year},
	)
}

func renderReset(appName, url string, year int) (Message, error) {
	return render(
		fmt.Sprintf("[%s] Reset your password", appName),
		resetHTMLTmpl, resetTextTmpl,
		templateData{AppName: appName, URL: url, Year: year},
	)
}

func render(subject string, html *htmltemplate.Template, text *texttemplate.Template, data templateData) (Message, error) {
	var htmlBuf, textBuf bytes.Buffer

	err := html.Execute(&htmlBuf, data)

	if err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}

	err = text.Execute(&textBuf, data)

	if err != nil {
		return Message{}, fmt.Errorf("render text: %w", err)
	}

	return Message{
		Subject: subject,
		HTML:    htmlBuf.String(),
		Text:    textBuf.String(),
	}, nil
}
