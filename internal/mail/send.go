// Package mail 在调度模式下按 SMTP 配置发送刷新结果摘要邮件。
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/xxinine/vi-tools/internal/config"
	"github.com/xxinine/vi-tools/internal/trace"
	"github.com/xxinine/vi-tools/internal/update"
)

const (
	smtpTimeout     = 15 * time.Second
	defaultSMTPPort = 587
	subjectPrefix   = "持仓表格刷新"
	timeLayout      = "2006-01-02 15:04:05"
)

// SendRunSummary 发送一次调度运行的结果摘要；未配置 SMTP 时静默跳过。
func SendRunSummary(ctx context.Context, cfg *config.SMTP, file string, res update.RunResult, elapsed time.Duration) error {
	if !cfg.Enabled() {
		trace.Log(ctx, "mail: 未配置 SMTP，跳过摘要邮件")
		return nil
	}
	trace.Log(ctx, "mail: 发送运行摘要 to=%s", cfg.To)
	subject := subjectPrefix + "：" + res.Summary()
	body := buildSummaryHTML(file, res, elapsed)
	toList := strings.Split(cfg.To, ",")
	for i := range toList {
		toList[i] = strings.TrimSpace(toList[i])
	}
	if err := send(cfg, subject, body, toList); err != nil {
		trace.Log(ctx, "mail: send err=%v", err)
		return err
	}
	trace.Log(ctx, "mail: sent ok")
	return nil
}

func buildSummaryHTML(file string, res update.RunResult, elapsed time.Duration) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8"><title>刷新摘要</title></head><body>`)
	b.WriteString(fmt.Sprintf("<h2>%s</h2>", escapeHTML(subjectPrefix)))
	b.WriteString(`<table border="1" cellspacing="0" cellpadding="8" style="border-collapse: collapse; font-size: 14px;"><tbody>`)
	row := func(k, v string) {
		b.WriteString(fmt.Sprintf("<tr><td>%s</td><td>%s</td></tr>", escapeHTML(k), escapeHTML(v)))
	}
	row("工作簿", file)
	row("意图", res.Intent.String())
	if res.PriceRan {
		row("价格驱动", res.PriceOutcome.String())
	}
	if res.VolatilityRan {
		row("波动率驱动", res.VolatilityOutcome.String())
	}
	row("耗时", elapsed.Round(time.Second).String())
	row("时间", time.Now().Format(timeLayout))
	b.WriteString("</tbody></table></body></html>")
	return b.String()
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}

func send(cfg *config.SMTP, subject, htmlBody string, to []string) error {
	port := cfg.Port
	if port == 0 {
		port = defaultSMTPPort
	}
	addr := net.JoinHostPort(cfg.Server, strconv.Itoa(port))

	var conn net.Conn
	var err error
	if port == 465 {
		conn, err = tls.DialWithDialer(&net.Dialer{Timeout: smtpTimeout}, "tcp", addr, &tls.Config{ServerName: cfg.Server})
	} else {
		conn, err = net.DialTimeout("tcp", addr, smtpTimeout)
	}
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, cfg.Server)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: cfg.Server}); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if cfg.Password != "" {
		auth := smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Server)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(cfg.From); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	for _, t := range to {
		if t == "" {
			continue
		}
		if err := client.Rcpt(t); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", t, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n",
		cfg.From, strings.Join(to, ","), subject)
	if _, err := w.Write([]byte(headers + htmlBody)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return client.Quit()
}
