package service

import (
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"nullfake/config"

	"gopkg.in/gomail.v2"
)

// EmailService 邮件服务，用于大模型服务全部不可用时告警
type EmailService struct {
	cfg      *config.EmailConfig
	throttle time.Duration
	send     func(to, subject, body string) error
	now      func() time.Time

	mu       sync.Mutex
	lastSent time.Time
}

// NewEmailService 创建邮件服务，throttle 内最多发送一封告警
func NewEmailService(cfg *config.EmailConfig, throttle time.Duration) *EmailService {
	s := &EmailService{cfg: cfg, throttle: throttle, now: time.Now}
	s.send = s.sendEmail
	return s
}

// SendProviderOutageAlert 发送服务不可用告警；未启用或处于节流期时返回 false
func (s *EmailService) SendProviderOutageAlert(asin, country string, cause error) (bool, error) {
	if !s.cfg.Enabled || s.cfg.AlertTo == "" {
		return false, nil
	}

	s.mu.Lock()
	now := s.now()
	if !s.lastSent.IsZero() && now.Sub(s.lastSent) < s.throttle {
		s.mu.Unlock()
		return false, nil
	}
	s.lastSent = now
	s.mu.Unlock()

	subject := "【Null Fake】所有大模型服务均不可用"
	body := s.generateOutageEmailBody(asin, country, cause, now)
	if err := s.send(s.cfg.AlertTo, subject, body); err != nil {
		return false, err
	}
	return true, nil
}

// generateOutageEmailBody 生成告警邮件内容
func (s *EmailService) generateOutageEmailBody(asin, country string, cause error, at time.Time) string {
	detail := "unknown error"
	if cause != nil {
		detail = cause.Error()
	}
	// 每个服务的错误单独一行
	lines := strings.Split(strings.TrimPrefix(detail, "all llm providers failed: "), "; ")
	var items strings.Builder
	for _, line := range lines {
		fmt.Fprintf(&items, "<li>%s</li>", html.EscapeString(line))
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: 'Microsoft YaHei', Arial, sans-serif; background: #f5f5f5; margin: 0; padding: 20px; }
        .container { max-width: 600px; margin: 0 auto; background: #fff; border-radius: 12px; overflow: hidden; box-shadow: 0 4px 20px rgba(0,0,0,0.1); }
        .header { background: linear-gradient(135deg, #ef4444, #b91c1c); color: white; padding: 30px; text-align: center; }
        .header h1 { margin: 0; font-size: 22px; }
        .content { padding: 30px; }
        .content p { color: #333; line-height: 1.8; margin: 0 0 16px; }
        .content li { color: #555; font-family: 'Courier New', monospace; font-size: 13px; margin-bottom: 8px; }
        .footer { background: #f8f9fa; padding: 20px 30px; text-align: center; color: #6c757d; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>⚠️ 大模型服务全部失败</h1>
        </div>
        <div class="content">
            <p>商品 <strong>%s</strong>（%s）分析时所有已配置的大模型服务均调用失败。</p>
            <p>时间：%s</p>
            <p>各服务错误：</p>
            <ul>%s</ul>
            <p>%s 内不会重复发送此告警。</p>
        </div>
        <div class="footer">
            <p>此邮件由系统自动发送，请勿回复</p>
        </div>
    </div>
</body>
</html>
`, html.EscapeString(asin), html.EscapeString(country), at.Format("2006-01-02 15:04:05"), items.String(), s.throttle)
}

// sendEmail 发送邮件
func (s *EmailService) sendEmail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.Username, s.cfg.From))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}

	return nil
}

// SendTestEmail 发送测试邮件
func (s *EmailService) SendTestEmail(toEmail string) error {
	if !s.cfg.Enabled {
		return fmt.Errorf("邮件服务未启用")
	}
	if toEmail == "" {
		toEmail = s.cfg.AlertTo
	}
	if toEmail == "" {
		return fmt.Errorf("未配置收件人")
	}

	subject := "【Null Fake】邮件配置测试"
	body := `
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; padding: 20px;">
    <h2>✅ 邮件配置成功</h2>
    <p>如果您收到这封邮件，说明告警邮件配置正确。</p>
    <p style="color: #666;">—— Null Fake</p>
</body>
</html>
`
	return s.send(toEmail, subject, body)
}
