package config

import (
	"gopkg.in/yaml.v3"
)

const redacted = "******"

// Dump 以 YAML 输出配置，密钥类字段打码
func Dump(cfg *Config) (string, error) {
	c := *cfg
	c.Database.Password = mask(c.Database.Password)
	c.Redis.Password = mask(c.Redis.Password)
	c.JWT.Secret = mask(c.JWT.Secret)
	c.Admin.PasswordHash = mask(c.Admin.PasswordHash)
	c.Extension.APIKey = mask(c.Extension.APIKey)
	c.LLM.OpenAI.APIKey = mask(c.LLM.OpenAI.APIKey)
	c.LLM.DeepSeek.APIKey = mask(c.LLM.DeepSeek.APIKey)
	c.LLM.Ollama.APIKey = mask(c.LLM.Ollama.APIKey)
	c.Scraping.BrightData.APIToken = mask(c.Scraping.BrightData.APIToken)
	c.Scraping.Direct.Cookies = mask(c.Scraping.Direct.Cookies)
	c.Email.Password = mask(c.Email.Password)

	out, err := yaml.Marshal(&c)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func mask(v string) string {
	if v == "" {
		return ""
	}
	return redacted
}
