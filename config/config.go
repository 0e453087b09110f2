package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

type Config struct {
	ListenAddr string `envconfig:"listen_addr" default:":8080"`

	WhatsAppVerifyToken   string `envconfig:"whatsapp_verify_token"`
	WhatsAppAccessToken   string `envconfig:"whatsapp_access_token"`
	WhatsAppPhoneNumberID string `envconfig:"whatsapp_phone_number_id"`
	WhatsAppAPIVersion    string `envconfig:"whatsapp_api_version" default:"v18.0"`

	OpenAIAPIKey  string `envconfig:"openai_api_key"`
	OpenAIBaseURL string `envconfig:"openai_base_url" default:""`
	OpenAIModel   string `envconfig:"openai_model" default:"gpt-4o"`
	OpenAIByAzure bool   `envconfig:"openai_by_azure" default:"false"`

	DatabasePath string `envconfig:"database_path" default:"leadagent.db"`

	HubSpotAccessToken  string `envconfig:"hubspot_access_token"`
	HubSpotRefreshToken string `envconfig:"hubspot_refresh_token"`
	HubSpotClientID     string `envconfig:"hubspot_client_id"`
	HubSpotClientSecret string `envconfig:"hubspot_client_secret"`

	AMQPURL      string `envconfig:"amqp_url" default:""`
	AMQPExchange string `envconfig:"amqp_exchange" default:"leadagent"`

	// AllowedNumbers is a comma-separated wa_id allow-list. Empty allows
	// every correspondent.
	AllowedNumbers string `envconfig:"allowed_numbers" default:""`

	AgentTimeout time.Duration `envconfig:"agent_timeout" default:"30m"`
	LLMTimeout   time.Duration `envconfig:"llm_timeout" default:"30s"`
}

func NewLoadedConfig() (*Config, error) {
	godotenv.Load()

	var c Config
	err := envconfig.Process("leadagent", &c)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &c, nil
}

// Allowed splits the allow-list into trimmed wa_ids.
func (c *Config) Allowed() []string {
	if strings.TrimSpace(c.AllowedNumbers) == "" {
		return nil
	}
	parts := strings.Split(c.AllowedNumbers, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}
