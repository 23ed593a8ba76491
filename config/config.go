package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8081"`

	Database DatabaseConfig
	S3Config S3Config
	Gateway  GatewayConfig
	AMQP     AMQPConfig
}

type S3Config struct {
	AccessKey  string `env:"S3_ACCESS_KEY"`
	SecretKey  string `env:"S3_SECRET_KEY"`
	Region     string `env:"S3_REGION" envDefault:"us-east-1"`
	BucketName string `env:"S3_BUCKET" envDefault:"ligchat-whatsapp"`
	ServiceUrl string `env:"S3_SERVICE_URL" envDefault:"https://s3.amazonaws.com"`
	BucketUrl  string `env:"S3_BUCKET_URL" envDefault:"https://ligchat-whatsapp.s3.amazonaws.com"`
}

type GatewayConfig struct {
	BaseURL string `env:"GATEWAY_URL" envDefault:"http://localhost:3000"`
	APIKey  string `env:"GATEWAY_API_KEY"`
	// Endpoint público que o gateway usa para entregar os webhooks
	WebhookEndpoint string `env:"GATEWAY_WEBHOOK_ENDPOINT"`
}

type AMQPConfig struct {
	URL      string `env:"AMQP_URL"`
	Exchange string `env:"AMQP_EXCHANGE" envDefault:"crm.events"`
}

func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("erro ao carregar configuração do ambiente: %v", err)
	}
	return cfg, nil
}
