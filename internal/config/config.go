package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type APIConfig struct {
	DBDSN     string `envconfig:"DB_DSN" required:"true"`
	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// AWS / SQS
	AWSRegion          string `envconfig:"AWS_REGION" required:"true"`
	WakeQueueURL       string `envconfig:"WAKE_QUEUE_URL" required:"true"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
}

type WorkerConfig struct {
	DBDSN     string `envconfig:"DB_DSN" required:"true"`
	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// Queue worker
	MaxRetries int           `envconfig:"MAX_RETRIES" default:"3"`
	Tick       time.Duration `envconfig:"WORKER_TICK" default:"15s"`

	// DB pool
	DBPoolMaxConns          int32         `envconfig:"DB_POOL_MAX_CONNS" default:"10"`
	DBPoolMinConns          int32         `envconfig:"DB_POOL_MIN_CONNS" default:"1"`
	DBPoolMaxConnLifetime   time.Duration `envconfig:"DB_POOL_MAX_CONN_LIFETIME" default:"30m"`
	DBPoolMaxConnIdleTime   time.Duration `envconfig:"DB_POOL_MAX_CONN_IDLE_TIME" default:"5m"`
	DBPoolHealthCheckPeriod time.Duration `envconfig:"DB_POOL_HEALTH_CHECK_PERIOD" default:"1m"`

	// AWS / SQS wake signals
	AWSRegion          string `envconfig:"AWS_REGION" required:"true"`
	WakeQueueURL       string `envconfig:"WAKE_QUEUE_URL" required:"true"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
	SQSWaitTime        int32  `envconfig:"SQS_WAIT_TIME" default:"20"`
	SQSMaxMsgs         int32  `envconfig:"SQS_MAX_MSGS" default:"10"`
	SQSVizTimeout      int32  `envconfig:"SQS_VISIBILITY_TIMEOUT" default:"60"`

	// Messaging provider (WhatsApp-style)
	MessagingBaseURL string `envconfig:"MESSAGING_BASE_URL" required:"true"`
	MessagingToken   string `envconfig:"MESSAGING_TOKEN" required:"true"`

	// E-mail provider
	EmailBaseURL string `envconfig:"EMAIL_BASE_URL" required:"true"`
	EmailAPIKey  string `envconfig:"EMAIL_API_KEY" required:"true"`
	EmailFrom    string `envconfig:"EMAIL_FROM" required:"true"`

	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"8s"`
}

type WebhookConfig struct {
	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// Delivery receipt signature verification
	WebhookSecret string `envconfig:"MESSAGING_WEBHOOK_SECRET" required:"true"`

	// AWS / SQS
	AWSRegion              string `envconfig:"AWS_REGION" required:"true"`
	DeliveryEventsQueueURL string `envconfig:"DELIVERY_EVENTS_QUEUE_URL" required:"true"`
	LocalstackEndpoint     string `envconfig:"LOCALSTACK_ENDPOINT"`
}

type WebhookProcessorConfig struct {
	DBDSN     string `envconfig:"DB_DSN" required:"true"`
	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// DB pool
	DBPoolMaxConns          int32         `envconfig:"DB_POOL_MAX_CONNS" default:"10"`
	DBPoolMinConns          int32         `envconfig:"DB_POOL_MIN_CONNS" default:"1"`
	DBPoolMaxConnLifetime   time.Duration `envconfig:"DB_POOL_MAX_CONN_LIFETIME" default:"30m"`
	DBPoolMaxConnIdleTime   time.Duration `envconfig:"DB_POOL_MAX_CONN_IDLE_TIME" default:"5m"`
	DBPoolHealthCheckPeriod time.Duration `envconfig:"DB_POOL_HEALTH_CHECK_PERIOD" default:"1m"`

	// AWS / SQS
	AWSRegion              string `envconfig:"AWS_REGION" required:"true"`
	DeliveryEventsQueueURL string `envconfig:"DELIVERY_EVENTS_QUEUE_URL" required:"true"`
	LocalstackEndpoint     string `envconfig:"LOCALSTACK_ENDPOINT"`
	SQSWaitTime            int32  `envconfig:"SQS_WAIT_TIME" default:"20"`
	SQSMaxMsgs             int32  `envconfig:"SQS_MAX_MSGS" default:"10"`
	SQSVizTimeout          int32  `envconfig:"SQS_VISIBILITY_TIMEOUT" default:"60"`
	Concurrency            int    `envconfig:"PROCESSOR_CONCURRENCY" default:"10"`
}

func LoadAPI() APIConfig {
	var cfg APIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadWorker() WorkerConfig {
	var cfg WorkerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadWebhook() WebhookConfig {
	var cfg WebhookConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadWebhookProcessor() WebhookProcessorConfig {
	var cfg WebhookProcessorConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}
