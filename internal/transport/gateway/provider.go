package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jobpay/matchflow/internal/config"
	"github.com/jobpay/matchflow/internal/domain"
	"github.com/jobpay/matchflow/internal/usecase/dispatch"
)

const requestTimeout = 10 * time.Second

// Provider delivers rendered messages to a channel gateway over a JSON
// webhook API. One instance serves one channel; email, SMS, WhatsApp and
// push gateways all speak the same envelope, only the endpoint differs.
type Provider struct {
	channel  domain.Channel
	endpoint string
	apiKey   string
	from     string
	client   *http.Client
	logger   *zap.Logger
}

// NewProvider creates a gateway provider for one channel.
func NewProvider(ch domain.Channel, cfg config.ChannelConfig, logger *zap.Logger) *Provider {
	return &Provider{
		channel:  ch,
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		from:     cfg.From,
		client:   &http.Client{Timeout: requestTimeout},
		logger:   logger,
	}
}

// Providers builds the per-channel provider map from config. Channels
// without an endpoint are left out; dispatch treats them as unconfigured.
func Providers(cfg config.NotifyConfig, logger *zap.Logger) map[domain.Channel]dispatch.Provider {
	out := make(map[domain.Channel]dispatch.Provider, len(cfg.Channels))
	for name, channelCfg := range cfg.Channels {
		ch, err := domain.ParseChannel(name)
		if err != nil {
			logger.Warn("Skipping unknown notification channel", zap.String("channel", name))
			continue
		}
		if channelCfg.Endpoint == "" {
			continue
		}
		out[ch] = NewProvider(ch, channelCfg, logger)
	}
	return out
}

type sendRequest struct {
	Channel string `json:"channel"`
	From    string `json:"from,omitempty"`
	To      string `json:"to"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

// Send implements dispatch.Provider. Gateway status codes are folded into
// the two delivery sentinels: 429 and 5xx are retryable, any other 4xx is
// permanent.
func (p *Provider) Send(ctx context.Context, address string, msg dispatch.Message) error {
	payload, err := json.Marshal(sendRequest{
		Channel: string(p.channel),
		From:    p.from,
		To:      address,
		Subject: msg.Subject,
		Body:    msg.Body,
	})
	if err != nil {
		return fmt.Errorf("%w: marshal %s payload: %v", domain.ErrPermanentDelivery, p.channel, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: build %s request: %v", domain.ErrPermanentDelivery, p.channel, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s gateway: %v", domain.ErrProviderUnavailable, p.channel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	p.logger.Warn("Gateway rejected message",
		zap.String("channel", string(p.channel)),
		zap.Int("status", resp.StatusCode),
		zap.ByteString("response", detail))

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fmt.Errorf("%w: %s gateway status %d", domain.ErrProviderUnavailable, p.channel, resp.StatusCode)
	}
	return fmt.Errorf("%w: %s gateway status %d", domain.ErrPermanentDelivery, p.channel, resp.StatusCode)
}
