package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// MainnetInfoURL 主网 info 查询地址。
const MainnetInfoURL = "https://api.hyperliquid.xyz/info"

// InfoClient 查询 hyperliquid /info 接口（挂单、持仓）。
type InfoClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewInfoClient 创建 info 客户端，默认 10s 超时。
func NewInfoClient() *InfoClient {
	return &InfoClient{
		BaseURL:    MainnetInfoURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// OpenOrder 源交易所的一条挂单。
type OpenOrder struct {
	Coin    string      `json:"coin"`
	Side    string      `json:"side"`
	LimitPx json.Number `json:"limitPx"`
	Sz      json.Number `json:"sz"`
	OID     int64       `json:"oid"`
}

// AssetPosition 源交易所持仓条目。
type AssetPosition struct {
	Position struct {
		Coin    string      `json:"coin"`
		Szi     json.Number `json:"szi"`
		EntryPx json.Number `json:"entryPx"`
	} `json:"position"`
}

// UserState clearinghouseState 响应里本模块关心的部分。
type UserState struct {
	AssetPositions []AssetPosition `json:"assetPositions"`
}

// PositionSize 返回某币种的带符号持仓数量，无持仓返回 0。
func (s *UserState) PositionSize(coin string) float64 {
	for _, ap := range s.AssetPositions {
		if ap.Position.Coin == coin {
			szi, _ := ap.Position.Szi.Float64()
			return szi
		}
	}
	return 0
}

// OpenOrders 查询用户当前全部挂单。
func (c *InfoClient) OpenOrders(ctx context.Context, user string) ([]OpenOrder, error) {
	var orders []OpenOrder
	err := c.post(ctx, map[string]string{"type": "openOrders", "user": user}, &orders)
	if err != nil {
		return nil, fmt.Errorf("openOrders: %w", err)
	}
	return orders, nil
}

// OpenOrderIDs 查询挂单并提取 oid 集合，供对账使用。
func (c *InfoClient) OpenOrderIDs(ctx context.Context, user string) (map[int64]bool, error) {
	orders, err := c.OpenOrders(ctx, user)
	if err != nil {
		return nil, err
	}
	ids := make(map[int64]bool, len(orders))
	for _, o := range orders {
		ids[o.OID] = true
	}
	return ids, nil
}

// UserState 查询用户持仓状态。
func (c *InfoClient) UserState(ctx context.Context, user string) (*UserState, error) {
	var state UserState
	if err := c.post(ctx, map[string]string{"type": "clearinghouseState", "user": user}, &state); err != nil {
		return nil, fmt.Errorf("clearinghouseState: %w", err)
	}
	return &state, nil
}

func (c *InfoClient) post(ctx context.Context, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("info status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
