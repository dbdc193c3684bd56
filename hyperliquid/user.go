package hyperliquid

import "context"

// UserClient 绑定用户地址的 info 查询视图，供对账循环使用。
type UserClient struct {
	info *InfoClient
	user string
}

// NewUserClient 创建用户查询客户端。
func NewUserClient(info *InfoClient, user string) *UserClient {
	return &UserClient{info: info, user: user}
}

// OpenOrderIDs 返回该用户当前挂单 oid 集合。
func (c *UserClient) OpenOrderIDs(ctx context.Context) (map[int64]bool, error) {
	return c.info.OpenOrderIDs(ctx, c.user)
}

// PositionSizes 返回该用户各币种的带符号净持仓。
func (c *UserClient) PositionSizes(ctx context.Context) (map[string]float64, error) {
	state, err := c.info.UserState(ctx, c.user)
	if err != nil {
		return nil, err
	}
	sizes := make(map[string]float64, len(state.AssetPositions))
	for _, ap := range state.AssetPositions {
		szi, _ := ap.Position.Szi.Float64()
		sizes[ap.Position.Coin] = szi
	}
	return sizes, nil
}
