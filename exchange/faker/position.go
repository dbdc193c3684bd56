package faker

import (
	"github.com/shopspring/decimal"
)

// bookPosition 单个交易对的模拟持仓。数量带符号：正数多头，负数空头。
// 金额运算全部走 decimal，避免长时间运行后的浮点累计误差。
type bookPosition struct {
	symbol     string
	amount     decimal.Decimal
	entryPrice decimal.Decimal
	unrealized decimal.Decimal
}

// account 模拟账户：占用资金、已实现盈亏与成交计数。
type account struct {
	balance    decimal.Decimal
	realized   decimal.Decimal
	tradeCount int64
}

// applyFill 将一笔成交并入持仓，返回本次实现的盈亏。
//
// 同向加仓按名义金额重新加权入场价；减仓实现 (成交价-入场价)×平仓量
// （空头符号相反）；刚好归零时持仓被调用方删除；反手拆成先全平再以
// 成交价新开剩余数量。
func (p *bookPosition) applyFill(signedQty, price decimal.Decimal, acct *account) decimal.Decimal {
	cur := p.amount
	realized := decimal.Zero

	switch {
	case cur.IsZero() || cur.Sign() == signedQty.Sign():
		// 开仓或同向加仓：加权平均入场价
		total := cur.Add(signedQty)
		notional := p.entryPrice.Mul(cur.Abs()).Add(price.Mul(signedQty.Abs()))
		p.entryPrice = notional.Div(total.Abs())
		p.amount = total
		acct.balance = acct.balance.Sub(price.Mul(signedQty.Abs()))

	case signedQty.Abs().LessThanOrEqual(cur.Abs()):
		// 减仓（含刚好平完）：按平掉的数量实现盈亏
		closed := signedQty.Abs()
		realized = p.closePnL(price, closed)
		p.amount = cur.Add(signedQty)
		if p.amount.IsZero() {
			p.entryPrice = decimal.Zero
		}
		acct.balance = acct.balance.Add(price.Mul(closed))

	default:
		// 反手：先全平旧仓，再以成交价开出剩余
		closed := cur.Abs()
		realized = p.closePnL(price, closed)
		remain := signedQty.Add(cur) // 与 signedQty 同号
		acct.balance = acct.balance.Add(price.Mul(closed))
		acct.balance = acct.balance.Sub(price.Mul(remain.Abs()))
		p.amount = remain
		p.entryPrice = price
	}

	acct.realized = acct.realized.Add(realized)
	acct.tradeCount++
	return realized
}

// closePnL 计算平掉 closed（正数）数量仓位的已实现盈亏。
func (p *bookPosition) closePnL(price, closed decimal.Decimal) decimal.Decimal {
	pnl := price.Sub(p.entryPrice).Mul(closed)
	if p.amount.Sign() < 0 {
		pnl = pnl.Neg()
	}
	return pnl
}

// markPrice 按最新价重算未实现盈亏。
func (p *bookPosition) markPrice(price decimal.Decimal) {
	p.unrealized = price.Sub(p.entryPrice).Mul(p.amount)
}
