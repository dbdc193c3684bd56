package mirror

import (
	"github.com/shopspring/decimal"

	"hyper-mirror-go/exchange"
)

// RoundQty 把数量向下取整到 stepSize 的整数倍，结果低于 minQty 时
// 抬到 minQty。对已经合规的数量是恒等变换。
func RoundQty(raw float64, f exchange.SymbolFilters) float64 {
	qty := roundQtyDecimal(decimal.NewFromFloat(raw), f)
	out, _ := qty.Float64()
	return out
}

// ScaleQty 按缩放倍数换算目标下单数量并套用 LOT_SIZE 过滤器。
// 除法走 decimal，避免 1.1/0.55 这类结果落在 2.0000000000000004 上。
func ScaleQty(sourceSize, scaleFactor float64, f exchange.SymbolFilters) float64 {
	if scaleFactor <= 0 {
		return 0
	}
	raw := decimal.NewFromFloat(sourceSize).Div(decimal.NewFromFloat(scaleFactor))
	qty := roundQtyDecimal(raw, f)
	out, _ := qty.Float64()
	return out
}

func roundQtyDecimal(raw decimal.Decimal, f exchange.SymbolFilters) decimal.Decimal {
	if raw.Sign() <= 0 {
		return decimal.Zero
	}
	qty := raw
	if f.StepSize > 0 {
		step := decimal.NewFromFloat(f.StepSize)
		qty = qty.Sub(qty.Mod(step))
	}
	if f.MinQty > 0 {
		min := decimal.NewFromFloat(f.MinQty)
		if qty.LessThan(min) {
			qty = min
		}
	}
	return qty
}
