package adapter

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/portfolio-engine/internal/model"
	"github.com/atmx/portfolio-engine/internal/venue"
)

var (
	fSourceID  = NewField("id", "$.id", "$.trade_id", "$.tradeId", "$.order_id", "$.orderId")
	fSide      = NewField("side", "$.side", "$.takerSide", "$.direction")
	fSize      = NewField("size", "$.size", "$.shares", "$.amount")
	fPrice     = NewField("price", "$.price", "$.fillPrice", "$.avgPrice")
	fFee       = NewField("fee", "$.fee", "$.fee_amount", "$.feeAmount")
	fFeeBps    = NewField("feeRateBps", "$.fee_rate_bps", "$.feeRateBps")
	fTimestamp = NewField("timestamp", "$.timestamp", "$.match_time", "$.matchTime", "$.created_at", "$.createdAt")
	fTxHash    = NewField("transactionHash", "$.transactionHash", "$.transaction_hash")
	fType      = NewField("type", "$.type", "$.activityType")
	fUSDCSize  = NewField("usdcSize", "$.usdcSize", "$.usdc_size")
)

var (
	bps            = decimal.NewFromInt(10000)
	sourceIDPrefix = uuid.NewSHA1(uuid.NameSpaceURL, []byte("portfolio-engine/trade-record"))
)

// deriveSourceID builds a stable id for rows the venue did not number, so
// overlapping pages can still be deduplicated.
func deriveSourceID(source string, r model.TradeRecord, tx string) string {
	canonical := strings.Join([]string{
		source,
		r.MarketID,
		r.OutcomeID,
		r.Side.String(),
		r.Size.String(),
		r.Price.String(),
		r.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		tx,
	}, "|")
	return uuid.NewSHA1(sourceIDPrefix, []byte(canonical)).String()
}

// decodeTradeFields fills everything but Side and validates the result.
func decodeTradeFields(source string, doc any, side model.Side, price decimal.Decimal) (model.TradeRecord, error) {
	r := model.TradeRecord{Side: side, Price: price}
	if r.MarketID = fMarket.String(doc); r.MarketID == "" {
		return r, errNoMarket
	}
	if r.OutcomeID = fOutcome.String(doc); r.OutcomeID == "" {
		return r, errNoOutcome
	}
	ts, ok := fTimestamp.Time(doc)
	if !ok {
		return r, errNoTime
	}
	r.Timestamp = ts

	r.Size = fSize.Decimal(doc)
	if !r.Size.IsPositive() {
		return r, errBadSize
	}
	if r.Price.IsNegative() || r.Price.GreaterThan(one) {
		return r, errBadPrice
	}

	if fFee.Has(doc) {
		r.Fee = fFee.Decimal(doc)
	} else if rate := fFeeBps.Decimal(doc); rate.IsPositive() {
		r.Fee = rate.Div(bps).Mul(r.Price).Mul(r.Size)
	}
	if r.Fee.IsNegative() {
		return r, errBadFee
	}

	r.Market = marketOf(doc)
	r.SourceID = fSourceID.String(doc)
	if r.SourceID == "" {
		r.SourceID = deriveSourceID(source, r, fTxHash.String(doc))
	}
	return r, nil
}

func decodeFill(doc any) (model.TradeRecord, error) {
	v, ok := fSide.Value(doc)
	if !ok {
		return model.TradeRecord{}, errBadSide
	}
	side, ok := ParseSide(v)
	if !ok {
		return model.TradeRecord{}, errBadSide
	}
	return decodeTradeFields("fills", doc, side, fPrice.Decimal(doc))
}

// decodeActivity turns TRADE rows into trade records and REDEEM rows into
// closes at the redemption price. Other activity types are skipped.
func decodeActivity(doc any) (model.TradeRecord, error) {
	kind := strings.ToUpper(fType.String(doc))
	switch kind {
	case "TRADE", "":
		if kind == "" && !fSide.Has(doc) {
			return model.TradeRecord{}, errSkip
		}
		v, _ := fSide.Value(doc)
		side, ok := ParseSide(v)
		if !ok {
			return model.TradeRecord{}, errBadSide
		}
		return decodeTradeFields("activity", doc, side, fPrice.Decimal(doc))
	case "REDEEM":
		size := fSize.Decimal(doc)
		price := decimal.Zero
		if size.IsPositive() {
			price = clampPrice(fUSDCSize.Decimal(doc).Div(size))
		}
		return decodeTradeFields("activity", doc, model.SideClose, price)
	default:
		return model.TradeRecord{}, errSkip
	}
}

// Fills is the wallet's trade history. Some venues gate it behind
// elevated credentials; the venue client carries the key.
type Fills struct {
	c *collection[model.TradeRecord]
}

// NewFills creates the fills ledger adapter.
func NewFills(g venue.Getter, opts Options) *Fills {
	req := venue.Request{Path: "/trades"}
	return &Fills{c: newCollection("fills", g, req, opts, decodeFill)}
}

// Fetch returns normalized fills in upstream order.
func (a *Fills) Fetch(ctx context.Context, wallet string, f Filter) (Result[model.TradeRecord], error) {
	return a.c.fetch(ctx, wallet, f)
}

// Activity is the wallet's activity ledger.
type Activity struct {
	c *collection[model.TradeRecord]
}

// NewActivity creates the activity ledger adapter.
func NewActivity(g venue.Getter, opts Options) *Activity {
	req := venue.Request{
		Path:          "/activity",
		SortBy:        "TIMESTAMP",
		SortDirection: "ASC",
	}
	return &Activity{c: newCollection("activity", g, req, opts, decodeActivity)}
}

// Fetch returns trade-like activity rows as trade records.
func (a *Activity) Fetch(ctx context.Context, wallet string, f Filter) (Result[model.TradeRecord], error) {
	return a.c.fetch(ctx, wallet, f)
}
